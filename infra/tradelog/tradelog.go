// Package tradelog projects TradeExecuted events into a SQL table so trade
// history can be queried without walking the ledger.
package tradelog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"tokex/infra/outbox"
)

type Trade struct {
	TradeID     uint64    `gorm:"primaryKey;autoIncrement:false" json:"trade_id"`
	CompanyID   uint64    `gorm:"index:idx_company_executed" json:"company_id"`
	Buyer       string    `gorm:"index" json:"buyer"`
	Seller      string    `gorm:"index" json:"seller"`
	Mint        string    `json:"mint"`
	Amount      uint64    `json:"amount"`
	Price       uint64    `json:"price"`
	Notional    uint64    `json:"notional"`
	Fee         uint64    `json:"fee"`
	BuyOrderID  uint64    `json:"buy_order_id"`
	SellOrderID uint64    `json:"sell_order_id"`
	Seq         uint64    `json:"seq"`
	ExecutedAt  int64     `gorm:"index:idx_company_executed" json:"executed_at"`
	RecordedAt  time.Time `json:"recorded_at"`
}

type Log struct {
	db *gorm.DB
}

func Open(dsn string) (*Log, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open trade log %s", dsn)
	}
	if err := db.AutoMigrate(&Trade{}); err != nil {
		return nil, errors.Wrap(err, "migrate trade log")
	}
	return &Log{db: db}, nil
}

// Publish records a TradeExecuted event. Other events are ignored, and a
// trade seen twice is kept once.
func (l *Log) Publish(ctx context.Context, _, value []byte) error {
	ev, err := outbox.DecodeEvent(value)
	if err != nil {
		return err
	}
	if ev.Type != outbox.TradeExecuted {
		return nil
	}

	var t outbox.Trade
	if err := json.Unmarshal(ev.Data, &t); err != nil {
		return errors.Wrapf(err, "decode trade event %s", ev.ID)
	}

	row := Trade{
		TradeID:     t.TradeID,
		CompanyID:   t.CompanyID,
		Buyer:       t.Buyer,
		Seller:      t.Seller,
		Mint:        t.Mint,
		Amount:      t.Amount,
		Price:       t.Price,
		Notional:    t.Notional,
		Fee:         t.Fee,
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		Seq:         ev.Seq,
		ExecutedAt:  t.ExecutedAt,
		RecordedAt:  time.Now().UTC(),
	}
	return l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

// Recent returns the newest trades for a company, newest first.
func (l *Log) Recent(ctx context.Context, companyID uint64, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Trade
	err := l.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("trade_id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ByTrader returns trades where owner was buyer or seller.
func (l *Log) ByTrader(ctx context.Context, owner string, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Trade
	err := l.db.WithContext(ctx).
		Where("buyer = ? OR seller = ?", owner, owner).
		Order("trade_id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (l *Log) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
