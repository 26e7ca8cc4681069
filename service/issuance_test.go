package service

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokex/domain/account"
	"tokex/domain/errs"
	"tokex/domain/matching"
	"tokex/infra/outbox"
	"tokex/infra/wal/entry"
)

func (f *fixture) portfolio(t *testing.T) solana.PublicKey {
	t.Helper()
	owner := solana.NewWallet().PublicKey()
	_, err := f.svc.CreatePortfolio(ctx, CreatePortfolioRequest{Owner: owner})
	require.NoError(t, err)
	return owner
}

func TestAdminDistributionEscrowAndRevaluation(t *testing.T) {
	f := setup(t, matching.Policy{AutoMatch: true})
	_, err := f.svc.CreatePortfolio(ctx, CreatePortfolioRequest{Owner: f.admin})
	require.NoError(t, err)

	co, err := f.svc.AdminCreateCompany(ctx, AdminCreateCompanyRequest{
		Requester: f.admin, Name: "Globex", Symbol: "GLBX", InitialSupply: 1_000, InitialPrice: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, f.company.ID+1, co.ID)
	assert.True(t, co.Verified)

	alice, bob := f.portfolio(t), f.portfolio(t)
	d, err := f.svc.DistributeTokens(ctx, DistributeTokensRequest{
		Requester: f.admin, CompanyID: co.ID, Recipients: []solana.PublicKey{alice, bob}, PerRecipient: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(200), d.Total)

	bal, err := f.svc.Balance(alice, co.Mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bal)

	buyer := f.trader(t, 10_000, 0)
	_, err = f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		Owner: alice, CompanyID: co.ID, Side: account.Sell, Type: account.Limit, Quantity: 40, Price: 15,
	})
	require.NoError(t, err)
	res, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		Owner: buyer, CompanyID: co.ID, Side: account.Buy, Type: account.Limit, Quantity: 40, Price: 15,
	})
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	p, err := f.svc.UpdatePortfolio(ctx, UpdatePortfolioRequest{Owner: alice})
	require.NoError(t, err)
	assert.Equal(t, uint64(60*15), p.MarketValue)
	assert.Equal(t, int64(60*15), p.Unrealized)
	assert.Equal(t, int64(600-6), p.Realized)
	assert.Equal(t, f.now.Unix(), p.RevaluedAt)

	h, err := f.svc.GetHolding(alice, co.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), h.Mark)
	assert.Equal(t, uint64(60*15), h.Value)

	e, err := f.svc.CreateEscrow(ctx, CreateEscrowRequest{
		Payer: bob, Recipient: alice, Shares: true, CompanyID: co.ID, Amount: 30, Reference: 7,
	})
	require.NoError(t, err)
	_, err = f.svc.CancelEscrow(ctx, SettleEscrowRequest{Requester: alice, EscrowID: e.ID})
	require.Error(t, err)
	_, err = f.svc.ReleaseEscrow(ctx, SettleEscrowRequest{Requester: alice, EscrowID: e.ID})
	require.NoError(t, err)
	bal, err = f.svc.Balance(alice, co.Mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(90), bal)

	before := f.cash(t, buyer)
	e, err = f.svc.CreateEscrow(ctx, CreateEscrowRequest{Payer: buyer, Recipient: bob, Amount: 500})
	require.NoError(t, err)
	assert.Equal(t, before-500, f.cash(t, buyer))
	_, err = f.svc.CancelEscrow(ctx, SettleEscrowRequest{Requester: buyer, EscrowID: e.ID})
	require.NoError(t, err)
	assert.Equal(t, before, f.cash(t, buyer))
	_, err = f.svc.ReleaseEscrow(ctx, SettleEscrowRequest{Requester: bob, EscrowID: e.ID})
	assert.ErrorIs(t, err, errs.ErrAlreadyTerminal)

	got, err := f.svc.GetTransferEscrow(e.ID)
	require.NoError(t, err)
	assert.Equal(t, account.EscrowCancelled, got.Status)

	types := eventTypes(f.events(t))
	assert.Contains(t, types, outbox.CompanyCreatedByAdmin)
	assert.Contains(t, types, outbox.TokensDistributed)
	assert.Contains(t, types, outbox.PortfolioUpdated)
	assert.Equal(t, []string{
		outbox.EscrowCreated, outbox.EscrowReleased, outbox.EscrowCreated, outbox.EscrowCancelled,
	}, types[len(types)-4:])

	var recs []entry.RecordType
	_, err = entry.Replay(f.dir, func(r *entry.Record) error {
		recs = append(recs, r.Type)
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, recs, entry.RecordAdminCreateCompany)
	assert.Contains(t, recs, entry.RecordDistributeTokens)
	assert.Contains(t, recs, entry.RecordUpdatePortfolio)
	assert.Equal(t, entry.RecordCancelEscrow, recs[len(recs)-1])
	assert.Equal(t, f.svc.Seq(), uint64(len(recs)))
}
