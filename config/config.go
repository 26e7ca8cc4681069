// Package config loads engine settings from defaults, an optional config
// file, a .env file and TOKEX_* environment variables, in rising priority.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "TOKEX"

// MaxFeeCeiling is the hard upper bound for any fee setting: 100%.
const MaxFeeCeiling = 10_000

type Config struct {
	ProgramID solana.PublicKey
	DataDir   string

	Journal      Journal
	SnapshotDir  string
	SnapshotKeep int

	GRPCAddr string
	HTTPAddr string

	Matching    Matching
	Fees        Fees
	Kafka       Kafka
	TradeLog    TradeLog
	Broadcaster Broadcaster
	Maintenance Maintenance
	Log         Log
}

type Journal struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
}

type Matching struct {
	AutoMatch       bool
	MarketRemainder string // cancel | reject
}

type Fees struct {
	DefaultBps uint16
	MaxBps     uint16
}

type Kafka struct {
	Enabled bool
	Driver  string // kafka-go | sarama
	Brokers []string
	Topic   string
}

type TradeLog struct {
	Enabled bool
	DSN     string
}

type Broadcaster struct {
	Interval   time.Duration
	MaxRetries uint32
}

type Maintenance struct {
	Schedule        string
	DepthLevels     int
	TruncateJournal bool
}

type Log struct {
	Level  string
	Pretty bool
}

// SetDefaults registers every key with its default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("program_id", "FATJAGZjRCzP6uYLCpUdbgE5fUZxjrzPCU6dagp6iH7z")
	v.SetDefault("data_dir", "./data/state")
	v.SetDefault("journal.dir", "./data/journal")
	v.SetDefault("journal.segment_size", 4<<20)
	v.SetDefault("journal.segment_duration", time.Hour)
	v.SetDefault("snapshot.dir", "./data/snapshots")
	v.SetDefault("snapshot.keep", 5)
	v.SetDefault("grpc.addr", ":50051")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("matching.auto_match", true)
	v.SetDefault("matching.market_remainder", "cancel")
	v.SetDefault("fees.default_bps", 100)
	v.SetDefault("fees.max_bps", 1000)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.driver", "kafka-go")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "tokex.events")
	v.SetDefault("tradelog.enabled", false)
	v.SetDefault("tradelog.dsn", "./data/tradelog.db")
	v.SetDefault("broadcaster.interval", 250*time.Millisecond)
	v.SetDefault("broadcaster.max_retries", 5)
	v.SetDefault("maintenance.schedule", "@every 1m")
	v.SetDefault("maintenance.depth_levels", 20)
	v.SetDefault("maintenance.truncate_journal", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads the configuration. path may be empty.
func Load(path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()
	return FromViper(newViper(), path)
}

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// FromViper decodes and validates the settings held by v, first merging
// the config file at path when one is given.
func FromViper(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	program, err := solana.PublicKeyFromBase58(v.GetString("program_id"))
	if err != nil {
		return nil, errors.Wrap(err, "program_id")
	}

	defaultBps, maxBps := v.GetInt("fees.default_bps"), v.GetInt("fees.max_bps")
	if maxBps < 0 || maxBps > MaxFeeCeiling {
		return nil, errors.Newf("fees.max_bps %d outside [0, %d]", maxBps, MaxFeeCeiling)
	}
	if defaultBps < 0 || defaultBps > maxBps {
		return nil, errors.Newf("fees.default_bps %d outside [0, %d]", defaultBps, maxBps)
	}

	cfg := &Config{
		ProgramID: program,
		DataDir:   v.GetString("data_dir"),
		Journal: Journal{
			Dir:             v.GetString("journal.dir"),
			SegmentSize:     v.GetInt64("journal.segment_size"),
			SegmentDuration: v.GetDuration("journal.segment_duration"),
		},
		SnapshotDir:  v.GetString("snapshot.dir"),
		SnapshotKeep: v.GetInt("snapshot.keep"),
		GRPCAddr:     v.GetString("grpc.addr"),
		HTTPAddr:     v.GetString("http.addr"),
		Matching: Matching{
			AutoMatch:       v.GetBool("matching.auto_match"),
			MarketRemainder: strings.ToLower(v.GetString("matching.market_remainder")),
		},
		Fees: Fees{
			DefaultBps: uint16(defaultBps),
			MaxBps:     uint16(maxBps),
		},
		Kafka: Kafka{
			Enabled: v.GetBool("kafka.enabled"),
			Driver:  strings.ToLower(v.GetString("kafka.driver")),
			Brokers: v.GetStringSlice("kafka.brokers"),
			Topic:   v.GetString("kafka.topic"),
		},
		TradeLog: TradeLog{
			Enabled: v.GetBool("tradelog.enabled"),
			DSN:     v.GetString("tradelog.dsn"),
		},
		Broadcaster: Broadcaster{
			Interval:   v.GetDuration("broadcaster.interval"),
			MaxRetries: v.GetUint32("broadcaster.max_retries"),
		},
		Maintenance: Maintenance{
			Schedule:        v.GetString("maintenance.schedule"),
			DepthLevels:     v.GetInt("maintenance.depth_levels"),
			TruncateJournal: v.GetBool("maintenance.truncate_journal"),
		},
		Log: Log{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Matching.MarketRemainder {
	case "cancel", "reject":
	default:
		return errors.Newf("matching.market_remainder %q: want cancel or reject", c.Matching.MarketRemainder)
	}
	switch c.Kafka.Driver {
	case "kafka-go", "sarama":
	default:
		return errors.Newf("kafka.driver %q: want kafka-go or sarama", c.Kafka.Driver)
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return errors.New("kafka enabled without brokers or topic")
	}
	if c.Journal.SegmentSize <= 0 {
		return errors.Newf("journal.segment_size must be positive, got %d", c.Journal.SegmentSize)
	}
	if c.Maintenance.DepthLevels <= 0 {
		return errors.Newf("maintenance.depth_levels must be positive, got %d", c.Maintenance.DepthLevels)
	}
	if c.DataDir == "" || c.Journal.Dir == "" || c.SnapshotDir == "" {
		return errors.New("data_dir, journal.dir and snapshot.dir are required")
	}
	return nil
}
