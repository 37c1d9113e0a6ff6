// Package cache is a durable, gorm-backed store for data that is cheap
// to refetch but expensive to refetch often: venue symbol filters and
// the set of accounts this process has registered. Unlike the Event
// Spine (internal/spine, spec-literal raw SQL), this is ordinary CRUD
// over a handful of small tables, the kind of surface the teacher's
// internal/database/database.go reaches for gorm on.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/praxis-trading/core/internal/venue"
)

// Cache wraps a gorm.DB scoped to the symbol-filter and account-registry tables.
type Cache struct {
	db *gorm.DB
}

// SymbolFiltersRecord is the durable form of venue.SymbolFilters, keyed by symbol.
type SymbolFiltersRecord struct {
	Symbol      string          `gorm:"primaryKey"`
	TickSize    decimal.Decimal `gorm:"type:decimal(32,12)"`
	LotStep     decimal.Decimal `gorm:"type:decimal(32,12)"`
	LotMin      decimal.Decimal `gorm:"type:decimal(32,12)"`
	LotMax      decimal.Decimal `gorm:"type:decimal(32,12)"`
	MinNotional decimal.Decimal `gorm:"type:decimal(32,12)"`
	UpdatedAt   time.Time
}

// AccountRecord tracks which accounts this process has registered with
// a venue adapter. It never stores API secrets — those live only in
// the adapter's in-memory credential map (internal/venue/binance);
// this table is bookkeeping for what's been seen, not a credential store.
type AccountRecord struct {
	AccountID    string `gorm:"primaryKey"`
	Testnet      bool
	RegisteredAt time.Time
	LastSeenAt   time.Time
}

// New opens the cache database: Postgres when dsn looks like a
// connection URL, otherwise an embedded SQLite file, the same dialect
// dispatch as the teacher's database.New.
func New(dsn string) (*Cache, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres cache: %w", err)
		}
		log.Info().Msg("cache connected (postgres)")
	} else {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create cache dir: %w", err)
			}
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("open sqlite cache: %w", err)
		}
		log.Info().Str("path", dsn).Msg("cache initialized (sqlite)")
	}

	if err := db.AutoMigrate(&SymbolFiltersRecord{}, &AccountRecord{}); err != nil {
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// SaveSymbolFilters upserts the filters for a symbol.
func (c *Cache) SaveSymbolFilters(filters venue.SymbolFilters) error {
	record := SymbolFiltersRecord{
		Symbol:      filters.Symbol,
		TickSize:    filters.TickSize,
		LotStep:     filters.LotStep,
		LotMin:      filters.LotMin,
		LotMax:      filters.LotMax,
		MinNotional: filters.MinNotional,
		UpdatedAt:   time.Now(),
	}
	return c.db.Save(&record).Error
}

// GetSymbolFilters returns the cached filters for a symbol, or
// gorm.ErrRecordNotFound if the symbol has never been cached.
func (c *Cache) GetSymbolFilters(symbol string) (*venue.SymbolFilters, error) {
	var record SymbolFiltersRecord
	if err := c.db.First(&record, "symbol = ?", symbol).Error; err != nil {
		return nil, err
	}
	return &venue.SymbolFilters{
		Symbol:      record.Symbol,
		TickSize:    record.TickSize,
		LotStep:     record.LotStep,
		LotMin:      record.LotMin,
		LotMax:      record.LotMax,
		MinNotional: record.MinNotional,
	}, nil
}

// RegisterAccount records that accountID has been registered with the
// venue adapter, upserting its last-seen timestamp if it already exists.
func (c *Cache) RegisterAccount(accountID string, testnet bool) error {
	now := time.Now()
	var record AccountRecord
	err := c.db.First(&record, "account_id = ?", accountID).Error
	if err == gorm.ErrRecordNotFound {
		record = AccountRecord{AccountID: accountID, Testnet: testnet, RegisteredAt: now, LastSeenAt: now}
		return c.db.Create(&record).Error
	}
	if err != nil {
		return err
	}
	record.LastSeenAt = now
	record.Testnet = testnet
	return c.db.Save(&record).Error
}

// ListAccounts returns every account this process has ever registered.
func (c *Cache) ListAccounts() ([]AccountRecord, error) {
	var records []AccountRecord
	err := c.db.Order("registered_at ASC").Find(&records).Error
	return records, err
}
