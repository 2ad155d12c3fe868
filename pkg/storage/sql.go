package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/raykavin/stoploss/pkg/core"
	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLHistory implements core.History using a SQL database via GORM.
type SQLHistory struct {
	db *gorm.DB
}

// BarRow is the persisted form of a daily bar.
type BarRow struct {
	Symbol string `gorm:"primaryKey;size:16"`
	Date   string `gorm:"primaryKey;size:10"`
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// TableName sets the table used for bar rows.
func (BarRow) TableName() string { return "price_history" }

// SymbolStat keeps the most recently seen 52-week levels per symbol.
type SymbolStat struct {
	Symbol     string `gorm:"primaryKey;size:16"`
	Week52High float64
	Week52Low  float64
	UpdatedAt  time.Time
}

// FromSQL creates a SQL-backed history store on any GORM dialector.
func FromSQL(dialect gorm.Dialector, opts ...gorm.Option) (*SQLHistory, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&BarRow{}, &SymbolStat{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLHistory{db: db}, nil
}

// FromSQLite creates a SQLite-backed history store at the given path.
func FromSQLite(path string) (*SQLHistory, error) {
	return FromSQL(sqlite.Open(path))
}

func toRow(symbol string, bar core.Bar) BarRow {
	return BarRow{
		Symbol: symbol,
		Date:   bar.DateKey(),
		Open:   bar.Open,
		High:   bar.High,
		Low:    bar.Low,
		Close:  bar.Close,
		Volume: bar.Volume,
	}
}

func (r BarRow) toBar() (core.Bar, error) {
	date, err := time.Parse(core.DateLayout, r.Date)
	if err != nil {
		return core.Bar{}, fmt.Errorf("invalid stored date %q: %w", r.Date, err)
	}
	return core.Bar{
		Symbol: r.Symbol,
		Date:   date,
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
	}, nil
}

// StoreBars inserts bars, ignoring duplicates on (symbol, date).
func (s *SQLHistory) StoreBars(ctx context.Context, symbol string, bars []core.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	symbol = core.NormalizeSymbol(symbol)

	rows := lo.Map(bars, func(bar core.Bar, _ int) BarRow {
		return toRow(symbol, bar)
	})

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to store bars: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// StoreQuote records the quote as today's bar and upserts 52-week levels.
func (s *SQLHistory) StoreQuote(ctx context.Context, quote core.Quote) (bool, error) {
	symbol := core.NormalizeSymbol(quote.Symbol)
	when := quote.Time
	if when.IsZero() {
		when = time.Now()
	}

	bar := core.Bar{
		Symbol: symbol,
		Date:   when,
		Open:   quote.Price,
		High:   quote.Price,
		Low:    quote.Price,
		Close:  quote.Price,
	}
	inserted, err := s.StoreBars(ctx, symbol, []core.Bar{bar})
	if err != nil {
		return false, err
	}

	if quote.Week52High > 0 {
		stat := SymbolStat{
			Symbol:     symbol,
			Week52High: quote.Week52High,
			Week52Low:  quote.Week52Low,
			UpdatedAt:  when,
		}
		result := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{UpdateAll: true}).
			Create(&stat)
		if result.Error != nil {
			return false, fmt.Errorf("failed to store 52-week levels: %w", result.Error)
		}
	}

	return inserted > 0, nil
}

// HighWaterMark returns the maximum stored high since the cutoff date.
func (s *SQLHistory) HighWaterMark(ctx context.Context, symbol string, since time.Time) (float64, bool, error) {
	symbol = core.NormalizeSymbol(symbol)

	query := s.db.WithContext(ctx).Model(&BarRow{}).Where("symbol = ?", symbol)
	if !since.IsZero() {
		query = query.Where("date >= ?", since.Format(core.DateLayout))
	}

	var mark *float64
	if err := query.Select("MAX(high)").Scan(&mark).Error; err != nil {
		return 0, false, fmt.Errorf("failed to query high-water mark: %w", err)
	}
	if mark == nil {
		return 0, false, nil
	}
	return *mark, true, nil
}

// LastUpdate returns the most recent stored bar date for the symbol.
func (s *SQLHistory) LastUpdate(ctx context.Context, symbol string) (time.Time, bool, error) {
	symbol = core.NormalizeSymbol(symbol)

	var last *string
	err := s.db.WithContext(ctx).Model(&BarRow{}).
		Where("symbol = ?", symbol).
		Select("MAX(date)").
		Scan(&last).Error
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query last update: %w", err)
	}
	if last == nil {
		return time.Time{}, false, nil
	}

	date, err := time.Parse(core.DateLayout, *last)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid stored date %q: %w", *last, err)
	}
	return date, true, nil
}

// RecentBars returns up to n most recent bars in chronological order.
func (s *SQLHistory) RecentBars(ctx context.Context, symbol string, n int) ([]core.Bar, error) {
	symbol = core.NormalizeSymbol(symbol)

	var rows []BarRow
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("date DESC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recent bars: %w", err)
	}

	// Rows arrive newest first; flip back to chronological order.
	bars := make([]core.Bar, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		bar, convErr := rows[i].toBar()
		if convErr != nil {
			return nil, convErr
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// Latest52WeekHigh returns the most recently stored 52-week-high value.
func (s *SQLHistory) Latest52WeekHigh(ctx context.Context, symbol string) (float64, bool, error) {
	symbol = core.NormalizeSymbol(symbol)

	var stat SymbolStat
	result := s.db.WithContext(ctx).Where("symbol = ?", symbol).Limit(1).Find(&stat)
	if result.Error != nil {
		return 0, false, fmt.Errorf("failed to query 52-week levels: %w", result.Error)
	}
	if result.RowsAffected == 0 || stat.Week52High <= 0 {
		return 0, false, nil
	}
	return stat.Week52High, true, nil
}

// Purge removes all stored data for the symbol.
func (s *SQLHistory) Purge(ctx context.Context, symbol string) (int, error) {
	symbol = core.NormalizeSymbol(symbol)

	result := s.db.WithContext(ctx).Where("symbol = ?", symbol).Delete(&BarRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge bars: %w", result.Error)
	}
	if err := s.db.WithContext(ctx).Where("symbol = ?", symbol).Delete(&SymbolStat{}).Error; err != nil {
		return 0, fmt.Errorf("failed to purge 52-week levels: %w", err)
	}
	return int(result.RowsAffected), nil
}

// Close closes the underlying database connection.
func (s *SQLHistory) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
