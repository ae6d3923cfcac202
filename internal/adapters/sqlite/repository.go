package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"database/sql"

	"autoCoinBot/internal/domain"
	"autoCoinBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.TradeRepository and ports.StateRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trading_bot.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Set connection pool settings (important for SQLite)
	db.SetMaxOpenConns(1) // SQLite handles concurrency internally, but Go driver benefits from limiting connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trade_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		price REAL NOT NULL,
		quantity REAL NOT NULL,
		executed_at TIMESTAMP NOT NULL,
		profit_pct REAL NOT NULL DEFAULT 0,
		stop_loss_triggered INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS instrument_state (
		symbol TEXT PRIMARY KEY,
		holding INTEGER NOT NULL,
		quantity REAL NOT NULL,
		avg_entry_price REAL NOT NULL,
		cumulative_profit REAL NOT NULL,
		averaging_used INTEGER NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trade_history_symbol_time ON trade_history (symbol, executed_at);
	CREATE INDEX IF NOT EXISTS idx_trade_history_time ON trade_history (executed_at);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- TradeRepository Implementation ---

// CreateTrade saves a new trade record and returns its assigned ID.
func (r *Repository) CreateTrade(ctx context.Context, rec *domain.TradeRecord) (int64, error) {
	const query = `
	INSERT INTO trade_history (symbol, side, price, quantity, executed_at, profit_pct, stop_loss_triggered)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		rec.Symbol, string(rec.Side), rec.Price, rec.Quantity, rec.Timestamp, rec.ProfitPct, rec.StopLossTriggered)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade for symbol %s: %w", rec.Symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade %s: %w", rec.Symbol, err)
	}
	rec.ID = id
	r.logger.Debug(ctx, "Trade record created", map[string]interface{}{"tradeID": id, "symbol": rec.Symbol, "side": string(rec.Side)})
	return id, nil
}

// FindBySymbol retrieves the most recent trades for a given symbol, up to a limit.
func (r *Repository) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeRecord, error) {
	const query = `
	SELECT id, symbol, side, price, quantity, executed_at, profit_pct, stop_loss_triggered
	FROM trade_history
	WHERE symbol = ? ORDER BY executed_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for symbol %s: %w", symbol, err)
	}
	defer rows.Close()

	return collectTrades(rows)
}

// FindSince retrieves all trades executed at or after the given time, ordered
// by timestamp ascending.
func (r *Repository) FindSince(ctx context.Context, since time.Time) ([]*domain.TradeRecord, error) {
	const query = `
	SELECT id, symbol, side, price, quantity, executed_at, profit_pct, stop_loss_triggered
	FROM trade_history
	WHERE executed_at >= ? ORDER BY executed_at ASC`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades since %s: %w", since, err)
	}
	defer rows.Close()

	return collectTrades(rows)
}

// TotalProfitPctBySymbol sums realized profit percentage points over all
// recorded sells for a symbol.
func (r *Repository) TotalProfitPctBySymbol(ctx context.Context, symbol string) (float64, error) {
	const query = `SELECT COALESCE(SUM(profit_pct), 0) FROM trade_history WHERE symbol = ? AND side = ?`
	var total float64
	err := r.db.QueryRowContext(ctx, query, symbol, string(domain.Sell)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum profit for symbol %s: %w", symbol, err)
	}
	return total, nil
}

// PurgeOlderThan deletes records older than the cutoff and returns the number
// of rows removed.
func (r *Repository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM trade_history WHERE executed_at < ?`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge trades before %s: %w", cutoff, err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get purged row count: %w", err)
	}
	if removed > 0 {
		r.logger.Info(ctx, "Purged old trade records", map[string]interface{}{"removed": removed, "cutoff": cutoff})
	}
	return removed, nil
}

// --- StateRepository Implementation ---

// SaveState upserts one instrument's position state.
func (r *Repository) SaveState(ctx context.Context, state *domain.InstrumentState) error {
	const query = `
	INSERT INTO instrument_state (symbol, holding, quantity, avg_entry_price, cumulative_profit, averaging_used, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(symbol) DO UPDATE SET
		holding = excluded.holding,
		quantity = excluded.quantity,
		avg_entry_price = excluded.avg_entry_price,
		cumulative_profit = excluded.cumulative_profit,
		averaging_used = excluded.averaging_used,
		updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		state.Symbol, state.Holding, state.Quantity, state.AvgEntryPrice,
		state.CumulativeProfit, state.AveragingDownUsed, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save state for symbol %s: %w", state.Symbol, err)
	}
	return nil
}

// LoadStates retrieves every persisted instrument state.
func (r *Repository) LoadStates(ctx context.Context) ([]*domain.InstrumentState, error) {
	const query = `
	SELECT symbol, holding, quantity, avg_entry_price, cumulative_profit, averaging_used
	FROM instrument_state`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query instrument states: %w", err)
	}
	defer rows.Close()

	states := make([]*domain.InstrumentState, 0)
	for rows.Next() {
		s := &domain.InstrumentState{}
		if err := rows.Scan(&s.Symbol, &s.Holding, &s.Quantity, &s.AvgEntryPrice,
			&s.CumulativeProfit, &s.AveragingDownUsed); err != nil {
			return nil, fmt.Errorf("failed to scan instrument state: %w", err)
		}
		states = append(states, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instrument state rows: %w", err)
	}
	return states, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func collectTrades(rows *sql.Rows) ([]*domain.TradeRecord, error) {
	trades := make([]*domain.TradeRecord, 0)
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade record: %w", err)
		}
		trades = append(trades, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// scanTrade scans a row into a domain.TradeRecord struct.
func scanTrade(s scanner) (*domain.TradeRecord, error) {
	rec := &domain.TradeRecord{}
	var side string
	err := s.Scan(&rec.ID, &rec.Symbol, &side, &rec.Price, &rec.Quantity,
		&rec.Timestamp, &rec.ProfitPct, &rec.StopLossTriggered)
	if err != nil {
		return nil, err
	}
	rec.Side = domain.OrderSide(side)
	return rec, nil
}
