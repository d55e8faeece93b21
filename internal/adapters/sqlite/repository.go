package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pairsTradingBot/internal/domain"
	"pairsTradingBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.PairRepository, ports.PairStateRepository,
// ports.SignalRepository and ports.TradeRepository interfaces using SQLite.
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
		dbPath = "./data/pairs_trading.db" // Default path
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
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// NOTE: This is a basic approach. A proper migration tool is recommended for production.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS cointegrated_pairs (
		pair_id TEXT PRIMARY KEY,
		symbol1 TEXT NOT NULL,
		symbol2 TEXT NOT NULL,
		hedge_ratio REAL NOT NULL,
		half_life REAL NOT NULL,
		pvalue REAL NOT NULL,
		spread_mean REAL NOT NULL,
		spread_std REAL NOT NULL,
		test_method TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pair_states (
		pair_id TEXT PRIMARY KEY,
		symbol1 TEXT NOT NULL,
		symbol2 TEXT NOT NULL,
		status TEXT NOT NULL,
		entry_zscore REAL NOT NULL,
		entry_hedge_ratio REAL NOT NULL,
		entry_time TIMESTAMP DEFAULT NULL,
		entry_price1 REAL NOT NULL,
		entry_price2 REAL NOT NULL,
		scale_level INTEGER NOT NULL,
		half_life REAL NOT NULL,
		breakdown_count INTEGER NOT NULL,
		last_signal_time TIMESTAMP DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS signal_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pair_id TEXT NOT NULL,
		signal_type TEXT NOT NULL,
		symbol1 TEXT NOT NULL,
		symbol2 TEXT NOT NULL,
		zscore REAL NOT NULL,
		hedge_ratio REAL NOT NULL,
		price1 REAL NOT NULL,
		price2 REAL NOT NULL,
		scale_level INTEGER NOT NULL,
		reason TEXT NULL,
		timestamp TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS spread_trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pair_id TEXT NOT NULL,
		symbol1 TEXT NOT NULL,
		symbol2 TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NOT NULL,
		entry_zscore REAL NOT NULL,
		exit_zscore REAL NOT NULL,
		entry_spread REAL NOT NULL,
		exit_spread REAL NOT NULL,
		hedge_ratio REAL NOT NULL,
		entry_spread_std REAL NOT NULL,
		pnl_spread_units REAL NOT NULL,
		pnl_percent REAL NOT NULL,
		exit_reason TEXT NOT NULL,
		holding_bars INTEGER NOT NULL
	);
	-- Add indexes for common lookups
	CREATE INDEX IF NOT EXISTS idx_pairs_active ON cointegrated_pairs (is_active);
	CREATE INDEX IF NOT EXISTS idx_signals_pair_time ON signal_history (pair_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_trades_pair_entry_time ON spread_trades (pair_id, entry_time);
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

// --- PairRepository Implementation ---

// SavePair inserts or updates a pair keyed by its PairID.
func (r *Repository) SavePair(ctx context.Context, pair *domain.Pair) error {
	const query = `
	INSERT INTO cointegrated_pairs (pair_id, symbol1, symbol2, hedge_ratio, half_life, pvalue,
	                                spread_mean, spread_std, test_method, is_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(pair_id) DO UPDATE SET
		hedge_ratio = excluded.hedge_ratio,
		half_life = excluded.half_life,
		pvalue = excluded.pvalue,
		spread_mean = excluded.spread_mean,
		spread_std = excluded.spread_std,
		test_method = excluded.test_method,
		is_active = excluded.is_active,
		updated_at = excluded.updated_at`

	now := time.Now().UTC()
	if pair.CreatedAt.IsZero() {
		pair.CreatedAt = now
	}
	pair.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		pair.PairID, pair.Symbol1, pair.Symbol2, pair.HedgeRatio, pair.HalfLife, pair.PValue,
		pair.SpreadMean, pair.SpreadStd, string(pair.TestMethod), pair.IsActive, pair.CreatedAt, pair.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save pair %s: %w", pair.PairID, err)
	}
	r.logger.Debug(ctx, "Pair saved", map[string]interface{}{"pairID": pair.PairID, "hedgeRatio": pair.HedgeRatio})
	return nil
}

// FindPair retrieves a pair by ID. Returns nil, nil when not found.
func (r *Repository) FindPair(ctx context.Context, pairID string) (*domain.Pair, error) {
	const query = `
	SELECT pair_id, symbol1, symbol2, hedge_ratio, half_life, pvalue,
	       spread_mean, spread_std, test_method, is_active, created_at, updated_at
	FROM cointegrated_pairs
	WHERE pair_id = ?`

	row := r.db.QueryRowContext(ctx, query, pairID)
	pair, err := scanPair(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Pair not found", map[string]interface{}{"pairID": pairID})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query pair %s: %w", pairID, err)
	}
	return pair, nil
}

// FindActivePairs retrieves all pairs currently marked active.
func (r *Repository) FindActivePairs(ctx context.Context) ([]*domain.Pair, error) {
	const query = `
	SELECT pair_id, symbol1, symbol2, hedge_ratio, half_life, pvalue,
	       spread_mean, spread_std, test_method, is_active, created_at, updated_at
	FROM cointegrated_pairs
	WHERE is_active = 1
	ORDER BY pvalue ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active pairs: %w", err)
	}
	defer rows.Close()

	pairs := make([]*domain.Pair, 0)
	for rows.Next() {
		pair, err := scanPair(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pair during FindActivePairs: %w", err)
		}
		pairs = append(pairs, pair)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pair rows: %w", err)
	}
	return pairs, nil
}

// DeactivatePair marks a pair inactive.
func (r *Repository) DeactivatePair(ctx context.Context, pairID string) error {
	const query = `UPDATE cointegrated_pairs SET is_active = 0, updated_at = ? WHERE pair_id = ?`

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), pairID)
	if err != nil {
		return fmt.Errorf("failed to deactivate pair %s: %w", pairID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for deactivate pair %s: %w", pairID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("pair %s not found for deactivation: %w", pairID, ports.ErrNotFound)
	}
	r.logger.Info(ctx, "Pair deactivated", map[string]interface{}{"pairID": pairID})
	return nil
}

// --- PairStateRepository Implementation ---

// SaveState inserts or updates the machine state for a pair.
func (r *Repository) SaveState(ctx context.Context, state *domain.PairState) error {
	const query = `
	INSERT INTO pair_states (pair_id, symbol1, symbol2, status, entry_zscore, entry_hedge_ratio,
	                         entry_time, entry_price1, entry_price2, scale_level, half_life,
	                         breakdown_count, last_signal_time)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(pair_id) DO UPDATE SET
		status = excluded.status,
		entry_zscore = excluded.entry_zscore,
		entry_hedge_ratio = excluded.entry_hedge_ratio,
		entry_time = excluded.entry_time,
		entry_price1 = excluded.entry_price1,
		entry_price2 = excluded.entry_price2,
		scale_level = excluded.scale_level,
		half_life = excluded.half_life,
		breakdown_count = excluded.breakdown_count,
		last_signal_time = excluded.last_signal_time`

	_, err := r.db.ExecContext(ctx, query,
		state.PairID, state.Symbol1, state.Symbol2, string(state.Status), state.EntryZScore, state.EntryHedgeRatio,
		nullableTime(state.EntryTime), state.EntryPrice1, state.EntryPrice2, state.ScaleLevel, state.HalfLife,
		state.BreakdownCount, nullableTime(state.LastSignalTime))
	if err != nil {
		return fmt.Errorf("failed to save state for pair %s: %w", state.PairID, err)
	}
	r.logger.Debug(ctx, "Pair state saved", map[string]interface{}{"pairID": state.PairID, "status": state.Status})
	return nil
}

// FindStates retrieves all persisted pair states.
func (r *Repository) FindStates(ctx context.Context) ([]*domain.PairState, error) {
	const query = `
	SELECT pair_id, symbol1, symbol2, status, entry_zscore, entry_hedge_ratio,
	       entry_time, entry_price1, entry_price2, scale_level, half_life,
	       breakdown_count, last_signal_time
	FROM pair_states`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pair states: %w", err)
	}
	defer rows.Close()

	states := make([]*domain.PairState, 0)
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pair state during FindStates: %w", err)
		}
		states = append(states, state)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pair state rows: %w", err)
	}
	return states, nil
}

// --- SignalRepository Implementation ---

// SaveSignal persists a signal and returns its assigned ID.
func (r *Repository) SaveSignal(ctx context.Context, sig *domain.Signal) (int64, error) {
	const query = `
	INSERT INTO signal_history (pair_id, signal_type, symbol1, symbol2, zscore, hedge_ratio,
	                            price1, price2, scale_level, reason, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		sig.PairID, string(sig.Type), sig.Symbol1, sig.Symbol2, sig.ZScore, sig.HedgeRatio,
		sig.Price1, sig.Price2, sig.ScaleLevel, sig.Reason, sig.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to insert signal for pair %s: %w", sig.PairID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for signal %s: %w", sig.PairID, err)
	}
	sig.ID = id // Update the domain object with the ID
	r.logger.Debug(ctx, "Signal saved", map[string]interface{}{"signalID": id, "pairID": sig.PairID, "type": sig.Type})
	return id, nil
}

// FindRecentSignals retrieves the most recent signals for a pair, up to a limit.
func (r *Repository) FindRecentSignals(ctx context.Context, pairID string, limit int) ([]*domain.Signal, error) {
	const query = `
	SELECT id, pair_id, signal_type, symbol1, symbol2, zscore, hedge_ratio,
	       price1, price2, scale_level, reason, timestamp
	FROM signal_history
	WHERE pair_id = ? ORDER BY timestamp DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, pairID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals for pair %s: %w", pairID, err)
	}
	defer rows.Close()

	signals := make([]*domain.Signal, 0)
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal during FindRecentSignals: %w", err)
		}
		signals = append(signals, sig)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signal rows: %w", err)
	}
	return signals, nil
}

// --- TradeRepository Implementation ---

// SaveTrade persists a closed simulated trade.
func (r *Repository) SaveTrade(ctx context.Context, trade *domain.SpreadTrade) error {
	const query = `
	INSERT INTO spread_trades (pair_id, symbol1, symbol2, direction, entry_time, exit_time,
	                           entry_zscore, exit_zscore, entry_spread, exit_spread, hedge_ratio,
	                           entry_spread_std, pnl_spread_units, pnl_percent, exit_reason, holding_bars)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		trade.PairID, trade.Symbol1, trade.Symbol2, string(trade.Direction), trade.EntryTime, trade.ExitTime,
		trade.EntryZScore, trade.ExitZScore, trade.EntrySpread, trade.ExitSpread, trade.HedgeRatio,
		trade.EntrySpreadStd, trade.PnLSpreadUnits, trade.PnLPercent, string(trade.ExitReason), trade.HoldingBars)
	if err != nil {
		return fmt.Errorf("failed to insert trade for pair %s: %w", trade.PairID, err)
	}
	r.logger.Debug(ctx, "Trade saved", map[string]interface{}{"pairID": trade.PairID, "pnlPercent": trade.PnLPercent})
	return nil
}

// FindTradesByPair retrieves the most recent trades for a pair, up to a limit.
func (r *Repository) FindTradesByPair(ctx context.Context, pairID string, limit int) ([]*domain.SpreadTrade, error) {
	const query = `
	SELECT pair_id, symbol1, symbol2, direction, entry_time, exit_time,
	       entry_zscore, exit_zscore, entry_spread, exit_spread, hedge_ratio,
	       entry_spread_std, pnl_spread_units, pnl_percent, exit_reason, holding_bars
	FROM spread_trades
	WHERE pair_id = ? ORDER BY entry_time DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, pairID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for pair %s: %w", pairID, err)
	}
	defer rows.Close()

	trades := make([]*domain.SpreadTrade, 0)
	for rows.Next() {
		trade, err := scanSpreadTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during FindTradesByPair: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanPair scans a row into a domain.Pair struct.
func scanPair(s scanner) (*domain.Pair, error) {
	p := &domain.Pair{}
	var testMethod string
	err := s.Scan(
		&p.PairID, &p.Symbol1, &p.Symbol2, &p.HedgeRatio, &p.HalfLife, &p.PValue,
		&p.SpreadMean, &p.SpreadStd, &testMethod, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	p.TestMethod = domain.TestMethod(testMethod)
	return p, nil
}

// scanState scans a row into a domain.PairState struct.
func scanState(s scanner) (*domain.PairState, error) {
	st := &domain.PairState{}
	var status string
	var entryTime, lastSignalTime sql.NullTime
	err := s.Scan(
		&st.PairID, &st.Symbol1, &st.Symbol2, &status, &st.EntryZScore, &st.EntryHedgeRatio,
		&entryTime, &st.EntryPrice1, &st.EntryPrice2, &st.ScaleLevel, &st.HalfLife,
		&st.BreakdownCount, &lastSignalTime)
	if err != nil {
		return nil, err
	}
	st.Status = domain.PositionStatus(status)
	if entryTime.Valid {
		st.EntryTime = entryTime.Time
	}
	if lastSignalTime.Valid {
		st.LastSignalTime = lastSignalTime.Time
	}
	return st, nil
}

// scanSignal scans a row into a domain.Signal struct.
func scanSignal(s scanner) (*domain.Signal, error) {
	sig := &domain.Signal{}
	var sigType string
	var reason sql.NullString
	err := s.Scan(
		&sig.ID, &sig.PairID, &sigType, &sig.Symbol1, &sig.Symbol2, &sig.ZScore, &sig.HedgeRatio,
		&sig.Price1, &sig.Price2, &sig.ScaleLevel, &reason, &sig.Timestamp)
	if err != nil {
		return nil, err
	}
	sig.Type = domain.SignalType(sigType)
	if reason.Valid {
		sig.Reason = reason.String
	}
	return sig, nil
}

// scanSpreadTrade scans a row into a domain.SpreadTrade struct.
func scanSpreadTrade(s scanner) (*domain.SpreadTrade, error) {
	t := &domain.SpreadTrade{}
	var direction, exitReason string
	err := s.Scan(
		&t.PairID, &t.Symbol1, &t.Symbol2, &direction, &t.EntryTime, &t.ExitTime,
		&t.EntryZScore, &t.ExitZScore, &t.EntrySpread, &t.ExitSpread, &t.HedgeRatio,
		&t.EntrySpreadStd, &t.PnLSpreadUnits, &t.PnLPercent, &exitReason, &t.HoldingBars)
	if err != nil {
		return nil, err
	}
	t.Direction = domain.PositionStatus(direction)
	t.ExitReason = domain.ExitReason(exitReason)
	return t, nil
}

// nullableTime converts a zero time to a SQL NULL.
func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
