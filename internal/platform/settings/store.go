package settings

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/rescue/rescue/internal/platform/db"
)

// Setting is one row of the settings table.
type Setting struct {
	Key         string    `db:"key" json:"key"`
	Value       string    `db:"value" json:"value"`
	Description *string   `db:"description" json:"description,omitempty"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Store is the PostgreSQL-backed Provider.
type Store struct {
	db      db.DB
	timeout time.Duration
	logger  zerolog.Logger
}

func NewStore(database db.DB, timeout time.Duration, logger zerolog.Logger) *Store {
	return &Store{
		db:      database,
		timeout: timeout,
		logger:  logger.With().Str("component", "settings").Logger(),
	}
}

// Get returns the raw value of key and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := db.Bound(ctx, s.timeout)
	defer cancel()

	var value string
	err := db.Conn(ctx, s.db).QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if db.IsNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// GetFloat parses key as a positive finite number. Missing keys and values
// that do not parse to one yield def.
func (s *Store) GetFloat(ctx context.Context, key string, def float64) (float64, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !ValidPositive(v) {
		s.logger.Warn().Str("key", key).Str("value", raw).Float64("default", def).Msg("unparseable numeric setting, using default")
		return def, nil
	}
	return v, nil
}

// Set creates or replaces a setting.
func (s *Store) Set(ctx context.Context, key, value string, description *string) error {
	ctx, cancel := db.Bound(ctx, s.timeout)
	defer cancel()

	_, err := db.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO settings (key, value, description, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    description = COALESCE(EXCLUDED.description, settings.description),
		    updated_at = NOW()`,
		key, value, description)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// List returns all settings ordered by key.
func (s *Store) List(ctx context.Context) ([]*Setting, error) {
	ctx, cancel := db.Bound(ctx, s.timeout)
	defer cancel()

	rows, err := db.Conn(ctx, s.db).Query(ctx, `SELECT key, value, description, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var out []*Setting
	for rows.Next() {
		var st Setting
		if err := rows.Scan(&st.Key, &st.Value, &st.Description, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out = append(out, &st)
	}
	return out, rows.Err()
}

// ValidPositive reports whether v is finite and greater than zero.
func ValidPositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
