package config

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Refresh interval bounds.
const (
	MinRefreshInterval     = 10 * time.Second
	MaxRefreshInterval     = 300 * time.Second
	DefaultRefreshInterval = 60 * time.Second
)

// ErrInvalidRefreshInterval is returned for intervals that do not parse or
// fall outside the allowed range.
var ErrInvalidRefreshInterval = errors.New("invalid refresh_interval")

const (
	keyRefreshInterval = "refresh_interval"
	keyEnrich          = "enrich"
)

// SettingsStore persists the runtime settings of the monitor using SQLite.
type SettingsStore struct {
	db       *sql.DB
	defaults Settings
}

// Settings are the values that can change while the monitor runs.
type Settings struct {
	RefreshInterval string `json:"refresh_interval"`
	Enrich          bool   `json:"enrich"`
}

// SettingsUpdate is a partial change to Settings. Nil fields are left alone.
type SettingsUpdate struct {
	RefreshInterval *string `json:"refresh_interval"`
	Enrich          *bool   `json:"enrich"`
}

// Interval returns the parsed refresh interval, clamped to the allowed range.
func (s Settings) Interval() time.Duration {
	d, err := time.ParseDuration(s.RefreshInterval)
	if err != nil {
		return DefaultRefreshInterval
	}
	return ClampRefreshInterval(d)
}

// ClampRefreshInterval forces d into [MinRefreshInterval, MaxRefreshInterval].
// Zero or negative means the default.
func ClampRefreshInterval(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultRefreshInterval
	case d < MinRefreshInterval:
		return MinRefreshInterval
	case d > MaxRefreshInterval:
		return MaxRefreshInterval
	}
	return d
}

// ValidateRefreshInterval checks that interval parses and lies inside the
// allowed range.
func ValidateRefreshInterval(interval string) error {
	d, err := time.ParseDuration(interval)
	if err != nil {
		return fmt.Errorf("%w: must be a valid duration (e.g., 30s, 2m)", ErrInvalidRefreshInterval)
	}
	if d < MinRefreshInterval || d > MaxRefreshInterval {
		return fmt.Errorf("%w: must be between %v and %v", ErrInvalidRefreshInterval, MinRefreshInterval, MaxRefreshInterval)
	}
	return nil
}

// NewSettingsStore opens the settings database at dbPath. Keys that were
// never written read back as defaults.
func NewSettingsStore(dbPath string, defaults Settings) (*SettingsStore, error) {
	if defaults.RefreshInterval == "" {
		defaults.RefreshInterval = DefaultRefreshInterval.String()
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SettingsStore{db: db, defaults: defaults}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (c *SettingsStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := c.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (c *SettingsStore) Close() error {
	return c.db.Close()
}

// GetSettings returns the stored settings over the defaults.
func (c *SettingsStore) GetSettings() (*Settings, error) {
	rows, err := c.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := c.defaults
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}

		switch key {
		case keyRefreshInterval:
			settings.RefreshInterval = value
		case keyEnrich:
			enrich, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("failed to parse stored enrich value %q: %w", value, err)
			}
			settings.Enrich = enrich
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	return &settings, nil
}

// UpdateSettings validates and writes the non-nil fields of update, then
// returns the resulting settings.
func (c *SettingsStore) UpdateSettings(update SettingsUpdate) (*Settings, error) {
	values := map[string]string{}
	if update.RefreshInterval != nil {
		if err := ValidateRefreshInterval(*update.RefreshInterval); err != nil {
			return nil, err
		}
		d, _ := time.ParseDuration(*update.RefreshInterval)
		values[keyRefreshInterval] = d.String()
	}
	if update.Enrich != nil {
		values[keyEnrich] = strconv.FormatBool(*update.Enrich)
	}

	if len(values) > 0 {
		tx, err := c.db.Begin()
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		for key, value := range values {
			if _, err := tx.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value); err != nil {
				tx.Rollback()
				return nil, fmt.Errorf("failed to update setting %s: %w", key, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit settings: %w", err)
		}
	}

	return c.GetSettings()
}
