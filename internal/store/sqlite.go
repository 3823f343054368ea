package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/plateful/pricing-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// development and the one-shot `quote` command, where standing up Postgres
// is not worth it.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS base_fee_config (
	id          TEXT PRIMARY KEY,
	amount      REAL NOT NULL,
	minimum_fee REAL,
	maximum_fee REAL,
	active      INTEGER NOT NULL DEFAULT 1,
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS distance_rates (
	id     TEXT PRIMARY KEY,
	min_km REAL NOT NULL,
	max_km REAL,
	rate   REAL NOT NULL,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS time_surges (
	id          TEXT PRIMARY KEY,
	day_of_week INTEGER,
	start_time  TEXT NOT NULL,
	end_time    TEXT NOT NULL,
	amount      REAL NOT NULL,
	active      INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS weather_surges (
	id          TEXT PRIMARY KEY,
	condition   TEXT NOT NULL UNIQUE,
	flat_amount REAL,
	multiplier  REAL,
	active      INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS demand_surges (
	id                  TEXT PRIMARY KEY,
	min_orders_per_hour INTEGER NOT NULL,
	max_orders_per_hour INTEGER,
	multiplier          REAL NOT NULL,
	active              INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS special_day_surges (
	id          TEXT PRIMARY KEY,
	surge_date  TEXT NOT NULL UNIQUE,
	flat_amount REAL,
	multiplier  REAL,
	reason      TEXT NOT NULL DEFAULT '',
	active      INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS promos (
	id          TEXT PRIMARY KEY,
	code        TEXT NOT NULL UNIQUE,
	percent_off REAL NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	active      INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS restaurant_demand (
	restaurant_id   TEXT NOT NULL,
	orders_per_hour INTEGER NOT NULL,
	sampled_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (restaurant_id, sampled_at)
);

CREATE INDEX IF NOT EXISTS idx_distance_rates_active ON distance_rates(active, min_km);
CREATE INDEX IF NOT EXISTS idx_restaurant_demand_lookup ON restaurant_demand(restaurant_id, sampled_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- reads ---

func (s *SQLiteStore) ActiveBaseFeeConfig(ctx context.Context) (*model.BaseFeeConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, amount, minimum_fee, maximum_fee, active FROM base_fee_config WHERE active = 1 ORDER BY updated_at DESC LIMIT 1`)

	var cfg model.BaseFeeConfig
	err := row.Scan(&cfg.ID, &cfg.Amount, &cfg.MinimumFee, &cfg.MaximumFee, &cfg.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get base fee config")
	}
	return &cfg, nil
}

func (s *SQLiteStore) ActiveDistanceRates(ctx context.Context) ([]model.DistanceRate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, min_km, max_km, rate, active FROM distance_rates WHERE active = 1 ORDER BY min_km ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list distance rates")
	}
	defer rows.Close()

	var rates []model.DistanceRate
	for rows.Next() {
		var r model.DistanceRate
		if err := rows.Scan(&r.ID, &r.MinKm, &r.MaxKm, &r.Rate, &r.Active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan distance rate")
		}
		rates = append(rates, r)
	}
	return rates, eris.Wrap(rows.Err(), "sqlite: iterate distance rates")
}

func (s *SQLiteStore) ActiveTimeSurges(ctx context.Context) ([]model.TimeSurge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, day_of_week, start_time, end_time, amount, active FROM time_surges WHERE active = 1 ORDER BY start_time ASC, id ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list time surges")
	}
	defer rows.Close()

	var surges []model.TimeSurge
	for rows.Next() {
		var ts model.TimeSurge
		var dow sql.NullInt64
		if err := rows.Scan(&ts.ID, &dow, &ts.StartTime, &ts.EndTime, &ts.Amount, &ts.Active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan time surge")
		}
		if dow.Valid {
			wd := time.Weekday(dow.Int64)
			ts.DayOfWeek = &wd
		}
		surges = append(surges, ts)
	}
	return surges, eris.Wrap(rows.Err(), "sqlite: iterate time surges")
}

func (s *SQLiteStore) WeatherSurge(ctx context.Context, condition model.WeatherCondition) (*model.WeatherSurge, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, condition, flat_amount, multiplier, active FROM weather_surges WHERE active = 1 AND condition = ? LIMIT 1`,
		string(condition))

	var ws model.WeatherSurge
	err := row.Scan(&ws.ID, &ws.Condition, &ws.FlatAmount, &ws.Multiplier, &ws.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get weather surge %s", condition)
	}
	return &ws, nil
}

func (s *SQLiteStore) ActiveDemandSurges(ctx context.Context) ([]model.DemandSurge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, min_orders_per_hour, max_orders_per_hour, multiplier, active FROM demand_surges WHERE active = 1 ORDER BY min_orders_per_hour ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list demand surges")
	}
	defer rows.Close()

	var surges []model.DemandSurge
	for rows.Next() {
		var ds model.DemandSurge
		if err := rows.Scan(&ds.ID, &ds.MinOrdersPerHour, &ds.MaxOrdersPerHour, &ds.Multiplier, &ds.Active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan demand surge")
		}
		surges = append(surges, ds)
	}
	return surges, eris.Wrap(rows.Err(), "sqlite: iterate demand surges")
}

func (s *SQLiteStore) SpecialDaySurge(ctx context.Context, date string) (*model.SpecialDaySurge, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, surge_date, flat_amount, multiplier, reason, active FROM special_day_surges WHERE active = 1 AND surge_date = ? LIMIT 1`,
		date)

	var sd model.SpecialDaySurge
	err := row.Scan(&sd.ID, &sd.Date, &sd.FlatAmount, &sd.Multiplier, &sd.Reason, &sd.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get special day surge %s", date)
	}
	return &sd, nil
}

func (s *SQLiteStore) Promo(ctx context.Context, code string) (*model.PromoConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, code, percent_off, description, active FROM promos WHERE active = 1 AND code = ? LIMIT 1`,
		code)

	var p model.PromoConfig
	err := row.Scan(&p.ID, &p.Code, &p.PercentOff, &p.Description, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get promo %s", code)
	}
	return &p, nil
}

func (s *SQLiteStore) RestaurantOrdersPerHour(ctx context.Context, restaurantID string) (*int, error) {
	cutoff := time.Now().UTC().Add(-demandSampleMaxAge)
	row := s.db.QueryRowContext(ctx,
		`SELECT orders_per_hour FROM restaurant_demand WHERE restaurant_id = ? AND sampled_at > ? ORDER BY sampled_at DESC LIMIT 1`,
		restaurantID, cutoff)

	var oph int
	err := row.Scan(&oph)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get demand for %s", restaurantID)
	}
	return &oph, nil
}

// --- admin writes ---

func (s *SQLiteStore) UpsertBaseFeeConfig(ctx context.Context, cfg model.BaseFeeConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	id := cfg.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO base_fee_config (id, amount, minimum_fee, maximum_fee, active, updated_at)
		VALUES (?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (id) DO UPDATE SET
			amount = excluded.amount,
			minimum_fee = excluded.minimum_fee,
			maximum_fee = excluded.maximum_fee,
			active = excluded.active,
			updated_at = datetime('now')`,
		id, cfg.Amount, cfg.MinimumFee, cfg.MaximumFee, cfg.Active)
	return eris.Wrap(err, "sqlite: upsert base fee config")
}

func (s *SQLiteStore) ReplaceDistanceRates(ctx context.Context, rates []model.DistanceRate) error {
	for _, r := range rates {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: replace distance rates: begin")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM distance_rates`); err != nil {
		return eris.Wrap(err, "sqlite: replace distance rates: clear")
	}

	for _, r := range rates {
		id := r.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO distance_rates (id, min_km, max_km, rate, active) VALUES (?, ?, ?, ?, ?)`,
			id, r.MinKm, r.MaxKm, r.Rate, r.Active); err != nil {
			return eris.Wrap(err, "sqlite: replace distance rates: insert")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: replace distance rates: commit")
}

func (s *SQLiteStore) UpsertTimeSurge(ctx context.Context, surge model.TimeSurge) error {
	if err := surge.Validate(); err != nil {
		return err
	}
	id := surge.ID
	if id == "" {
		id = uuid.New().String()
	}
	var dow any
	if surge.DayOfWeek != nil {
		dow = int(*surge.DayOfWeek)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO time_surges (id, day_of_week, start_time, end_time, amount, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			day_of_week = excluded.day_of_week,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			amount = excluded.amount,
			active = excluded.active`,
		id, dow, surge.StartTime, surge.EndTime, surge.Amount, surge.Active)
	return eris.Wrap(err, "sqlite: upsert time surge")
}

func (s *SQLiteStore) UpsertWeatherSurge(ctx context.Context, surge model.WeatherSurge) error {
	if err := surge.Validate(); err != nil {
		return err
	}
	id := surge.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weather_surges (id, condition, flat_amount, multiplier, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (condition) DO UPDATE SET
			flat_amount = excluded.flat_amount,
			multiplier = excluded.multiplier,
			active = excluded.active`,
		id, string(surge.Condition), surge.FlatAmount, surge.Multiplier, surge.Active)
	return eris.Wrap(err, "sqlite: upsert weather surge")
}

func (s *SQLiteStore) UpsertDemandSurge(ctx context.Context, surge model.DemandSurge) error {
	if err := surge.Validate(); err != nil {
		return err
	}
	id := surge.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO demand_surges (id, min_orders_per_hour, max_orders_per_hour, multiplier, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			min_orders_per_hour = excluded.min_orders_per_hour,
			max_orders_per_hour = excluded.max_orders_per_hour,
			multiplier = excluded.multiplier,
			active = excluded.active`,
		id, surge.MinOrdersPerHour, surge.MaxOrdersPerHour, surge.Multiplier, surge.Active)
	return eris.Wrap(err, "sqlite: upsert demand surge")
}

func (s *SQLiteStore) UpsertSpecialDaySurge(ctx context.Context, surge model.SpecialDaySurge) error {
	if err := surge.Validate(); err != nil {
		return err
	}
	id := surge.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO special_day_surges (id, surge_date, flat_amount, multiplier, reason, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (surge_date) DO UPDATE SET
			flat_amount = excluded.flat_amount,
			multiplier = excluded.multiplier,
			reason = excluded.reason,
			active = excluded.active`,
		id, surge.Date, surge.FlatAmount, surge.Multiplier, surge.Reason, surge.Active)
	return eris.Wrap(err, "sqlite: upsert special day surge")
}

func (s *SQLiteStore) UpsertPromo(ctx context.Context, promo model.PromoConfig) error {
	if err := promo.Validate(); err != nil {
		return err
	}
	id := promo.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO promos (id, code, percent_off, description, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET
			percent_off = excluded.percent_off,
			description = excluded.description,
			active = excluded.active`,
		id, promo.Code, promo.PercentOff, promo.Description, promo.Active)
	return eris.Wrap(err, "sqlite: upsert promo")
}
