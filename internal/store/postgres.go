package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/plateful/pricing-engine/internal/db"
	"github.com/plateful/pricing-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection. These
// are the reads behind every cache miss on the quote path, so they are the
// hottest statements in the service.
var preparedStatements = map[string]string{
	"active_base_fee":     `SELECT id, amount, minimum_fee, maximum_fee, active FROM base_fee_config WHERE active ORDER BY updated_at DESC LIMIT 1`,
	"active_distance":     `SELECT id, min_km, max_km, rate, active FROM distance_rates WHERE active ORDER BY min_km ASC`,
	"active_time_surges":  `SELECT id, day_of_week, start_time, end_time, amount, active FROM time_surges WHERE active ORDER BY start_time ASC, id ASC`,
	"weather_surge":       `SELECT id, condition, flat_amount, multiplier, active FROM weather_surges WHERE active AND condition = $1 LIMIT 1`,
	"active_demand":       `SELECT id, min_orders_per_hour, max_orders_per_hour, multiplier, active FROM demand_surges WHERE active ORDER BY min_orders_per_hour ASC`,
	"special_day_surge":   `SELECT id, surge_date, flat_amount, multiplier, reason, active FROM special_day_surges WHERE active AND surge_date = $1 LIMIT 1`,
	"promo_by_code":       `SELECT id, code, percent_off, description, active FROM promos WHERE active AND code = $1 LIMIT 1`,
	"restaurant_demand":   `SELECT orders_per_hour FROM restaurant_demand WHERE restaurant_id = $1 AND sampled_at > $2 ORDER BY sampled_at DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., bulk seeding).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS base_fee_config (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	amount      DOUBLE PRECISION NOT NULL,
	minimum_fee DOUBLE PRECISION,
	maximum_fee DOUBLE PRECISION,
	active      BOOLEAN NOT NULL DEFAULT true,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS distance_rates (
	id     TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	min_km DOUBLE PRECISION NOT NULL,
	max_km DOUBLE PRECISION,
	rate   DOUBLE PRECISION NOT NULL,
	active BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS time_surges (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	day_of_week SMALLINT,
	start_time  TEXT NOT NULL,
	end_time    TEXT NOT NULL,
	amount      DOUBLE PRECISION NOT NULL,
	active      BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS weather_surges (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	condition   TEXT NOT NULL UNIQUE,
	flat_amount DOUBLE PRECISION,
	multiplier  DOUBLE PRECISION,
	active      BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS demand_surges (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	min_orders_per_hour INTEGER NOT NULL,
	max_orders_per_hour INTEGER,
	multiplier          DOUBLE PRECISION NOT NULL,
	active              BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS special_day_surges (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	surge_date  TEXT NOT NULL UNIQUE,
	flat_amount DOUBLE PRECISION,
	multiplier  DOUBLE PRECISION,
	reason      TEXT NOT NULL DEFAULT '',
	active      BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS promos (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	code        TEXT NOT NULL UNIQUE,
	percent_off DOUBLE PRECISION NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	active      BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS restaurant_demand (
	restaurant_id   TEXT NOT NULL,
	orders_per_hour INTEGER NOT NULL,
	sampled_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (restaurant_id, sampled_at)
);

CREATE INDEX IF NOT EXISTS idx_base_fee_active ON base_fee_config(active, updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_distance_rates_active ON distance_rates(active, min_km);
CREATE INDEX IF NOT EXISTS idx_time_surges_active ON time_surges(active);
CREATE INDEX IF NOT EXISTS idx_demand_surges_active ON demand_surges(active, min_orders_per_hour);
CREATE INDEX IF NOT EXISTS idx_restaurant_demand_lookup ON restaurant_demand(restaurant_id, sampled_at DESC);
`

// Migrate applies the schema. Safe to run repeatedly.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- reads ---

func (s *PostgresStore) ActiveBaseFeeConfig(ctx context.Context) (*model.BaseFeeConfig, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, amount, minimum_fee, maximum_fee, active FROM base_fee_config WHERE active ORDER BY updated_at DESC LIMIT 1`)

	var cfg model.BaseFeeConfig
	err := row.Scan(&cfg.ID, &cfg.Amount, &cfg.MinimumFee, &cfg.MaximumFee, &cfg.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get base fee config")
	}
	return &cfg, nil
}

func (s *PostgresStore) ActiveDistanceRates(ctx context.Context) ([]model.DistanceRate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, min_km, max_km, rate, active FROM distance_rates WHERE active ORDER BY min_km ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list distance rates")
	}
	defer rows.Close()

	var rates []model.DistanceRate
	for rows.Next() {
		var r model.DistanceRate
		if err := rows.Scan(&r.ID, &r.MinKm, &r.MaxKm, &r.Rate, &r.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan distance rate")
		}
		rates = append(rates, r)
	}
	return rates, eris.Wrap(rows.Err(), "postgres: iterate distance rates")
}

func (s *PostgresStore) ActiveTimeSurges(ctx context.Context) ([]model.TimeSurge, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, day_of_week, start_time, end_time, amount, active FROM time_surges WHERE active ORDER BY start_time ASC, id ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list time surges")
	}
	defer rows.Close()

	var surges []model.TimeSurge
	for rows.Next() {
		var ts model.TimeSurge
		var dow *int16
		if err := rows.Scan(&ts.ID, &dow, &ts.StartTime, &ts.EndTime, &ts.Amount, &ts.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan time surge")
		}
		if dow != nil {
			wd := time.Weekday(*dow)
			ts.DayOfWeek = &wd
		}
		surges = append(surges, ts)
	}
	return surges, eris.Wrap(rows.Err(), "postgres: iterate time surges")
}

func (s *PostgresStore) WeatherSurge(ctx context.Context, condition model.WeatherCondition) (*model.WeatherSurge, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, condition, flat_amount, multiplier, active FROM weather_surges WHERE active AND condition = $1 LIMIT 1`,
		string(condition))

	var ws model.WeatherSurge
	err := row.Scan(&ws.ID, &ws.Condition, &ws.FlatAmount, &ws.Multiplier, &ws.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get weather surge %s", condition)
	}
	return &ws, nil
}

func (s *PostgresStore) ActiveDemandSurges(ctx context.Context) ([]model.DemandSurge, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, min_orders_per_hour, max_orders_per_hour, multiplier, active FROM demand_surges WHERE active ORDER BY min_orders_per_hour ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list demand surges")
	}
	defer rows.Close()

	var surges []model.DemandSurge
	for rows.Next() {
		var ds model.DemandSurge
		if err := rows.Scan(&ds.ID, &ds.MinOrdersPerHour, &ds.MaxOrdersPerHour, &ds.Multiplier, &ds.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan demand surge")
		}
		surges = append(surges, ds)
	}
	return surges, eris.Wrap(rows.Err(), "postgres: iterate demand surges")
}

func (s *PostgresStore) SpecialDaySurge(ctx context.Context, date string) (*model.SpecialDaySurge, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, surge_date, flat_amount, multiplier, reason, active FROM special_day_surges WHERE active AND surge_date = $1 LIMIT 1`,
		date)

	var sd model.SpecialDaySurge
	err := row.Scan(&sd.ID, &sd.Date, &sd.FlatAmount, &sd.Multiplier, &sd.Reason, &sd.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get special day surge %s", date)
	}
	return &sd, nil
}

func (s *PostgresStore) Promo(ctx context.Context, code string) (*model.PromoConfig, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, code, percent_off, description, active FROM promos WHERE active AND code = $1 LIMIT 1`,
		code)

	var p model.PromoConfig
	err := row.Scan(&p.ID, &p.Code, &p.PercentOff, &p.Description, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get promo %s", code)
	}
	return &p, nil
}

func (s *PostgresStore) RestaurantOrdersPerHour(ctx context.Context, restaurantID string) (*int, error) {
	cutoff := time.Now().UTC().Add(-demandSampleMaxAge)
	row := s.pool.QueryRow(ctx,
		`SELECT orders_per_hour FROM restaurant_demand WHERE restaurant_id = $1 AND sampled_at > $2 ORDER BY sampled_at DESC LIMIT 1`,
		restaurantID, cutoff)

	var oph int
	err := row.Scan(&oph)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get demand for %s", restaurantID)
	}
	return &oph, nil
}

// --- admin writes ---

func (s *PostgresStore) UpsertBaseFeeConfig(ctx context.Context, cfg model.BaseFeeConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	id := cfg.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO base_fee_config (id, amount, minimum_fee, maximum_fee, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
			amount = EXCLUDED.amount,
			minimum_fee = EXCLUDED.minimum_fee,
			maximum_fee = EXCLUDED.maximum_fee,
			active = EXCLUDED.active,
			updated_at = now()`,
		id, cfg.Amount, cfg.MinimumFee, cfg.MaximumFee, cfg.Active)
	return eris.Wrap(err, "postgres: upsert base fee config")
}

// ReplaceDistanceRates swaps the whole distance-rate table atomically. The
// table is small and bands must be read as a consistent set, so a full
// replace via COPY is simpler and safer than per-band upserts.
func (s *PostgresStore) ReplaceDistanceRates(ctx context.Context, rates []model.DistanceRate) error {
	for _, r := range rates {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: replace distance rates: begin")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM distance_rates`); err != nil {
		return eris.Wrap(err, "postgres: replace distance rates: clear")
	}

	rows := make([][]any, 0, len(rates))
	for _, r := range rates {
		id := r.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows = append(rows, []any{id, r.MinKm, r.MaxKm, r.Rate, r.Active})
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"distance_rates"},
			[]string{"id", "min_km", "max_km", "rate", "active"},
			pgx.CopyFromRows(rows)); err != nil {
			return eris.Wrap(err, "postgres: replace distance rates: copy")
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: replace distance rates: commit")
}

func (s *PostgresStore) UpsertTimeSurge(ctx context.Context, surge model.TimeSurge) error {
	if err := surge.Validate(); err != nil {
		return err
	}
	id := surge.ID
	if id == "" {
		id = uuid.New().String()
	}
	var dow *int16
	if surge.DayOfWeek != nil {
		d := int16(*surge.DayOfWeek)
		dow = &d
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO time_surges (id, day_of_week, start_time, end_time, amount, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			day_of_week = EXCLUDED.day_of_week,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			amount = EXCLUDED.amount,
			active = EXCLUDED.active`,
		id, dow, surge.StartTime, surge.EndTime, surge.Amount, surge.Active)
	return eris.Wrap(err, "postgres: upsert time surge")
}

func (s *PostgresStore) UpsertWeatherSurge(ctx context.Context, surge model.WeatherSurge) error {
	if err := surge.Validate(); err != nil {
		return err
	}
	id := surge.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO weather_surges (id, condition, flat_amount, multiplier, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (condition) DO UPDATE SET
			flat_amount = EXCLUDED.flat_amount,
			multiplier = EXCLUDED.multiplier,
			active = EXCLUDED.active`,
		id, string(surge.Condition), surge.FlatAmount, surge.Multiplier, surge.Active)
	return eris.Wrap(err, "postgres: upsert weather surge")
}

func (s *PostgresStore) UpsertDemandSurge(ctx context.Context, surge model.DemandSurge) error {
	if err := surge.Validate(); err != nil {
		return err
	}
	id := surge.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO demand_surges (id, min_orders_per_hour, max_orders_per_hour, multiplier, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			min_orders_per_hour = EXCLUDED.min_orders_per_hour,
			max_orders_per_hour = EXCLUDED.max_orders_per_hour,
			multiplier = EXCLUDED.multiplier,
			active = EXCLUDED.active`,
		id, surge.MinOrdersPerHour, surge.MaxOrdersPerHour, surge.Multiplier, surge.Active)
	return eris.Wrap(err, "postgres: upsert demand surge")
}

func (s *PostgresStore) UpsertSpecialDaySurge(ctx context.Context, surge model.SpecialDaySurge) error {
	if err := surge.Validate(); err != nil {
		return err
	}
	id := surge.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO special_day_surges (id, surge_date, flat_amount, multiplier, reason, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (surge_date) DO UPDATE SET
			flat_amount = EXCLUDED.flat_amount,
			multiplier = EXCLUDED.multiplier,
			reason = EXCLUDED.reason,
			active = EXCLUDED.active`,
		id, surge.Date, surge.FlatAmount, surge.Multiplier, surge.Reason, surge.Active)
	return eris.Wrap(err, "postgres: upsert special day surge")
}

func (s *PostgresStore) UpsertPromo(ctx context.Context, promo model.PromoConfig) error {
	if err := promo.Validate(); err != nil {
		return err
	}
	id := promo.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO promos (id, code, percent_off, description, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			percent_off = EXCLUDED.percent_off,
			description = EXCLUDED.description,
			active = EXCLUDED.active`,
		id, promo.Code, promo.PercentOff, promo.Description, promo.Active)
	return eris.Wrap(err, "postgres: upsert promo")
}
