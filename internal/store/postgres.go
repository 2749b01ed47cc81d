package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pharmadir/internal/db"
	"github.com/sells-group/pharmadir/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS pharmacies (
	external_id  TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	address      TEXT NOT NULL DEFAULT '',
	region       TEXT NOT NULL,
	latitude     DOUBLE PRECISION,
	longitude    DOUBLE PRECISION,
	name_fold    TEXT NOT NULL,
	region_fold  TEXT NOT NULL,
	last_updated TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pharmacies_region ON pharmacies (region);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var pharmacyUpsert = db.UpsertConfig{
	Table: "pharmacies",
	Columns: []string{
		"external_id", "name", "address", "region", "latitude", "longitude",
		"name_fold", "region_fold", "last_updated",
	},
	ConflictKeys: []string{"external_id"},
	UpdateExprs: map[string]string{
		"last_updated": `GREATEST("pharmacies"."last_updated", EXCLUDED."last_updated")`,
	},
}

func (s *PostgresStore) UpsertBatch(ctx context.Context, batch []model.Pharmacy) (UpsertStats, error) {
	var stats UpsertStats
	if len(batch) == 0 {
		return stats, nil
	}

	// A single INSERT ... ON CONFLICT cannot touch the same key twice.
	batch = Dedupe(batch)

	ids := make([]string, len(batch))
	rows := make([][]any, len(batch))
	for i, p := range batch {
		ids[i] = p.ExternalID
		rows[i] = []any{
			p.ExternalID, p.Name, p.Address, p.Region, p.Latitude, p.Longitude,
			Fold(p.Name), Fold(p.Region), p.LastUpdated.UTC(),
		}
	}

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var existing int
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM pharmacies WHERE external_id = ANY($1)`, ids,
		).Scan(&existing); err != nil {
			return eris.Wrap(err, "postgres: count existing")
		}
		if _, err := db.BulkUpsert(ctx, tx, pharmacyUpsert, rows); err != nil {
			return err
		}
		stats = UpsertStats{Inserted: len(batch) - existing, Updated: existing}
		return nil
	})
	if err != nil {
		return UpsertStats{}, eris.Wrap(err, "postgres: upsert batch")
	}
	return stats, nil
}

const postgresColumns = `external_id, name, address, region, latitude, longitude, last_updated`

func (s *PostgresStore) Search(ctx context.Context, filter SearchFilter) ([]model.Pharmacy, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+postgresColumns+` FROM pharmacies
		 WHERE ($1 = '' OR strpos(region_fold, $1) > 0)
		   AND ($2 = '' OR strpos(name_fold, $2) > 0)
		 ORDER BY region, name, external_id
		 LIMIT $3`,
		Fold(filter.Region), Fold(filter.Name), searchLimit(filter.Limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search")
	}
	defer rows.Close()

	out := []model.Pharmacy{}
	for rows.Next() {
		p, err := scanPostgresPharmacy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: search iterate")
}

func (s *PostgresStore) Get(ctx context.Context, externalID string) (*model.Pharmacy, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresColumns+` FROM pharmacies WHERE external_id = $1`, externalID)
	p, err := scanPostgresPharmacy(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM pharmacies`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count")
}

func (s *PostgresStore) CountByRegion(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT region, count(*) FROM pharmacies GROUP BY region`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by region")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var region string
		var n int
		if err := rows.Scan(&region, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan region count")
		}
		counts[region] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count by region iterate")
}

func scanPostgresPharmacy(row pgx.Row) (*model.Pharmacy, error) {
	var p model.Pharmacy
	if err := row.Scan(&p.ExternalID, &p.Name, &p.Address, &p.Region, &p.Latitude, &p.Longitude, &p.LastUpdated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan pharmacy")
	}
	p.LastUpdated = p.LastUpdated.UTC()
	return &p, nil
}
