package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/pharmadir/internal/model"
)

// sqlitePragmas are applied by the driver to every pooled connection.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path in WAL mode, so
// searches keep reading the last committed state while a batch is written.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: db}, nil
}

func sqliteDSN(path string) string {
	var b strings.Builder
	b.WriteString(path)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	for _, p := range sqlitePragmas {
		b.WriteString(sep + "_pragma=" + p)
		sep = "&"
	}
	// Writers take the lock up front instead of upgrading mid-transaction.
	b.WriteString("&_txlock=immediate")
	return b.String()
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS pharmacies (
	external_id  TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	address      TEXT NOT NULL DEFAULT '',
	region       TEXT NOT NULL,
	latitude     REAL,
	longitude    REAL,
	name_fold    TEXT NOT NULL,
	region_fold  TEXT NOT NULL,
	last_updated INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pharmacies_region ON pharmacies(region);
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

const sqliteUpsert = `
INSERT INTO pharmacies (external_id, name, address, region, latitude, longitude, name_fold, region_fold, last_updated)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (external_id) DO UPDATE SET
	name         = excluded.name,
	address      = excluded.address,
	region       = excluded.region,
	latitude     = excluded.latitude,
	longitude    = excluded.longitude,
	name_fold    = excluded.name_fold,
	region_fold  = excluded.region_fold,
	last_updated = MAX(pharmacies.last_updated, excluded.last_updated)`

func (s *SQLiteStore) UpsertBatch(ctx context.Context, batch []model.Pharmacy) (UpsertStats, error) {
	var stats UpsertStats
	if len(batch) == 0 {
		return stats, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	exists, err := tx.PrepareContext(ctx, `SELECT 1 FROM pharmacies WHERE external_id = ?`)
	if err != nil {
		return stats, eris.Wrap(err, "sqlite: prepare lookup")
	}
	defer exists.Close() //nolint:errcheck

	upsert, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return stats, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer upsert.Close() //nolint:errcheck

	for _, p := range batch {
		var one int
		err := exists.QueryRowContext(ctx, p.ExternalID).Scan(&one)
		switch {
		case err == sql.ErrNoRows:
			stats.Inserted++
		case err != nil:
			return UpsertStats{}, eris.Wrapf(err, "sqlite: lookup %s", p.ExternalID)
		default:
			stats.Updated++
		}

		_, err = upsert.ExecContext(ctx,
			p.ExternalID, p.Name, p.Address, p.Region,
			nullFloat(p.Latitude), nullFloat(p.Longitude),
			Fold(p.Name), Fold(p.Region), p.LastUpdated.UTC().UnixNano(),
		)
		if err != nil {
			return UpsertStats{}, eris.Wrapf(err, "sqlite: upsert %s", p.ExternalID)
		}
	}

	if err := tx.Commit(); err != nil {
		return UpsertStats{}, eris.Wrap(err, "sqlite: commit upsert")
	}
	return stats, nil
}

const sqliteColumns = `external_id, name, address, region, latitude, longitude, last_updated`

func (s *SQLiteStore) Search(ctx context.Context, filter SearchFilter) ([]model.Pharmacy, error) {
	region, name := Fold(filter.Region), Fold(filter.Name)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM pharmacies
		 WHERE (? = '' OR instr(region_fold, ?) > 0)
		   AND (? = '' OR instr(name_fold, ?) > 0)
		 ORDER BY region, name, external_id
		 LIMIT ?`,
		region, region, name, name, searchLimit(filter.Limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.Pharmacy{}
	for rows.Next() {
		p, err := scanSQLitePharmacy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: search iterate")
}

func (s *SQLiteStore) Get(ctx context.Context, externalID string) (*model.Pharmacy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM pharmacies WHERE external_id = ?`, externalID)
	p, err := scanSQLitePharmacy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM pharmacies`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count")
}

func (s *SQLiteStore) CountByRegion(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT region, count(*) FROM pharmacies GROUP BY region`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by region")
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[string]int)
	for rows.Next() {
		var region string
		var n int
		if err := rows.Scan(&region, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region count")
		}
		counts[region] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count by region iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLitePharmacy(row scannable) (*model.Pharmacy, error) {
	var p model.Pharmacy
	var lat, lon sql.NullFloat64
	var updated int64
	if err := row.Scan(&p.ExternalID, &p.Name, &p.Address, &p.Region, &lat, &lon, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan pharmacy")
	}
	if lat.Valid && lon.Valid {
		p.Latitude, p.Longitude = &lat.Float64, &lon.Float64
	}
	p.LastUpdated = time.Unix(0, updated).UTC()
	return &p, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
