// Package store persists pharmacies and serves the read side of the directory.
package store

import (
	"context"

	"golang.org/x/text/cases"

	"github.com/sells-group/pharmadir/internal/model"
)

// defaultSearchLimit applies when a caller passes a non-positive limit.
const defaultSearchLimit = 300

// SearchFilter narrows a pharmacy search. Empty fields do not filter.
type SearchFilter struct {
	Region string `json:"wilaya,omitempty"`
	Name   string `json:"q,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// UpsertStats counts what a batch did to the table.
type UpsertStats struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// Store defines the persistence interface for the pharmacy directory.
type Store interface {
	// UpsertBatch writes the batch in one transaction, inserting unknown
	// external ids and overwriting known ones. Nothing is written on error.
	UpsertBatch(ctx context.Context, batch []model.Pharmacy) (UpsertStats, error)

	// Reads
	Search(ctx context.Context, filter SearchFilter) ([]model.Pharmacy, error)
	Get(ctx context.Context, externalID string) (*model.Pharmacy, error)
	Count(ctx context.Context) (int, error)
	CountByRegion(ctx context.Context) (map[string]int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Fold returns the caseless form of s used by the folded search columns.
func Fold(s string) string {
	// A Caser holds state and must not be shared between goroutines.
	return cases.Fold().String(s)
}

// Dedupe drops earlier records that share an external id with a later one,
// keeping the order of the surviving records.
func Dedupe(batch []model.Pharmacy) []model.Pharmacy {
	last := make(map[string]int, len(batch))
	for i, p := range batch {
		last[p.ExternalID] = i
	}
	if len(last) == len(batch) {
		return batch
	}
	out := make([]model.Pharmacy, 0, len(last))
	for i, p := range batch {
		if last[p.ExternalID] == i {
			out = append(out, p)
		}
	}
	return out
}

func searchLimit(n int) int {
	if n <= 0 {
		return defaultSearchLimit
	}
	return n
}
