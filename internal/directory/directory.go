// Package directory is the read side of the pharmacy directory.
package directory

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pharmadir/internal/model"
	"github.com/sells-group/pharmadir/internal/region"
	"github.com/sells-group/pharmadir/internal/store"
)

const (
	DefaultLimit = 300
	MaxLimit     = 1000
)

// Reader is the part of the store the directory reads from.
type Reader interface {
	Search(ctx context.Context, filter store.SearchFilter) ([]model.Pharmacy, error)
	CountByRegion(ctx context.Context) (map[string]int, error)
}

// Query selects pharmacies. Region and Name match as case-insensitive
// substrings; both must match when both are set.
type Query struct {
	Region string
	Name   string
	Limit  int
}

// RegionSummary is a catalog region with the number of stored pharmacies.
type RegionSummary struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Service answers directory queries. It never waits on a running sync.
type Service struct {
	reader       Reader
	catalog      *region.Catalog
	defaultLimit int
	maxLimit     int
}

// Limits bounds the number of rows a search may return.
type Limits struct {
	Default int
	Max     int
}

// New creates a Service. Zero limits fall back to DefaultLimit and MaxLimit.
func New(reader Reader, catalog *region.Catalog, limits Limits) *Service {
	if limits.Default <= 0 {
		limits.Default = DefaultLimit
	}
	if limits.Max <= 0 {
		limits.Max = MaxLimit
	}
	if limits.Max < limits.Default {
		limits.Max = limits.Default
	}
	if catalog == nil {
		catalog = region.Default()
	}
	return &Service{
		reader:       reader,
		catalog:      catalog,
		defaultLimit: limits.Default,
		maxLimit:     limits.Max,
	}
}

// EffectiveLimit applies the default and the cap to a requested limit.
func (s *Service) EffectiveLimit(n int) int {
	switch {
	case n <= 0:
		return s.defaultLimit
	case n > s.maxLimit:
		return s.maxLimit
	default:
		return n
	}
}

// Search returns matching pharmacies ordered by region, name and external id.
func (s *Service) Search(ctx context.Context, q Query) ([]model.Pharmacy, error) {
	out, err := s.reader.Search(ctx, store.SearchFilter{
		Region: strings.TrimSpace(q.Region),
		Name:   strings.TrimSpace(q.Name),
		Limit:  s.EffectiveLimit(q.Limit),
	})
	if err != nil {
		return nil, eris.Wrap(err, "directory: search")
	}
	return out, nil
}

// Regions lists every catalog region with its stored count, in catalog
// order. Regions stored under a name no longer in the catalog are appended
// alphabetically.
func (s *Service) Regions(ctx context.Context) ([]RegionSummary, error) {
	counts, err := s.reader.CountByRegion(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "directory: count regions")
	}

	names := s.catalog.Names()
	out := make([]RegionSummary, 0, len(names))
	for _, n := range names {
		out = append(out, RegionSummary{Name: n, Count: counts[n]})
		delete(counts, n)
	}

	var extra []string
	for n := range counts {
		extra = append(extra, n)
	}
	sort.Strings(extra)
	for _, n := range extra {
		out = append(out, RegionSummary{Name: n, Count: counts[n]})
	}
	return out, nil
}
