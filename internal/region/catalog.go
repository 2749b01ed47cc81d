// Package region holds the administrative partitions the remote source is
// queried over. Each region is fetched separately because unbounded queries
// are truncated or time out upstream.
package region

import (
	"strings"

	"github.com/rotisserie/eris"
)

// wilayas lists the 58 Algerian provinces in official order, spelled as the
// boundary names appear in OpenStreetMap.
var wilayas = []string{
	"Adrar", "Chlef", "Laghouat", "Oum El Bouaghi", "Batna", "Béjaïa", "Biskra", "Béchar",
	"Blida", "Bouira", "Tamanrasset", "Tébessa", "Tlemcen", "Tiaret", "Tizi Ouzou", "Alger",
	"Djelfa", "Jijel", "Sétif", "Saïda", "Skikda", "Sidi Bel Abbès", "Annaba", "Guelma",
	"Constantine", "Médéa", "Mostaganem", "M'Sila", "Mascara", "Ouargla", "Oran", "El Bayadh",
	"Illizi", "Bordj Bou Arréridj", "Boumerdès", "El Tarf", "Tindouf", "Tissemsilt",
	"El Oued", "Khenchela", "Souk Ahras", "Tipaza", "Mila", "Aïn Defla", "Naâma",
	"Aïn Témouchent", "Ghardaïa", "Relizane", "Timimoun", "Bordj Badji Mokhtar", "Ouled Djellal",
	"Béni Abbès", "In Salah", "In Guezzam", "Touggourt", "Djanet", "El M’Ghair", "El Meniaa",
}

// Catalog is an ordered set of region names.
type Catalog struct {
	names []string
	index map[string]int
}

// New builds a catalog from names, preserving order. Names must be non-empty
// and unique.
func New(names []string) (*Catalog, error) {
	c := &Catalog{
		names: make([]string, 0, len(names)),
		index: make(map[string]int, len(names)),
	}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, eris.New("region: empty region name")
		}
		if _, dup := c.index[n]; dup {
			return nil, eris.Errorf("region: duplicate region %q", n)
		}
		c.index[n] = len(c.names)
		c.names = append(c.names, n)
	}
	return c, nil
}

// Default returns the catalog of all 58 wilayas.
func Default() *Catalog {
	c, _ := New(wilayas) //nolint:errcheck // static list is valid
	return c
}

// Names returns the region names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of regions.
func (c *Catalog) Len() int {
	return len(c.names)
}

// Contains reports whether name is in the catalog.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Select returns a sub-catalog holding only the named regions, in catalog
// order. An empty names list returns the catalog itself.
func (c *Catalog) Select(names []string) (*Catalog, error) {
	if len(names) == 0 {
		return c, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if !c.Contains(n) {
			return nil, eris.Errorf("region: unknown region %q", n)
		}
		want[n] = true
	}
	var picked []string
	for _, n := range c.names {
		if want[n] {
			picked = append(picked, n)
		}
	}
	return New(picked)
}
