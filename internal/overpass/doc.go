// Package overpass queries the OpenStreetMap Overpass API for pharmacies
// inside one administrative region and normalizes the returned elements into
// fixed-shape records. Geometry is resolved from a node's own point or from the
// center Overpass computes for ways and relations.
package overpass
