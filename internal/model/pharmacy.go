// Package model defines the pharmacy directory's core records.
package model

import "time"

// DefaultName is stored when the source carries no usable name tag.
const DefaultName = "Pharmacie"

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RawRecord is one normalized element returned by a region fetch.
type RawRecord struct {
	ExternalID string      `json:"external_id"`
	Name       string      `json:"name"`
	Address    string      `json:"address"`
	Coordinate *Coordinate `json:"coordinate,omitempty"`
}

// Pharmacy is a persisted point of interest keyed by its OSM element reference.
type Pharmacy struct {
	ExternalID  string    `json:"osm_id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Region      string    `json:"wilaya"`
	Latitude    *float64  `json:"lat"`
	Longitude   *float64  `json:"lon"`
	LastUpdated time.Time `json:"updated_at"`
}

// FromRaw builds the stored form of a fetched record for the given region.
func FromRaw(r RawRecord, region string, at time.Time) Pharmacy {
	p := Pharmacy{
		ExternalID:  r.ExternalID,
		Name:        r.Name,
		Address:     r.Address,
		Region:      region,
		LastUpdated: at.UTC(),
	}
	if r.Coordinate != nil {
		lat, lon := r.Coordinate.Lat, r.Coordinate.Lon
		p.Latitude = &lat
		p.Longitude = &lon
	}
	return p
}
