// Package geo holds the geographic reference data used to enrich listings:
// postal codes with their centroids, public transport stops, and the area
// partitioning they are loaded by.
package geo

import (
	"context"
	"errors"

	"flatsift/models"
)

// ErrDataUnavailable means the reference data was never built. It aborts a run.
var ErrDataUnavailable = errors.New("geographic reference data unavailable")

// Dataset gives access to reference data restricted to some areas
type Dataset interface {
	PostalCodes(ctx context.Context, areas []string) ([]models.PostalCode, error)
	Stations(ctx context.Context, areas []string) ([]models.Station, error)
}

// MemoryDataset is a Dataset held in memory
type MemoryDataset struct {
	postalCodes []models.PostalCode
	stations    []models.Station
}

func NewMemoryDataset(postalCodes []models.PostalCode, stations []models.Station) *MemoryDataset {
	return &MemoryDataset{postalCodes: postalCodes, stations: stations}
}

func (d *MemoryDataset) PostalCodes(_ context.Context, areas []string) ([]models.PostalCode, error) {
	if len(d.postalCodes) == 0 {
		return nil, ErrDataUnavailable
	}
	keep := areaSet(areas)
	var out []models.PostalCode
	for _, pc := range d.postalCodes {
		if keep(pc.Area) {
			out = append(out, pc)
		}
	}
	return out, nil
}

func (d *MemoryDataset) Stations(_ context.Context, areas []string) ([]models.Station, error) {
	if len(d.stations) == 0 {
		return nil, ErrDataUnavailable
	}
	keep := areaSet(areas)
	var out []models.Station
	for _, st := range d.stations {
		if keep(st.Area) {
			out = append(out, st)
		}
	}
	return out, nil
}

// All returns every record, for persisting into a store
func (d *MemoryDataset) All() ([]models.PostalCode, []models.Station) {
	return d.postalCodes, d.stations
}

// areaSet builds a membership test; no areas means no restriction
func areaSet(areas []string) func(string) bool {
	if len(areas) == 0 {
		return func(string) bool { return true }
	}
	set := make(map[string]bool, len(areas))
	for _, a := range areas {
		set[a] = true
	}
	return func(a string) bool { return set[a] }
}
