package geo

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"flatsift/models"
)

func TestDistance(t *testing.T) {
	paris := models.LatLng{Lat: 48.8566, Lng: 2.3522}
	lyon := models.LatLng{Lat: 45.7640, Lng: 4.8357}

	if d := Distance(paris, paris); d != 0 {
		t.Fatalf("expected 0 distance, got %f", d)
	}
	d := Distance(paris, lyon)
	if math.Abs(d-392000) > 5000 {
		t.Fatalf("expected ~392km Paris-Lyon, got %f", d)
	}
	if math.Abs(Distance(lyon, paris)-d) > 1e-6 {
		t.Fatalf("distance should be symmetric")
	}
}

func TestAreaForPostalCode(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"75014", "FR-IDF"},
		{"92120", "FR-IDF"},
		{"38000", "FR-SE"},
		{"33000", "FR-SW"},
		{"35000", "FR-NW"},
		{"59000", "FR-NE"},
		{"97400", ""},
		{"7", ""},
	}
	for _, tt := range tests {
		if got := AreaForPostalCode(tt.code); got != tt.want {
			t.Fatalf("AreaForPostalCode(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}

	areas := AreasForPostalCodes([]string{"75014", "75015", "38000", "97400"})
	if len(areas) != 2 || areas[0] != "FR-IDF" || areas[1] != "FR-SE" {
		t.Fatalf("unexpected areas %v", areas)
	}
}

func TestParseLaPoste(t *testing.T) {
	f := openFixture(t, LaPosteFile)
	codes, err := ParseLaPoste(f)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(codes) != 3 {
		t.Fatalf("expected 3 postal codes, got %d", len(codes))
	}
	if codes[0].Name != "Paris 14" || codes[0].Area != "FR-IDF" || codes[0].InseeCode != "75114" {
		t.Fatalf("unexpected first record %+v", codes[0])
	}
	if codes[2].Name != "Montrouge" {
		t.Fatalf("expected title cased name, got %q", codes[2].Name)
	}
}

func TestParseStops(t *testing.T) {
	stations, err := ParseStops(openFixture(t, "stops_fr-idf.txt"), "FR-IDF")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(stations) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(stations))
	}
	if stations[0].Name != "Denfert-Rochereau" || stations[0].Area != "FR-IDF" {
		t.Fatalf("unexpected station %+v", stations[0])
	}

	if _, err := ParseStops(strings.NewReader("id,name\n1,foo\n"), "FR-IDF"); err == nil {
		t.Fatalf("expected an error for missing columns")
	}
}

func TestLoadOpendata(t *testing.T) {
	ds, err := LoadOpendata("testdata")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	ctx := context.Background()

	codes, err := ds.PostalCodes(ctx, []string{"FR-IDF"})
	if err != nil {
		t.Fatalf("postal codes: %v", err)
	}
	if len(codes) != 3 {
		t.Fatalf("expected 3 IDF postal codes, got %d", len(codes))
	}
	stations, err := ds.Stations(ctx, []string{"FR-SE"})
	if err != nil {
		t.Fatalf("stations: %v", err)
	}
	if len(stations) != 0 {
		t.Fatalf("expected no stations outside IDF, got %d", len(stations))
	}

	if _, err := LoadOpendata(t.TempDir()); err == nil {
		t.Fatalf("expected an error without the laposte file")
	}
}

func TestMemoryDatasetUnavailable(t *testing.T) {
	ds := NewMemoryDataset(nil, nil)
	if _, err := ds.PostalCodes(context.Background(), nil); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	if _, err := ds.Stations(context.Background(), nil); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}
