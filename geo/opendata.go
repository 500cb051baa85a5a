package geo

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"flatsift/models"
)

// LaPosteFile is the La Poste postal code opendata export
const LaPosteFile = "laposte.json"

// StopFiles maps each area to its GTFS stops file
var StopFiles = map[string]string{
	"FR-IDF": "stops_fr-idf.txt",
	"FR-NW":  "stops_fr-nw.txt",
	"FR-NE":  "stops_fr-ne.txt",
	"FR-SW":  "stops_fr-sw.txt",
	"FR-SE":  "stops_fr-se.txt",
}

type laPosteRecord struct {
	Fields struct {
		PostalCode string    `json:"code_postal"`
		InseeCode  string    `json:"code_commune_insee"`
		Name       string    `json:"nom_de_la_commune"`
		GPS        []float64 `json:"coordonnees_gps"`
	} `json:"fields"`
}

var titleCaser = cases.Title(language.French)

// ParseLaPoste converts the La Poste JSON export into postal code records.
// Entries without coordinates or outside every known area are skipped.
func ParseLaPoste(r io.Reader) ([]models.PostalCode, error) {
	var raw []laPosteRecord
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "laposte: decode json")
	}

	var out []models.PostalCode
	for _, item := range raw {
		f := item.Fields
		area := AreaForPostalCode(f.PostalCode)
		if area == "" {
			log.Debug().Str("postal_code", f.PostalCode).Msg("no matching area, skipping")
			continue
		}
		if len(f.GPS) != 2 || f.Name == "" {
			log.Debug().Str("postal_code", f.PostalCode).Msg("missing data, skipping")
			continue
		}
		out = append(out, models.PostalCode{
			Area:       area,
			PostalCode: f.PostalCode,
			InseeCode:  f.InseeCode,
			Name:       titleCaser.String(strings.ToLower(f.Name)),
			Lat:        f.GPS[0],
			Lng:        f.GPS[1],
		})
	}
	return out, nil
}

// ParseStops reads a GTFS stops.txt file into stations of the given area
func ParseStops(r io.Reader, area string) ([]models.Station, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "stops: read csv")
	}
	if len(records) < 1 {
		return nil, eris.New("stops: csv has no header")
	}

	colIdx := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		colIdx[strings.TrimPrefix(strings.TrimSpace(col), "\ufeff")] = i
	}
	for _, col := range []string{"stop_name", "stop_lat", "stop_lon"} {
		if _, ok := colIdx[col]; !ok {
			return nil, eris.Errorf("stops: missing required column %q", col)
		}
	}

	var out []models.Station
	for _, row := range records[1:] {
		name := getCol(row, colIdx, "stop_name")
		lat, errLat := strconv.ParseFloat(getCol(row, colIdx, "stop_lat"), 64)
		lng, errLng := strconv.ParseFloat(getCol(row, colIdx, "stop_lon"), 64)
		if name == "" || errLat != nil || errLng != nil {
			continue
		}
		out = append(out, models.Station{Area: area, Name: name, Lat: lat, Lng: lng})
	}
	return out, nil
}

func getCol(row []string, colIdx map[string]int, col string) string {
	idx, ok := colIdx[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// LoadOpendata builds a dataset from the opendata files found in dir.
// Missing stop files are skipped; a missing La Poste file is an error.
func LoadOpendata(dir string) (*MemoryDataset, error) {
	f, err := os.Open(filepath.Join(dir, LaPosteFile))
	if err != nil {
		return nil, eris.Wrap(err, "opendata: open laposte file")
	}
	postalCodes, err := ParseLaPoste(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	log.Info().Int("count", len(postalCodes)).Msg("postal codes loaded")

	var stations []models.Station
	for _, area := range Quarters() {
		name, ok := StopFiles[area]
		if !ok {
			continue
		}
		sf, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("area", area).Msg("no public transport data for area")
			continue
		}
		st, err := ParseStops(sf, area)
		sf.Close()
		if err != nil {
			return nil, eris.Wrapf(err, "opendata: %s", name)
		}
		log.Info().Str("area", area).Int("count", len(st)).Msg("stops loaded")
		stations = append(stations, st...)
	}

	return NewMemoryDataset(postalCodes, stations), nil
}
