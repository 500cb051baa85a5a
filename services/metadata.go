package services

import (
	"context"
	"errors"
	"math"
	"regexp"

	"github.com/rs/zerolog/log"

	"flatsift/geo"
	"flatsift/identity"
	"flatsift/models"
)

const (
	DefaultPostalCodeDistance = 20000 // meters
	DefaultStationDistance    = 1500  // meters
)

var postalCodeRe = regexp.MustCompile(`[0-9]{5}`)

// MetadataService guesses the postal code, nearby stations and travel times
// of listings from their free-text fields and the reference dataset
type MetadataService struct {
	Dataset            geo.Dataset
	Journey            JourneyService
	PostalCodeDistance float64
	StationDistance    float64
}

func NewMetadataService(dataset geo.Dataset, journey JourneyService) *MetadataService {
	return &MetadataService{
		Dataset:            dataset,
		Journey:            journey,
		PostalCodeDistance: DefaultPostalCodeDistance,
		StationDistance:    DefaultStationDistance,
	}
}

type postalIndex struct {
	byCode      map[string]models.PostalCode
	cityNames   []string
	codesByCity map[string][]models.PostalCode
}

func (s *MetadataService) loadPostalCodes(ctx context.Context, c *models.Constraint) (*postalIndex, error) {
	records, err := s.Dataset.PostalCodes(ctx, geo.AreasForPostalCodes(c.PostalCodes))
	if err != nil {
		return nil, err
	}
	idx := &postalIndex{
		byCode:      make(map[string]models.PostalCode, len(records)),
		codesByCity: make(map[string][]models.PostalCode),
	}
	for _, pc := range records {
		if _, ok := idx.byCode[pc.PostalCode]; !ok {
			idx.byCode[pc.PostalCode] = pc
		}
		if _, ok := idx.codesByCity[pc.Name]; !ok {
			idx.cityNames = append(idx.cityNames, pc.Name)
		}
		idx.codesByCity[pc.Name] = append(idx.codesByCity[pc.Name], pc)
	}
	return idx, nil
}

// GuessPostalCode resolves Meta.PostalCode from the location field, first
// from a literal postal code then through a city name lookup
func (s *MetadataService) GuessPostalCode(ctx context.Context, listings []*models.Listing, c *models.Constraint) error {
	idx, err := s.loadPostalCodes(ctx, c)
	if err != nil {
		return err
	}

	for _, l := range listings {
		if l.Location == "" {
			log.Debug().Str("listing", l.ID).Msg("no location, skipping postal code lookup")
			continue
		}

		found, ok := idx.direct(l.Location)
		if ok {
			log.Debug().Str("listing", l.ID).Str("postal_code", found.PostalCode).Msg("postal code found in location")
		} else if found, ok = idx.byCity(l.Location, c); ok {
			log.Debug().Str("listing", l.ID).Str("postal_code", found.PostalCode).Msg("postal code found through city lookup")
		}

		if ok && s.PostalCodeDistance > 0 {
			if d, known := idx.minDistance(found, c); known && d > s.PostalCodeDistance {
				log.Info().
					Str("listing", l.ID).
					Str("postal_code", found.PostalCode).
					Float64("distance", d).
					Msg("postal code off constraint, discarding it")
				ok = false
			}
		}

		if !ok {
			log.Info().Str("listing", l.ID).Msg("no postal code found")
			continue
		}

		if prev := l.Meta.PostalCode; prev != "" && prev != found.PostalCode {
			log.Warn().
				Str("listing", l.ID).
				Str("previous", prev).
				Str("postal_code", found.PostalCode).
				Msg("replacing previous postal code")
		}
		l.Meta.PostalCode = found.PostalCode
		l.Meta.Position = &models.LatLng{Lat: found.Lat, Lng: found.Lng}
	}
	return nil
}

func (idx *postalIndex) direct(location string) (models.PostalCode, bool) {
	code := postalCodeRe.FindString(location)
	if code == "" {
		return models.PostalCode{}, false
	}
	pc, ok := idx.byCode[code]
	return pc, ok
}

// byCity prefers a city postal code the constraint asks for, since several
// postal codes share a city name
func (idx *postalIndex) byCity(location string, c *models.Constraint) (models.PostalCode, bool) {
	matches := identity.FuzzyMatch(location, idx.cityNames, 0, 75)
	if len(matches) == 0 {
		return models.PostalCode{}, false
	}
	for _, m := range matches {
		for _, pc := range idx.codesByCity[m.Choice] {
			if c.HasPostalCode(pc.PostalCode) {
				return pc, true
			}
		}
	}
	candidates := idx.codesByCity[matches[0].Choice]
	if len(candidates) == 0 {
		return models.PostalCode{}, false
	}
	return candidates[0], true
}

func (idx *postalIndex) minDistance(found models.PostalCode, c *models.Constraint) (float64, bool) {
	best := math.Inf(1)
	known := false
	from := models.LatLng{Lat: found.Lat, Lng: found.Lng}
	for _, code := range c.PostalCodes {
		ref, ok := idx.byCode[code]
		if !ok {
			continue
		}
		known = true
		if d := geo.Distance(from, models.LatLng{Lat: ref.Lat, Lng: ref.Lng}); d < best {
			best = d
		}
	}
	return best, known
}

// GuessStations matches the station field against known stops. Only stops
// close to the listing postal code are kept, so listings without a postal
// code get no stations.
func (s *MetadataService) GuessStations(ctx context.Context, listings []*models.Listing, c *models.Constraint) error {
	idx, err := s.loadPostalCodes(ctx, c)
	if err != nil {
		return err
	}
	stations, err := s.Dataset.Stations(ctx, geo.AreasForPostalCodes(c.PostalCodes))
	if err != nil {
		return err
	}

	var names []string
	byName := make(map[string][]models.Station)
	for _, st := range stations {
		if _, ok := byName[st.Name]; !ok {
			names = append(names, st.Name)
		}
		byName[st.Name] = append(byName[st.Name], st)
	}

	for _, l := range listings {
		if l.Station == "" {
			log.Debug().Str("listing", l.ID).Msg("no station, skipping stations lookup")
			continue
		}

		matched := []models.MatchedStation{}
		centroid, ok := idx.byCode[l.Meta.PostalCode]
		if !ok {
			log.Info().Str("listing", l.ID).Msg("no postal code, cannot validate stations")
		} else {
			center := models.LatLng{Lat: centroid.Lat, Lng: centroid.Lng}
			for _, m := range identity.FuzzyMatch(l.Station, names, 10, 50) {
				for _, st := range byName[m.Choice] {
					pos := models.LatLng{Lat: st.Lat, Lng: st.Lng}
					if geo.Distance(pos, center) < s.StationDistance {
						matched = append(matched, models.MatchedStation{
							Key:        m.Choice,
							Name:       st.Name,
							Confidence: m.Confidence,
							Position:   pos,
						})
						break
					}
					log.Debug().Str("listing", l.ID).Str("station", st.Name).Msg("station too far, discarding it")
				}
			}
		}

		if l.Meta.MatchedStations != nil && !sameStationNames(l.Meta.MatchedStations, matched) {
			log.Warn().Str("listing", l.ID).Msg("replacing previously matched stations")
		}
		l.Meta.MatchedStations = matched
	}
	return nil
}

func sameStationNames(a, b []models.MatchedStation) bool {
	set := make(map[string]bool, len(a))
	for _, st := range a {
		set[st.Name] = true
	}
	other := make(map[string]bool, len(b))
	for _, st := range b {
		if !set[st.Name] {
			return false
		}
		other[st.Name] = true
	}
	return len(set) == len(other)
}

// ComputeTravelTimes stores, for every time_to place of the constraint, the
// shortest journey from any matched station of the listing
func (s *MetadataService) ComputeTravelTimes(ctx context.Context, listings []*models.Listing, c *models.Constraint) {
	if len(c.TimeTo) == 0 {
		return
	}
	if s.Journey == nil {
		log.Warn().Msg("no journey service configured, skipping travel times")
		return
	}

	disabled := make(map[models.TravelMode]bool)
	for _, l := range listings {
		if len(l.Meta.MatchedStations) == 0 {
			log.Debug().Str("listing", l.ID).Msg("no matched stations, skipping travel times")
			continue
		}
		if l.Meta.TimeTo == nil {
			l.Meta.TimeTo = make(map[string]models.TravelTime)
		}

		for name, place := range c.TimeTo {
			mode := place.Mode
			if mode == "" {
				mode = models.ModePublicTransport
			}
			if disabled[mode] {
				continue
			}

			best := -1
			for _, st := range l.Meta.MatchedStations {
				secs, err := s.Journey.TravelTime(ctx, st.Position, place.Position, mode)
				if errors.Is(err, ErrNoAPIKey) {
					log.Warn().Str("mode", string(mode)).Msg("no API key for travel time lookup, skipping")
					disabled[mode] = true
					break
				}
				if err != nil {
					log.Warn().Err(err).Str("listing", l.ID).Str("place", name).Msg("travel time lookup failed")
					continue
				}
				if best < 0 || secs < best {
					best = secs
				}
			}
			if best < 0 {
				continue
			}
			log.Info().Str("listing", l.ID).Str("place", name).Int("seconds", best).Msg("travel time computed")
			l.Meta.TimeTo[name] = models.TravelTime{Seconds: best, Mode: mode}
		}
	}
}
