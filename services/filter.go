package services

import (
	"strings"

	"github.com/rs/zerolog/log"

	"flatsift/identity"
	"flatsift/models"
)

// IsWithinInterval reports whether value lies in [min, max]. A nil value or
// a nil bound never fails the check.
func IsWithinInterval[T models.Number](value, min, max *T) bool {
	if value == nil {
		return true
	}
	if min != nil && *value < *min {
		return false
	}
	if max != nil && *value > *max {
		return false
	}
	return true
}

func within[T models.Number](value *T, interval models.Interval[T]) bool {
	return IsWithinInterval(value, interval.Min, interval.Max)
}

// RefineWithHousingCriteria splits listings into those matching the constraint
// bounds on postal code, travel times, area, cost, rooms and bedrooms, and
// those that do not. Unknown values pass.
func RefineWithHousingCriteria(listings []*models.Listing, c *models.Constraint) (kept, ignored []*models.Listing) {
	for _, l := range listings {
		ok := true

		if pc := l.Meta.PostalCode; pc != "" && !c.HasPostalCode(pc) {
			log.Info().Str("listing", l.ID).Str("postal_code", pc).Msg("postal code out of range")
			ok = false
		}

		for place, tt := range l.Meta.TimeTo {
			target, known := c.TimeTo[place]
			if !known {
				continue
			}
			secs := tt.Seconds
			if !within(&secs, target.Time) {
				log.Info().Str("listing", l.ID).Str("place", place).Int("seconds", secs).Msg("too far from place")
				ok = false
			}
		}

		checks := []struct {
			field string
			pass  bool
		}{
			{"area", within(l.Area, c.Area)},
			{"cost", within(l.Cost, c.Cost)},
			{"rooms", within(l.Rooms, c.Rooms)},
			{"bedrooms", within(l.Bedrooms, c.Bedrooms)},
		}
		for _, check := range checks {
			if !check.pass {
				log.Info().Str("listing", l.ID).Str("field", check.field).Msg("value out of range")
				ok = false
			}
		}

		if ok {
			kept = append(kept, l)
		} else {
			ignored = append(ignored, l)
		}
	}
	return kept, ignored
}

// RefineWithDetailsCriteria applies the checks that need full details: the
// photo count and the description terms. Terms and description are both
// normalized before matching.
func RefineWithDetailsCriteria(listings []*models.Listing, c *models.Constraint) (kept, ignored []*models.Listing) {
	required := normalizeTerms(c.DescriptionShouldContain)
	forbidden := normalizeTerms(c.DescriptionShouldNotContain)

	for _, l := range listings {
		ok := true

		if c.MinimumPhotos != nil {
			n := len(l.Photos)
			if !IsWithinInterval(&n, c.MinimumPhotos, nil) {
				log.Info().Str("listing", l.ID).Int("photos", n).Int("minimum", *c.MinimumPhotos).Msg("not enough photos")
				ok = false
			}
		}

		if len(required) > 0 || len(forbidden) > 0 {
			text := identity.NormalizeString(identity.PlainText(l.Text))
			for _, term := range required {
				if !containsTerm(text, term) {
					log.Info().Str("listing", l.ID).Str("term", term).Msg("description misses a required term")
					ok = false
					break
				}
			}
			for _, term := range forbidden {
				if containsTerm(text, term) {
					log.Info().Str("listing", l.ID).Str("term", term).Msg("description contains a forbidden term")
					ok = false
					break
				}
			}
		}

		if ok {
			kept = append(kept, l)
		} else {
			ignored = append(ignored, l)
		}
	}
	return kept, ignored
}

func normalizeTerms(terms []string) []string {
	var out []string
	for _, t := range terms {
		if n := identity.NormalizeString(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func containsTerm(text, term string) bool {
	return strings.Contains(text, term)
}
