package services

import (
	"flatsift/models"
)

// MergeListings folds two versions of the same housing into one. Fields of
// authoritative win unless they are empty; urls and merged ids are unioned.
// Neither input is modified.
func MergeListings(base, authoritative *models.Listing) *models.Listing {
	if base == nil {
		return authoritative.Clone()
	}
	if authoritative == nil {
		return base.Clone()
	}

	out := base.Clone()
	a := authoritative.Clone()

	out.ID = pickString(out.ID, a.ID)
	out.Title = pickString(out.Title, a.Title)
	out.Currency = pickString(out.Currency, a.Currency)
	out.Phone = pickString(out.Phone, a.Phone)
	out.Text = pickString(out.Text, a.Text)
	out.Location = pickString(out.Location, a.Location)
	out.Station = pickString(out.Station, a.Station)
	out.URL = pickString(out.URL, a.URL)

	out.Area = pickFloat(out.Area, a.Area)
	out.Cost = pickFloat(out.Cost, a.Cost)
	out.Rooms = pickInt(out.Rooms, a.Rooms)
	out.Bedrooms = pickInt(out.Bedrooms, a.Bedrooms)

	if a.Utilities != models.UtilitiesUnknown {
		out.Utilities = a.Utilities
	}
	if len(a.Photos) > 0 {
		out.Photos = a.Photos
	}
	if a.Date != nil {
		out.Date = a.Date
	}
	if len(a.Details) > 0 {
		if out.Details == nil {
			out.Details = make(map[string]string, len(a.Details))
		}
		for k, v := range a.Details {
			if v != "" {
				out.Details[k] = v
			}
		}
	}

	out.URLs = union(out.URLs, a.URLs)
	out.MergedIDs = union(out.MergedIDs, a.MergedIDs)
	out.Meta = mergeMetadata(out.Meta, a.Meta)
	return out
}

// MergeAll reduces listings left to right, the last one being the most
// authoritative
func MergeAll(listings ...*models.Listing) *models.Listing {
	var out *models.Listing
	for _, l := range listings {
		out = MergeListings(out, l)
	}
	return out
}

func mergeMetadata(base, a models.Metadata) models.Metadata {
	out := base
	out.PostalCode = pickString(out.PostalCode, a.PostalCode)
	out.Constraint = pickString(out.Constraint, a.Constraint)
	if a.Position != nil {
		out.Position = a.Position
	}
	if a.MatchedStations != nil {
		out.MatchedStations = a.MatchedStations
	}
	if len(a.TimeTo) > 0 {
		if out.TimeTo == nil {
			out.TimeTo = make(map[string]models.TravelTime, len(a.TimeTo))
		}
		for k, v := range a.TimeTo {
			out.TimeTo[k] = v
		}
	}
	return out
}

func pickString(base, a string) string {
	if a != "" {
		return a
	}
	return base
}

// Zero numerics count as unknown, like a missing value
func pickFloat(base, a *float64) *float64 {
	if a != nil && *a != 0 {
		return a
	}
	return base
}

func pickInt(base, a *int) *int {
	if a != nil && *a != 0 {
		return a
	}
	return base
}

// union keeps first-seen order so merges stay deterministic
func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
