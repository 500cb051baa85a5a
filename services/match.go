package services

import (
	"context"
	"math"

	"flatsift/identity"
	"flatsift/models"
)

// DuplicateScore rates how likely two listings describe the same housing.
// The score is symmetric. A pair missing area or cost cannot be compared
// and scores 0, as does a pair whose area or cost differ by 1 or more.
func (d *Detector) DuplicateScore(ctx context.Context, a, b *models.Listing) int {
	if a == nil || b == nil || a.Area == nil || b.Area == nil || a.Cost == nil || b.Cost == nil {
		return 0
	}
	if math.Abs(*a.Area-*b.Area) >= 1 || math.Abs(*a.Cost-*b.Cost) >= 1 {
		return 0
	}
	if a.Backend() == b.Backend() && differentFractionalAreas(*a.Area, *b.Area) {
		return 0
	}

	// area and cost both agree at this point
	score := 2
	if a.Bedrooms != nil && b.Bedrooms != nil && *a.Bedrooms == *b.Bedrooms {
		score++
	}
	if a.Utilities != models.UtilitiesUnknown && a.Utilities == b.Utilities {
		score++
	}
	if a.Rooms != nil && b.Rooms != nil && *a.Rooms == *b.Rooms {
		score++
	}
	if a.Meta.PostalCode != "" && a.Meta.PostalCode == b.Meta.PostalCode {
		score++
	}
	if sameText(a.Text, b.Text) {
		score++
	}
	if samePhone(a.Phone, b.Phone) {
		score += 10
	}
	score += d.photoScore(ctx, a, b)
	return score
}

// differentFractionalAreas is true when both areas carry decimals and the
// decimals disagree
func differentFractionalAreas(a, b float64) bool {
	fa := a - math.Trunc(a)
	fb := b - math.Trunc(b)
	if fa == 0 || fb == 0 {
		return false
	}
	return math.Abs(fa-fb) > 1e-9
}

func sameText(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	na := identity.NormalizeString(identity.PlainText(a))
	nb := identity.NormalizeString(identity.PlainText(b))
	return na != "" && na == nb
}

func samePhone(a, b string) bool {
	pa, okA := identity.HomogeneizePhoneNumber(a)
	pb, okB := identity.HomogeneizePhoneNumber(b)
	return okA && okB && pa == pb
}

// photoScore compares every photo of a against every photo of b. All photos
// of the smaller set matching is near proof; partial matches are capped.
func (d *Detector) photoScore(ctx context.Context, a, b *models.Listing) int {
	if len(a.Photos) == 0 || len(b.Photos) == 0 || d.photos == nil {
		return 0
	}

	matches := 0
	for _, pa := range a.Photos {
		for _, pb := range b.Photos {
			if d.photos.Similar(ctx, pa.URL, pb.URL, d.ImageHashThreshold) {
				matches++
			}
		}
	}

	smaller := min(len(a.Photos), len(b.Photos))
	if matches == smaller {
		return 15
	}
	return 5 * min(matches, 3)
}
