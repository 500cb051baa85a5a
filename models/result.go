package models

// Result partitions a listing set into the three pipeline buckets
type Result struct {
	New       []*Listing `json:"new"`
	Duplicate []*Listing `json:"duplicate"`
	Ignored   []*Listing `json:"ignored"`
}

// Bucket returns the listings for a given status
func (r *Result) Bucket(status Status) []*Listing {
	switch status {
	case StatusNew:
		return r.New
	case StatusDuplicate:
		return r.Duplicate
	case StatusIgnored:
		return r.Ignored
	}
	return nil
}

// Absorb appends the duplicate and ignored buckets of another pass.
// New is not touched: each pass replaces it.
func (r *Result) Absorb(other Result) {
	r.Duplicate = append(r.Duplicate, other.Duplicate...)
	r.Ignored = append(r.Ignored, other.Ignored...)
}

// PostalCode is a reference postal code record
type PostalCode struct {
	Area       string  `json:"area" db:"area"` // ISO 3166-2 region
	PostalCode string  `json:"postal_code" db:"postal_code"`
	InseeCode  string  `json:"insee_code" db:"insee_code"`
	Name       string  `json:"name" db:"name"`
	Lat        float64 `json:"lat" db:"lat"`
	Lng        float64 `json:"lng" db:"lng"`
}

// Station is a reference public transport stop
type Station struct {
	Area string  `json:"area" db:"area"`
	Name string  `json:"name" db:"name"`
	Lat  float64 `json:"lat" db:"lat"`
	Lng  float64 `json:"lng" db:"lng"`
}
