package models

import (
	"strings"
	"time"
)

// Listing is one housing post as emitted by a backend and refined by the pipeline
type Listing struct {
	ID        string            `json:"id" db:"id"` // <local id>@<backend>
	URLs      []string          `json:"urls" db:"urls"`
	MergedIDs []string          `json:"merged_ids" db:"merged_ids"`
	Title     string            `json:"title" db:"title"`
	Area      *float64          `json:"area" db:"area"` // m^2
	Cost      *float64          `json:"cost" db:"cost"`
	Currency  string            `json:"currency" db:"currency"`
	Rooms     *int              `json:"rooms" db:"rooms"`
	Bedrooms  *int              `json:"bedrooms" db:"bedrooms"`
	Utilities Utilities         `json:"utilities" db:"utilities"`
	Phone     string            `json:"phone" db:"phone"`
	Text      string            `json:"text" db:"text"`
	Location  string            `json:"location" db:"location"`
	Station   string            `json:"station" db:"station"`
	Photos    []Photo           `json:"photos" db:"photos"`
	Details   map[string]string `json:"details" db:"details"`
	Date      *time.Time        `json:"date" db:"date"`
	Meta      Metadata          `json:"meta" db:"meta"`

	// URL is the single url some backends emit instead of URLs
	URL string `json:"url,omitempty" db:"-"`
}

// Photo references one picture of a listing
type Photo struct {
	ID    string `json:"id,omitempty"`
	URL   string `json:"url"`
	Local string `json:"local,omitempty"` // blob key once downloaded
}

// Metadata holds everything derived by the pipeline, kept apart from backend fields
type Metadata struct {
	PostalCode      string                `json:"postal_code,omitempty"`
	Position        *LatLng               `json:"position,omitempty"`
	MatchedStations []MatchedStation      `json:"matched_stations"` // nil until stations were looked up
	TimeTo          map[string]TravelTime `json:"time_to,omitempty"`
	Constraint      string                `json:"constraint,omitempty"`
}

// MatchedStation is a transit stop matched against the station field
type MatchedStation struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	Confidence int    `json:"confidence"`
	Position   LatLng `json:"gps"`
}

// TravelTime is the best journey found to a constraint place
type TravelTime struct {
	Seconds int        `json:"time"`
	Mode    TravelMode `json:"mode"`
}

// LatLng is a WGS84 coordinate pair
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Backend returns the backend suffix of the listing id
func (l *Listing) Backend() string {
	return BackendOf(l.ID)
}

// BackendOf extracts the backend name from a "<local id>@<backend>" id
func BackendOf(id string) string {
	if i := strings.LastIndex(id, "@"); i >= 0 {
		return id[i+1:]
	}
	return ""
}

// Clone returns a deep copy so merges never alias the inputs
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	c := *l
	c.URLs = append([]string(nil), l.URLs...)
	c.MergedIDs = append([]string(nil), l.MergedIDs...)
	c.Photos = append([]Photo(nil), l.Photos...)
	if l.Area != nil {
		c.Area = Float64(*l.Area)
	}
	if l.Cost != nil {
		c.Cost = Float64(*l.Cost)
	}
	if l.Rooms != nil {
		c.Rooms = Int(*l.Rooms)
	}
	if l.Bedrooms != nil {
		c.Bedrooms = Int(*l.Bedrooms)
	}
	if l.Details != nil {
		c.Details = make(map[string]string, len(l.Details))
		for k, v := range l.Details {
			c.Details[k] = v
		}
	}
	if l.Date != nil {
		d := *l.Date
		c.Date = &d
	}
	c.Meta = l.Meta.Clone()
	return &c
}

// Clone deep-copies the metadata
func (m Metadata) Clone() Metadata {
	c := m
	if m.Position != nil {
		p := *m.Position
		c.Position = &p
	}
	if m.MatchedStations != nil {
		c.MatchedStations = append([]MatchedStation{}, m.MatchedStations...)
	}
	if m.TimeTo != nil {
		c.TimeTo = make(map[string]TravelTime, len(m.TimeTo))
		for k, v := range m.TimeTo {
			c.TimeTo[k] = v
		}
	}
	return c
}

func Float64(v float64) *float64 { return &v }

func Int(v int) *int { return &v }
