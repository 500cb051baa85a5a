package models

import (
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Number is any bound type a constraint interval can hold
type Number interface {
	~int | ~float64
}

// Interval is a [min, max] bound pair; a nil side is unbounded
type Interval[T Number] struct {
	Min *T `json:"min" yaml:"min"`
	Max *T `json:"max" yaml:"max"`
}

// NewInterval builds an interval from optional bounds
func NewInterval[T Number](min, max *T) Interval[T] {
	return Interval[T]{Min: min, Max: max}
}

// UnmarshalYAML accepts both `[min, max]` and `{min: .., max: ..}`
func (i *Interval[T]) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var bounds []*T
		if err := value.Decode(&bounds); err != nil {
			return err
		}
		if len(bounds) != 2 {
			return eris.Errorf("line %d: interval needs exactly 2 bounds, got %d", value.Line, len(bounds))
		}
		i.Min, i.Max = bounds[0], bounds[1]
		return nil
	}
	type plain Interval[T]
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*i = Interval[T](p)
	return nil
}

// Constraint is a named bundle of bounds a listing set must satisfy
type Constraint struct {
	Name                        string                  `json:"name" yaml:"name"`
	Type                        PostType                `json:"type" yaml:"type"`
	HouseTypes                  []HouseType             `json:"house_types" yaml:"house_types"`
	PostalCodes                 []string                `json:"postal_codes" yaml:"postal_codes"`
	Area                        Interval[float64]       `json:"area" yaml:"area"`
	Cost                        Interval[float64]       `json:"cost" yaml:"cost"`
	Rooms                       Interval[int]           `json:"rooms" yaml:"rooms"`
	Bedrooms                    Interval[int]           `json:"bedrooms" yaml:"bedrooms"`
	MinimumPhotos               *int                    `json:"minimum_nb_photos" yaml:"minimum_nb_photos"`
	DescriptionShouldContain    []string                `json:"description_should_contain" yaml:"description_should_contain"`
	DescriptionShouldNotContain []string                `json:"description_should_not_contain" yaml:"description_should_not_contain"`
	TimeTo                      map[string]TimeToTarget `json:"time_to" yaml:"time_to"`
}

// TimeToTarget is a place the listing should be close enough to
type TimeToTarget struct {
	Position LatLng        `json:"gps" yaml:"gps"`
	Time     Interval[int] `json:"time" yaml:"time"` // seconds
	Mode     TravelMode    `json:"mode" yaml:"mode"`
}

// HasPostalCode reports whether code is one of the constraint postal codes
func (c *Constraint) HasPostalCode(code string) bool {
	for _, pc := range c.PostalCodes {
		if pc == code {
			return true
		}
	}
	return false
}

// UnmarshalYAML reads gps as a [lat, lng] pair like the time_to config does
func (p *LatLng) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var pair []float64
		if err := value.Decode(&pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return eris.Errorf("line %d: gps needs [lat, lng]", value.Line)
		}
		p.Lat, p.Lng = pair[0], pair[1]
		return nil
	}
	type plain LatLng
	var pl plain
	if err := value.Decode(&pl); err != nil {
		return err
	}
	*p = LatLng(pl)
	return nil
}
