package models

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// Utilities tells whether the cost includes service charges
type Utilities int

const (
	UtilitiesUnknown Utilities = iota
	UtilitiesIncluded
	UtilitiesExcluded
)

func (u Utilities) String() string {
	switch u {
	case UtilitiesIncluded:
		return "included"
	case UtilitiesExcluded:
		return "excluded"
	default:
		return ""
	}
}

func ParseUtilities(s string) Utilities {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "included", "c.c.", "cc":
		return UtilitiesIncluded
	case "excluded", "h.c.", "hc":
		return UtilitiesExcluded
	default:
		return UtilitiesUnknown
	}
}

func (u Utilities) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

func (u *Utilities) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*u = ParseUtilities(s)
	return nil
}

// Status is the bucket a listing ends up in
type Status string

const (
	StatusNew         Status = "new"
	StatusDuplicate   Status = "duplicate"
	StatusIgnored     Status = "ignored"
	StatusFollowed    Status = "followed"
	StatusUserDeleted Status = "user_deleted"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(s)); st {
	case StatusNew, StatusDuplicate, StatusIgnored, StatusFollowed, StatusUserDeleted:
		return st, nil
	}
	return "", eris.Errorf("unknown status %q", s)
}

// TravelMode selects the journey service used for a time_to target
type TravelMode string

const (
	ModePublicTransport TravelMode = "PUBLIC_TRANSPORT"
	ModeWalk            TravelMode = "WALK"
	ModeBike            TravelMode = "BIKE"
	ModeCar             TravelMode = "CAR"
)

func ParseTravelMode(s string) (TravelMode, error) {
	switch m := TravelMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case "":
		return ModePublicTransport, nil
	case ModePublicTransport, ModeWalk, ModeBike, ModeCar:
		return m, nil
	}
	return "", eris.Errorf("unknown travel mode %q", s)
}

// PostType is the kind of post a constraint searches for
type PostType string

const (
	PostRent    PostType = "RENT"
	PostSale    PostType = "SALE"
	PostSharing PostType = "SHARING"
)

// HouseType is the kind of housing a constraint accepts
type HouseType string

const (
	HouseApart   HouseType = "APART"
	HouseHouse   HouseType = "HOUSE"
	HouseParking HouseType = "PARKING"
	HouseLand    HouseType = "LAND"
	HouseOther   HouseType = "OTHER"
	HouseUnknown HouseType = "UNKNOWN"
)
