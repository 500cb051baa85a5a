package services

import (
	"reflect"
	"sort"
	"testing"

	"flatsift/models"
)

func TestMergeListings_AuthoritativeWins(t *testing.T) {
	a := &models.Listing{ID: "1@pap", URLs: []string{"u1"}, MergedIDs: []string{"1@pap"}, Title: "Old title", Phone: "0102030405"}
	b := &models.Listing{ID: "2@seloger", URLs: []string{"u2"}, MergedIDs: []string{"2@seloger"}, Title: "New title", Cost: models.Float64(1200)}

	merged := MergeListings(a, b)

	if merged.Cost == nil || *merged.Cost != 1200 {
		t.Fatalf("expected cost 1200, got %v", merged.Cost)
	}
	urls := append([]string(nil), merged.URLs...)
	sort.Strings(urls)
	if !reflect.DeepEqual(urls, []string{"u1", "u2"}) {
		t.Fatalf("expected urls u1 and u2, got %v", merged.URLs)
	}
	if len(merged.MergedIDs) != 2 {
		t.Fatalf("expected 2 merged ids, got %v", merged.MergedIDs)
	}
	if merged.Title != "New title" {
		t.Fatalf("expected authoritative title, got %q", merged.Title)
	}
	if merged.Phone != "0102030405" {
		t.Fatalf("expected base phone kept, got %q", merged.Phone)
	}
	if merged.ID != "2@seloger" {
		t.Fatalf("expected authoritative id, got %q", merged.ID)
	}
	if a.Cost != nil || len(a.URLs) != 1 {
		t.Fatalf("merge must not modify its inputs")
	}
}

func TestMergeListings_NilNeverOverwrites(t *testing.T) {
	a := &models.Listing{ID: "1@pap", Area: models.Float64(42), Rooms: models.Int(2), Utilities: models.UtilitiesIncluded}
	b := &models.Listing{ID: "1@pap"}

	merged := MergeListings(a, b)
	if merged.Area == nil || *merged.Area != 42 {
		t.Fatalf("area lost in merge: %v", merged.Area)
	}
	if merged.Rooms == nil || *merged.Rooms != 2 {
		t.Fatalf("rooms lost in merge: %v", merged.Rooms)
	}
	if merged.Utilities != models.UtilitiesIncluded {
		t.Fatalf("utilities lost in merge: %v", merged.Utilities)
	}
}

func TestMergeListings_Metadata(t *testing.T) {
	a := &models.Listing{ID: "1@pap", Meta: models.Metadata{
		PostalCode: "75014",
		TimeTo:     map[string]models.TravelTime{"work": {Seconds: 600}},
	}}
	b := &models.Listing{ID: "1@pap", Meta: models.Metadata{
		MatchedStations: []models.MatchedStation{},
		TimeTo:          map[string]models.TravelTime{"school": {Seconds: 300}},
	}}

	merged := MergeListings(a, b)
	if merged.Meta.PostalCode != "75014" {
		t.Fatalf("expected postal code kept, got %q", merged.Meta.PostalCode)
	}
	if merged.Meta.MatchedStations == nil {
		t.Fatalf("expected computed stations to be kept")
	}
	if len(merged.Meta.TimeTo) != 2 {
		t.Fatalf("expected 2 travel times, got %v", merged.Meta.TimeTo)
	}
}

func TestMergeAll_Associative(t *testing.T) {
	a := &models.Listing{ID: "1@logicimmo", URLs: []string{"u1"}, Title: "a", Cost: models.Float64(900)}
	b := &models.Listing{ID: "2@pap", URLs: []string{"u2"}, Area: models.Float64(30)}
	c := &models.Listing{ID: "3@seloger", URLs: []string{"u3"}, Title: "c"}

	left := MergeListings(MergeListings(a, b), c)
	right := MergeListings(a, MergeListings(b, c))

	if !reflect.DeepEqual(left, right) {
		t.Fatalf("merge is not associative:\n%+v\n%+v", left, right)
	}
	if all := MergeAll(a, b, c); !reflect.DeepEqual(all, left) {
		t.Fatalf("MergeAll differs from a left fold")
	}
}

func TestPrecedence(t *testing.T) {
	p := DefaultPrecedence
	if p.Rank("foncia") <= p.Rank("seloger") {
		t.Fatalf("foncia should outrank seloger")
	}
	if p.Rank("logicimmo") <= p.Rank("unknown") {
		t.Fatalf("known backends should outrank unknown ones")
	}
	if p.Rank("unknown") != 0 {
		t.Fatalf("unknown backend should rank 0")
	}

	custom := ParsePrecedence(" PAP , seloger,")
	if len(custom) != 2 || custom[0] != "pap" {
		t.Fatalf("unexpected parsed precedence %v", custom)
	}
	if len(ParsePrecedence("")) != len(DefaultPrecedence) {
		t.Fatalf("empty precedence should fall back to the default")
	}
}
