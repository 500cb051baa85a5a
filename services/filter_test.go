package services

import (
	"testing"

	"flatsift/models"
)

func TestIsWithinInterval(t *testing.T) {
	tests := []struct {
		value, min, max *int
		want            bool
	}{
		{nil, models.Int(4), models.Int(7), true},
		{models.Int(5), models.Int(4), models.Int(7), true},
		{models.Int(2), models.Int(4), models.Int(7), false},
		{models.Int(2), nil, nil, true},
		{models.Int(2), nil, models.Int(3), true},
		{models.Int(2), models.Int(1), nil, true},
		{models.Int(2), models.Int(4), models.Int(1), false},
		{models.Int(7), models.Int(4), models.Int(7), true},
	}
	for i, tt := range tests {
		if got := IsWithinInterval(tt.value, tt.min, tt.max); got != tt.want {
			t.Fatalf("case %d: expected %v, got %v", i, tt.want, got)
		}
	}

	if !IsWithinInterval(models.Float64(50.5), models.Float64(40), models.Float64(60)) {
		t.Fatalf("expected float value within bounds")
	}
}

func housingConstraint() *models.Constraint {
	return &models.Constraint{
		Name:        "default",
		PostalCodes: []string{"75014", "75015"},
		Area:        models.NewInterval(models.Float64(30), nil),
		Cost:        models.NewInterval(nil, models.Float64(1500)),
		Rooms:       models.NewInterval(models.Int(2), models.Int(4)),
		TimeTo: map[string]models.TimeToTarget{
			"work": {Time: models.NewInterval(nil, models.Int(1800))},
		},
	}
}

func TestRefineWithHousingCriteria(t *testing.T) {
	c := housingConstraint()

	ok := &models.Listing{ID: "ok@pap", Area: models.Float64(45), Cost: models.Float64(1200), Rooms: models.Int(2)}
	unknown := &models.Listing{ID: "unknown@pap"}
	tooSmall := &models.Listing{ID: "small@pap", Area: models.Float64(20)}
	wrongPostal := &models.Listing{ID: "postal@pap", Meta: models.Metadata{PostalCode: "92120"}}
	tooFar := &models.Listing{ID: "far@pap", Meta: models.Metadata{
		TimeTo: map[string]models.TravelTime{"work": {Seconds: 3600}},
	}}
	otherPlace := &models.Listing{ID: "other@pap", Meta: models.Metadata{
		TimeTo: map[string]models.TravelTime{"gym": {Seconds: 9999}},
	}}

	kept, ignored := RefineWithHousingCriteria(
		[]*models.Listing{ok, unknown, tooSmall, wrongPostal, tooFar, otherPlace}, c)

	if len(kept) != 3 || kept[0] != ok || kept[1] != unknown || kept[2] != otherPlace {
		t.Fatalf("unexpected kept listings %v", ids(kept))
	}
	if len(ignored) != 3 {
		t.Fatalf("expected 3 ignored listings, got %v", ids(ignored))
	}
}

func TestRefineWithDetailsCriteria(t *testing.T) {
	c := &models.Constraint{
		MinimumPhotos:               models.Int(2),
		DescriptionShouldContain:    []string{"Balcon"},
		DescriptionShouldNotContain: []string{"rez-de-chaussée"},
	}
	photos := []models.Photo{{URL: "a"}, {URL: "b"}}

	ok := &models.Listing{ID: "ok@pap", Photos: photos, Text: "Joli 2 pièces avec BALCON."}
	fewPhotos := &models.Listing{ID: "few@pap", Photos: photos[:1], Text: "balcon"}
	noTerm := &models.Listing{ID: "noterm@pap", Photos: photos, Text: "terrasse"}
	forbidden := &models.Listing{ID: "forbidden@pap", Photos: photos, Text: "balcon, au rez de chaussee"}

	kept, ignored := RefineWithDetailsCriteria([]*models.Listing{ok, fewPhotos, noTerm, forbidden}, c)
	if len(kept) != 1 || kept[0] != ok {
		t.Fatalf("unexpected kept listings %v", ids(kept))
	}
	if len(ignored) != 3 {
		t.Fatalf("expected 3 ignored listings, got %v", ids(ignored))
	}
}

func TestRefineWithDetailsCriteria_TitleCasedWords(t *testing.T) {
	c := &models.Constraint{DescriptionShouldContain: []string{"mer", "le port"}}
	seaView := &models.Listing{ID: "sea@pap", Text: "Studio avec Vue sur Mer, Le Port à 5 minutes"}

	kept, ignored := RefineWithDetailsCriteria([]*models.Listing{seaView}, c)
	if len(kept) != 1 || len(ignored) != 0 {
		t.Fatalf("expected the listing kept, kept=%v ignored=%v", ids(kept), ids(ignored))
	}
}

func TestRefineWithDetailsCriteria_NoRequirements(t *testing.T) {
	kept, ignored := RefineWithDetailsCriteria([]*models.Listing{{ID: "1@pap"}}, &models.Constraint{})
	if len(kept) != 1 || len(ignored) != 0 {
		t.Fatalf("expected everything kept without requirements")
	}
}

func ids(listings []*models.Listing) []string {
	out := make([]string, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.ID)
	}
	return out
}
