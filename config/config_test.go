package config

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"flatsift/geo"
	"flatsift/models"
)

func TestLoadConstraints(t *testing.T) {
	constraints, err := LoadConstraints(filepath.Join("testdata", "constraints"))
	if err != nil {
		t.Fatalf("LoadConstraints: %v", err)
	}
	if len(constraints) != 2 {
		t.Fatalf("got %d constraints, want 2", len(constraints))
	}

	paris, ok := constraints["paris"]
	if !ok {
		t.Fatal("constraint name should default to the file name")
	}
	if paris.Area.Min == nil || *paris.Area.Min != 15 || paris.Area.Max != nil {
		t.Errorf("area = %+v", paris.Area)
	}
	if paris.Cost.Min != nil || paris.Cost.Max == nil || *paris.Cost.Max != 1200 {
		t.Errorf("cost = %+v", paris.Cost)
	}
	if paris.MinimumPhotos == nil || *paris.MinimumPhotos != 2 {
		t.Errorf("minimum photos = %v", paris.MinimumPhotos)
	}
	work := paris.TimeTo["work"]
	if work.Position.Lat != 48.8748465 || work.Time.Max == nil || *work.Time.Max != 1800 {
		t.Errorf("time_to work = %+v", work)
	}
	if gym := paris.TimeTo["gym"]; gym.Position.Lng != 2.33 {
		t.Errorf("time_to gym = %+v", gym)
	}

	if _, ok := constraints["lyon-centre"]; !ok {
		t.Error("explicit name not honoured")
	}
}

func TestLoadConstraintsErrors(t *testing.T) {
	_, err := LoadConstraints(filepath.Join("testdata", "bad"))
	if err == nil || !strings.Contains(err.Error(), "broken.yaml") {
		t.Errorf("error = %v, want one naming broken.yaml", err)
	}

	got, err := LoadConstraints(filepath.Join("testdata", "missing"))
	if err != nil || len(got) != 0 {
		t.Errorf("missing dir = %v, %v; want empty, nil", got, err)
	}
}

func TestLoadBackends(t *testing.T) {
	backends, err := LoadBackends(filepath.Join("testdata", "backends"))
	if err != nil {
		t.Fatalf("LoadBackends: %v", err)
	}
	b, ok := backends["seloger"]
	if !ok {
		t.Fatalf("backends = %v", backends)
	}
	if b.Handler != "api" || b.Source != "http://localhost:8080/seloger" {
		t.Errorf("backend = %+v", b)
	}
}

func TestDefaultConstraintIsValid(t *testing.T) {
	constraints, err := LoadConstraints("constraints")
	if err != nil {
		t.Fatalf("LoadConstraints: %v", err)
	}
	c, ok := constraints["default"]
	if !ok {
		t.Fatal("default constraint missing")
	}
	if err := ValidateConstraint(c); err != nil {
		t.Fatalf("ValidateConstraint: %v", err)
	}
	if c.Type != models.PostRent || c.HouseTypes[0] != models.HouseApart {
		t.Errorf("enums not normalised: %s %v", c.Type, c.HouseTypes)
	}
	if c.TimeTo["work"].Mode != models.ModePublicTransport {
		t.Errorf("mode = %q", c.TimeTo["work"].Mode)
	}
}

func validConstraint() *models.Constraint {
	return &models.Constraint{
		Name:        "paris",
		Type:        "rent",
		HouseTypes:  []models.HouseType{"apart"},
		PostalCodes: []string{"75014"},
		Area:        models.NewInterval(models.Float64(20), models.Float64(60)),
	}
}

func TestValidateConstraint(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *models.Constraint)
		want   string
	}{
		{"valid", func(c *models.Constraint) {}, ""},
		{"bad type", func(c *models.Constraint) { c.Type = "lease" }, "unknown type"},
		{"no house types", func(c *models.Constraint) { c.HouseTypes = nil }, "house_types"},
		{"bad house type", func(c *models.Constraint) { c.HouseTypes = []models.HouseType{"castle"} }, "house type"},
		{"no postal codes", func(c *models.Constraint) { c.PostalCodes = nil }, "postal_codes"},
		{"negative photos", func(c *models.Constraint) { c.MinimumPhotos = models.Int(-1) }, "minimum_nb_photos"},
		{"inverted area", func(c *models.Constraint) {
			c.Area = models.NewInterval(models.Float64(60), models.Float64(20))
		}, "area"},
		{"equal bounds", func(c *models.Constraint) {
			c.Rooms = models.NewInterval(models.Int(2), models.Int(2))
		}, "rooms"},
		{"negative cost", func(c *models.Constraint) {
			c.Cost = models.NewInterval(models.Float64(-5), nil)
		}, "cost"},
		{"bad mode", func(c *models.Constraint) {
			c.TimeTo = map[string]models.TimeToTarget{"work": {Mode: "teleport"}}
		}, "time_to work"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConstraint()
			tt.mutate(c)
			err := ValidateConstraint(c)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want one mentioning %q", err, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Passes:      3,
		Duplicates:  DuplicatesConfig{Threshold: 15},
		Images:      ImagesConfig{Store: "disk"},
		Constraints: map[string]*models.Constraint{"paris": validConstraint()},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cfg.Passes = 4
	if err := cfg.Validate(); err == nil {
		t.Error("passes 4 accepted")
	}
	cfg.Passes = 1

	cfg.Images.Store = "s3"
	if err := cfg.Validate(); err == nil {
		t.Error("s3 store without bucket accepted")
	}
	cfg.Images.Store = "disk"

	cfg.Constraints = nil
	if err := cfg.Validate(); err == nil {
		t.Error("empty constraint set accepted")
	}
}

func TestCheckPostalCodes(t *testing.T) {
	dataset := geo.NewMemoryDataset(
		[]models.PostalCode{{Area: "FR-IDF", PostalCode: "75014", Name: "Paris 14"}},
		nil,
	)
	cfg := &Config{Constraints: map[string]*models.Constraint{"paris": validConstraint()}}
	if err := cfg.CheckPostalCodes(context.Background(), dataset); err != nil {
		t.Fatalf("CheckPostalCodes: %v", err)
	}

	cfg.Constraints["paris"].PostalCodes = append(cfg.Constraints["paris"].PostalCodes, "75099")
	if err := cfg.CheckPostalCodes(context.Background(), dataset); err == nil {
		t.Error("unknown postal code accepted")
	}
}
