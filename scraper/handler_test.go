package scraper

import (
	"context"
	"errors"
	"testing"

	"flatsift/models"
)

type stubHandler struct {
	id       string
	listings map[string]*models.Listing
	fail     bool
	calls    int
}

func (s *stubHandler) ID() string { return s.id }

func (s *stubHandler) Search(_ context.Context, c *models.Constraint) ([]*models.Listing, error) {
	if s.fail {
		return nil, errors.New("backend down")
	}
	var out []*models.Listing
	for _, l := range s.listings {
		out = append(out, l)
	}
	return out, nil
}

func (s *stubHandler) FetchDetails(_ context.Context, id string) (*models.Listing, error) {
	s.calls++
	if s.fail {
		return nil, errors.New("backend down")
	}
	l, ok := s.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return l, nil
}

func TestRegistryRoutesByBackend(t *testing.T) {
	seloger := &stubHandler{id: "seloger", listings: map[string]*models.Listing{
		"1@seloger": {ID: "1@seloger", Title: "from seloger"},
	}}
	dump := &stubHandler{id: "dump", listings: map[string]*models.Listing{
		"1@seloger": {ID: "1@seloger", Title: "from dump"},
		"2@pap":     {ID: "2@pap", Title: "from dump"},
	}}
	r := NewRegistry(dump, seloger)
	ctx := context.Background()

	l, err := r.FetchDetails(ctx, "1@seloger")
	if err != nil || l.Title != "from seloger" {
		t.Fatalf("FetchDetails(1@seloger) = %+v, %v", l, err)
	}
	if dump.calls != 0 {
		t.Errorf("dump asked %d times, want 0", dump.calls)
	}

	l, err = r.FetchDetails(ctx, "2@pap")
	if err != nil || l.Title != "from dump" {
		t.Fatalf("FetchDetails(2@pap) = %+v, %v", l, err)
	}

	if _, err := r.FetchDetails(ctx, "3@pap"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id error = %v, want ErrNotFound", err)
	}
}

func TestRegistryOwnerErrorIsReturned(t *testing.T) {
	broken := &stubHandler{id: "seloger", fail: true}
	r := NewRegistry(broken)
	if _, err := r.FetchDetails(context.Background(), "1@seloger"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want the backend failure", err)
	}
}

func TestNewHandler(t *testing.T) {
	h, err := NewHandler("api", "seloger", "http://localhost:1", nil)
	if err != nil || h.ID() != "seloger" {
		t.Fatalf("NewHandler(api) = %v, %v", h, err)
	}
	if _, err := NewHandler("dump", "dump", "testdata/dump_array.json", nil); err != nil {
		t.Fatalf("NewHandler(dump): %v", err)
	}
	if _, err := NewHandler("carrier-pigeon", "x", "", nil); err == nil {
		t.Error("expected an error for an unknown kind")
	}
}

func TestCollectorIsolatesFailures(t *testing.T) {
	ok := &stubHandler{id: "pap", listings: map[string]*models.Listing{"1@pap": {ID: "1@pap"}}}
	down := &stubHandler{id: "seloger", fail: true}
	c := NewCollector(NewRegistry(down, ok))

	constraints := map[string]*models.Constraint{
		"paris": {Name: "paris"},
		"lyon":  {Name: "lyon"},
	}
	got, stats := c.Collect(context.Background(), constraints)

	if len(got) != 2 || len(got["paris"]) != 1 || len(got["lyon"]) != 1 {
		t.Fatalf("collected %v", got)
	}
	if stats.Found != 2 || stats.Errors != 2 {
		t.Errorf("stats = %+v, want 2 found and 2 errors", stats)
	}
}
