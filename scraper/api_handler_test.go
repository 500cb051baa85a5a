package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"flatsift/models"
)

func newBackendServer(t *testing.T, total int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Constraint == nil || req.Constraint.Name != "paris" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var results []*models.Listing
		for i := (req.Page - 1) * req.PerPage; i < req.Page*req.PerPage && i < total; i++ {
			results = append(results, &models.Listing{ID: fmt.Sprintf("%d@seloger", i)})
		}
		json.NewEncoder(w).Encode(searchResponse{Results: results})
	})
	mux.HandleFunc("/housings/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/housings/")
		switch id {
		case "1@seloger":
			json.NewEncoder(w).Encode(models.Listing{ID: id, Title: "T2 lumineux", Text: "Proche métro"})
		case "500@seloger":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIHandlerSearchPaginates(t *testing.T) {
	srv := newBackendServer(t, 5)
	h := NewAPIHandler("seloger", srv.URL+"/", srv.Client())
	h.PageSize = 2

	got, err := h.Search(context.Background(), &models.Constraint{Name: "paris"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d listings, want 5", len(got))
	}
	if got[4].ID != "4@seloger" {
		t.Errorf("last id = %s", got[4].ID)
	}
}

func TestAPIHandlerSearchStopsAtMaxPages(t *testing.T) {
	srv := newBackendServer(t, 100)
	h := NewAPIHandler("seloger", srv.URL, srv.Client())
	h.PageSize = 10
	h.MaxPages = 3

	got, err := h.Search(context.Background(), &models.Constraint{Name: "paris"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 30 {
		t.Errorf("got %d listings, want 30", len(got))
	}
}

func TestAPIHandlerSearchError(t *testing.T) {
	srv := newBackendServer(t, 5)
	h := NewAPIHandler("seloger", srv.URL, srv.Client())

	if _, err := h.Search(context.Background(), &models.Constraint{Name: "lyon"}); err == nil {
		t.Fatal("expected an error on a 400 response")
	}
}

func TestAPIHandlerFetchDetails(t *testing.T) {
	srv := newBackendServer(t, 0)
	h := NewAPIHandler("seloger", srv.URL, srv.Client())
	ctx := context.Background()

	l, err := h.FetchDetails(ctx, "1@seloger")
	if err != nil {
		t.Fatalf("FetchDetails: %v", err)
	}
	if l.Title != "T2 lumineux" || l.Text != "Proche métro" {
		t.Errorf("details = %+v", l)
	}

	if _, err := h.FetchDetails(ctx, "2@seloger"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing listing error = %v, want ErrNotFound", err)
	}
	if _, err := h.FetchDetails(ctx, "500@seloger"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("server error = %v, want a non ErrNotFound error", err)
	}
}
