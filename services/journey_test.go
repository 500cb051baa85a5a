package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"flatsift/models"
)

func TestJourneyClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/journeys":
			user, _, ok := r.BasicAuth()
			if !ok || user != "navitia-key" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if r.URL.Query().Get("from") != "2.332400;48.833900" {
				http.Error(w, "bad from "+r.URL.Query().Get("from"), http.StatusBadRequest)
				return
			}
			w.Write([]byte(`{"journeys": [{"durations": {"total": 1234}}]}`))
		case strings.HasPrefix(r.URL.Path, "/mapbox/walking/"):
			if r.URL.Query().Get("access_token") != "mapbox-key" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"routes": [{"duration": 845.7}]}`))
		case strings.HasPrefix(r.URL.Path, "/mapbox/driving/"):
			w.Write([]byte(`{"routes": []}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewJourneyClient("navitia-key", "mapbox-key", srv.Client())
	client.NavitiaEndpoint = srv.URL + "/journeys"
	client.MapboxEndpoint = srv.URL

	ctx := context.Background()
	from := models.LatLng{Lat: 48.8339, Lng: 2.3324}
	to := models.LatLng{Lat: 48.8566, Lng: 2.3522}

	secs, err := client.TravelTime(ctx, from, to, models.ModePublicTransport)
	if err != nil || secs != 1234 {
		t.Fatalf("expected 1234s by public transport, got %d (%v)", secs, err)
	}
	secs, err = client.TravelTime(ctx, from, to, models.ModeWalk)
	if err != nil || secs != 845 {
		t.Fatalf("expected 845s walking, got %d (%v)", secs, err)
	}
	if _, err := client.TravelTime(ctx, from, to, models.ModeCar); err == nil {
		t.Fatalf("expected an error without route")
	}
	_, err = client.TravelTime(ctx, from, to, models.ModeBike)
	if err == nil {
		t.Fatalf("expected an error on 404")
	}
	if msg := err.Error(); !strings.Contains(msg, "mapbox") || !strings.Contains(msg, "status 404") {
		t.Fatalf("expected the service and status in the error, got %q", msg)
	}
	if errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("a failed request is not a missing key")
	}
}

func TestJourneyClient_NoAPIKey(t *testing.T) {
	client := NewJourneyClient("", "", nil)
	ctx := context.Background()
	for _, mode := range []models.TravelMode{models.ModePublicTransport, models.ModeWalk, models.ModeBike, models.ModeCar} {
		if _, err := client.TravelTime(ctx, models.LatLng{}, models.LatLng{}, mode); !errors.Is(err, ErrNoAPIKey) {
			t.Fatalf("expected ErrNoAPIKey for %s, got %v", mode, err)
		}
	}
}
