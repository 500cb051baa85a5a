package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"flatsift/models"
)

const (
	NavitiaEndpoint = "https://api.navitia.io/v1/coverage/fr-idf/journeys"
	MapboxEndpoint  = "https://api.mapbox.com/directions/v5"
)

// ErrNoAPIKey means the journey service for a travel mode is not configured
var ErrNoAPIKey = errors.New("no API key for journey service")

// JourneyService returns the travel duration between two points, in seconds
type JourneyService interface {
	TravelTime(ctx context.Context, from, to models.LatLng, mode models.TravelMode) (int, error)
}

// JourneyClient routes public transport through Navitia and walk, bike and
// car journeys through Mapbox directions
type JourneyClient struct {
	NavitiaKey      string
	MapboxKey       string
	NavitiaEndpoint string
	MapboxEndpoint  string

	client *http.Client
	now    func() time.Time
}

func NewJourneyClient(navitiaKey, mapboxKey string, client *http.Client) *JourneyClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &JourneyClient{
		NavitiaKey:      navitiaKey,
		MapboxKey:       mapboxKey,
		NavitiaEndpoint: NavitiaEndpoint,
		MapboxEndpoint:  MapboxEndpoint,
		client:          client,
		now:             time.Now,
	}
}

func (c *JourneyClient) TravelTime(ctx context.Context, from, to models.LatLng, mode models.TravelMode) (int, error) {
	switch mode {
	case models.ModePublicTransport, "":
		return c.navitia(ctx, from, to)
	case models.ModeWalk:
		return c.mapbox(ctx, "walking", from, to)
	case models.ModeBike:
		return c.mapbox(ctx, "cycling", from, to)
	case models.ModeCar:
		return c.mapbox(ctx, "driving", from, to)
	}
	return 0, eris.Errorf("unsupported travel mode %q", mode)
}

type navitiaResponse struct {
	Journeys []struct {
		Durations struct {
			Total int `json:"total"`
		} `json:"durations"`
	} `json:"journeys"`
}

func (c *JourneyClient) navitia(ctx context.Context, from, to models.LatLng) (int, error) {
	if c.NavitiaKey == "" {
		return 0, ErrNoAPIKey
	}

	params := url.Values{}
	params.Set("from", fmt.Sprintf("%f;%f", from.Lng, from.Lat))
	params.Set("to", fmt.Sprintf("%f;%f", to.Lng, to.Lat))
	params.Set("datetime", c.now().Format("20060102T150405"))
	params.Set("count", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.NavitiaEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return 0, eris.Wrap(err, "navitia request")
	}
	req.SetBasicAuth(c.NavitiaKey, "")

	var result navitiaResponse
	if err := c.doJSON(req, &result); err != nil {
		return 0, eris.Wrap(err, "navitia")
	}
	if len(result.Journeys) == 0 {
		return 0, eris.New("navitia: no journey found")
	}
	return result.Journeys[0].Durations.Total, nil
}

type mapboxResponse struct {
	Routes []struct {
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

func (c *JourneyClient) mapbox(ctx context.Context, profile string, from, to models.LatLng) (int, error) {
	if c.MapboxKey == "" {
		return 0, ErrNoAPIKey
	}

	endpoint := fmt.Sprintf("%s/mapbox/%s/%f,%f;%f,%f?access_token=%s",
		c.MapboxEndpoint, profile, from.Lng, from.Lat, to.Lng, to.Lat, url.QueryEscape(c.MapboxKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, eris.Wrap(err, "mapbox request")
	}

	var result mapboxResponse
	if err := c.doJSON(req, &result); err != nil {
		return 0, eris.Wrap(err, "mapbox")
	}
	if len(result.Routes) == 0 {
		return 0, eris.New("mapbox: no route found")
	}
	return int(result.Routes[0].Duration), nil
}

func (c *JourneyClient) doJSON(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return eris.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
