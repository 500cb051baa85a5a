package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"

	"flatsift/models"
)

// DefaultPageSize is the number of results requested per search page
const DefaultPageSize = 100

// APIHandler talks to a backend exposing listings as JSON over HTTP:
//
//	POST {endpoint}/search        body {"constraint": .., "page": n, "per_page": n}
//	GET  {endpoint}/housings/{id}
type APIHandler struct {
	id       string
	endpoint string
	client   *http.Client
	PageSize int
	MaxPages int
}

func NewAPIHandler(id, endpoint string, client *http.Client) *APIHandler {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &APIHandler{
		id:       id,
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
		PageSize: DefaultPageSize,
		MaxPages: 50,
	}
}

func (h *APIHandler) ID() string {
	return h.id
}

type searchRequest struct {
	Constraint *models.Constraint `json:"constraint"`
	Page       int                `json:"page"`
	PerPage    int                `json:"per_page"`
}

type searchResponse struct {
	Results []*models.Listing `json:"results"`
}

func (h *APIHandler) Search(ctx context.Context, c *models.Constraint) ([]*models.Listing, error) {
	var all []*models.Listing

	for page := 1; h.MaxPages <= 0 || page <= h.MaxPages; page++ {
		listings, err := h.fetchPage(ctx, c, page)
		if err != nil {
			return nil, eris.Wrapf(err, "page %d", page)
		}

		if len(listings) == 0 {
			break
		}

		all = append(all, listings...)
		log.Debug().
			Str("backend", h.id).
			Str("constraint", c.Name).
			Int("page", page).
			Int("listings", len(listings)).
			Int("total", len(all)).
			Msg("search page fetched")

		if len(listings) < h.PageSize {
			break
		}
	}

	return all, nil
}

func (h *APIHandler) fetchPage(ctx context.Context, c *models.Constraint, page int) ([]*models.Listing, error) {
	body, err := json.Marshal(searchRequest{Constraint: c, Page: page, PerPage: h.PageSize})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var result searchResponse
	if err := h.do(req, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

func (h *APIHandler) FetchDetails(ctx context.Context, id string) (*models.Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint+"/housings/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	var l models.Listing
	if err := h.do(req, &l); err != nil {
		return nil, eris.Wrapf(err, "details of %s", id)
	}
	return &l, nil
}

func (h *APIHandler) do(req *http.Request, out any) error {
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return eris.Errorf("%s API error %d: %s", h.id, resp.StatusCode, string(respBody))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
