package scraper

import (
	"context"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"

	"flatsift/models"
)

// ErrNotFound means a handler does not know the requested listing
var ErrNotFound = errors.New("listing not found")

// Handler is a source of raw listings for one backend
type Handler interface {
	ID() string
	Search(ctx context.Context, c *models.Constraint) ([]*models.Listing, error)
	FetchDetails(ctx context.Context, id string) (*models.Listing, error)
}

// NewHandler builds a handler of the given kind. source is a dump file path
// for "dump" and a base URL for "api".
func NewHandler(kind, id, source string, client *http.Client) (Handler, error) {
	switch kind {
	case "dump":
		return NewDumpHandler(id, source)
	case "api", "":
		return NewAPIHandler(id, source, client), nil
	default:
		return nil, eris.Errorf("unknown handler kind %q for %s", kind, id)
	}
}

// Registry routes detail fetches to the handler owning the listing backend
type Registry struct {
	handlers []Handler
	byID     map[string]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{byID: make(map[string]Handler)}
	for _, h := range handlers {
		r.Add(h)
	}
	return r
}

func (r *Registry) Add(h Handler) {
	r.handlers = append(r.handlers, h)
	r.byID[h.ID()] = h
}

func (r *Registry) Handlers() []Handler {
	return r.handlers
}

func (r *Registry) Len() int {
	return len(r.handlers)
}

// FetchDetails asks the handler named after the id backend, then every
// other handler in registration order.
func (r *Registry) FetchDetails(ctx context.Context, id string) (*models.Listing, error) {
	owner, ok := r.byID[models.BackendOf(id)]
	if ok {
		l, err := owner.FetchDetails(ctx, id)
		if err == nil || !errors.Is(err, ErrNotFound) {
			return l, err
		}
	}
	for _, h := range r.handlers {
		if h == owner {
			continue
		}
		l, err := h.FetchDetails(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return l, err
	}
	return nil, eris.Wrapf(ErrNotFound, "no handler knows %s", id)
}
