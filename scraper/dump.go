package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"flatsift/models"
)

// AnyConstraint keys the listings of a dump that apply to every constraint
const AnyConstraint = "*"

// Dump is a set of raw listings read from a JSON file. The file holds either
// a plain array of listings or an object mapping constraint names to arrays.
type Dump map[string][]*models.Listing

// LoadDump reads a dump file
func LoadDump(path string) (Dump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read dump %s", path)
	}
	dump, err := ParseDump(data)
	if err != nil {
		return nil, eris.Wrapf(err, "parse dump %s", path)
	}
	return dump, nil
}

func ParseDump(data []byte) (Dump, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Dump{}, nil
	}

	if data[0] == '[' {
		var all []*models.Listing
		if err := json.Unmarshal(data, &all); err != nil {
			return nil, eris.Wrap(err, "decode listing array")
		}
		return Dump{AnyConstraint: all}, nil
	}

	var byConstraint map[string][]*models.Listing
	if err := json.Unmarshal(data, &byConstraint); err != nil {
		return nil, eris.Wrap(err, "decode listings by constraint")
	}
	return Dump(byConstraint), nil
}

// For returns the listings of a constraint, plus those meant for any constraint
func (d Dump) For(name string) []*models.Listing {
	out := make([]*models.Listing, 0, len(d[name])+len(d[AnyConstraint]))
	out = append(out, d[name]...)
	if name != AnyConstraint {
		out = append(out, d[AnyConstraint]...)
	}
	return out
}

// ByConstraint spreads the dump over the given constraint names
func (d Dump) ByConstraint(names []string) map[string][]*models.Listing {
	out := make(map[string][]*models.Listing, len(names))
	for _, name := range names {
		out[name] = d.For(name)
	}
	return out
}

// DumpHandler serves searches and detail fetches from a dump file
type DumpHandler struct {
	id    string
	dump  Dump
	index map[string]*models.Listing
}

func NewDumpHandler(id, path string) (*DumpHandler, error) {
	dump, err := LoadDump(path)
	if err != nil {
		return nil, err
	}
	return NewDumpHandlerFrom(id, dump), nil
}

func NewDumpHandlerFrom(id string, dump Dump) *DumpHandler {
	index := make(map[string]*models.Listing)
	for _, listings := range dump {
		for _, l := range listings {
			if l == nil || l.ID == "" {
				continue
			}
			if _, seen := index[l.ID]; !seen {
				index[l.ID] = l
			}
		}
	}
	return &DumpHandler{id: id, dump: dump, index: index}
}

func (h *DumpHandler) ID() string {
	return h.id
}

func (h *DumpHandler) Search(_ context.Context, c *models.Constraint) ([]*models.Listing, error) {
	return h.dump.For(c.Name), nil
}

func (h *DumpHandler) FetchDetails(_ context.Context, id string) (*models.Listing, error) {
	l, ok := h.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	return l.Clone(), nil
}
