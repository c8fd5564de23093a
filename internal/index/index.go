package index

import (
	"fmt"
	"strings"

	"github.com/andresmejia3/facesheet/internal/page"
)

// Index maps page ids to records and remembers archive order.
// It is read-only once built.
type Index struct {
	ids     []string
	records map[string]*page.Record
}

// New builds an Index from records in archive order. Duplicate ids are rejected.
func New(records ...*page.Record) (*Index, error) {
	ix := &Index{
		ids:     make([]string, 0, len(records)),
		records: make(map[string]*page.Record, len(records)),
	}
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if _, dup := ix.records[rec.ID]; dup {
			return nil, fmt.Errorf("duplicate page id %q", rec.ID)
		}
		ix.ids = append(ix.ids, rec.ID)
		ix.records[rec.ID] = rec
	}
	return ix, nil
}

// Lookup returns, in archive order, every page id whose text contains query.
// Matching is exact and case-sensitive. An empty query matches nothing.
func (ix *Index) Lookup(query string) []string {
	matches := []string{}
	if query == "" {
		return matches
	}
	for _, id := range ix.ids {
		if strings.Contains(ix.records[id].Text, query) {
			matches = append(matches, id)
		}
	}
	return matches
}

// Record returns the record stored for id.
func (ix *Index) Record(id string) (*page.Record, bool) {
	rec, ok := ix.records[id]
	return rec, ok
}

// IDs returns page ids in archive order.
func (ix *Index) IDs() []string {
	return append([]string(nil), ix.ids...)
}

// Len is the number of indexed pages.
func (ix *Index) Len() int {
	return len(ix.ids)
}
