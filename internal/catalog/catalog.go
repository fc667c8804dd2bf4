// Package catalog indexes the product list supplied by the site configuration.
package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kiloshop/orderform/internal/apperr"
	"github.com/shopspring/decimal"
)

// LabelSeparator joins the localized names of a product into one label.
const LabelSeparator = " / "

// Name is a product name in one locale.
type Name struct {
	Lang string `json:"lang"`
	Name string `json:"name"`
}

// Entry is one product. Price is per kilogram.
type Entry struct {
	Key   string          `json:"key"`
	Names []Name          `json:"names"`
	Price decimal.Decimal `json:"price"`
}

// UnmarshalJSON also accepts the flat {"name_en", "name_it"} form used by
// older site configs.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Key    string          `json:"key"`
		Names  []Name          `json:"names"`
		NameEN string          `json:"name_en"`
		NameIT string          `json:"name_it"`
		Price  decimal.Decimal `json:"price"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Key = raw.Key
	e.Price = raw.Price
	e.Names = raw.Names
	if len(e.Names) == 0 {
		if raw.NameEN != "" {
			e.Names = append(e.Names, Name{Lang: "en", Name: raw.NameEN})
		}
		if raw.NameIT != "" {
			e.Names = append(e.Names, Name{Lang: "it", Name: raw.NameIT})
		}
	}
	return nil
}

// Label is the composite display label, e.g. "Bread / Pane".
func (e Entry) Label() string {
	parts := make([]string, 0, len(e.Names))
	for _, n := range e.Names {
		parts = append(parts, n.Name)
	}
	return strings.Join(parts, LabelSeparator)
}

// PrimaryName is the name in the primary (first) locale.
func (e Entry) PrimaryName() string {
	return PrimarySegment(e.Label())
}

// PrimarySegment truncates a composite label to its primary-locale segment.
func PrimarySegment(label string) string {
	primary, _, _ := strings.Cut(label, LabelSeparator)
	return primary
}

// Index maps product keys to entries, keeping configuration order.
type Index struct {
	keys    []string
	entries map[string]Entry
}

// BuildIndex validates entries and indexes them by key. An empty list yields
// an empty index.
func BuildIndex(entries []Entry) (*Index, error) {
	idx := &Index{
		keys:    make([]string, 0, len(entries)),
		entries: make(map[string]Entry, len(entries)),
	}
	for i, e := range entries {
		switch {
		case e.Key == "":
			return nil, invalid(fmt.Sprintf("item[%d]: key is required", i))
		case len(e.Names) == 0:
			return nil, invalid(fmt.Sprintf("item[%d] %q: at least one name is required", i, e.Key))
		case e.Price.IsNegative():
			return nil, invalid(fmt.Sprintf("item[%d] %q: price must be >= 0", i, e.Key))
		}
		if _, dup := idx.entries[e.Key]; dup {
			return nil, invalid(fmt.Sprintf("item[%d]: duplicate key %q", i, e.Key))
		}
		e.Names = append([]Name(nil), e.Names...)
		idx.keys = append(idx.keys, e.Key)
		idx.entries[e.Key] = e
	}
	return idx, nil
}

// Empty returns an index with no products.
func Empty() *Index {
	idx, _ := BuildIndex(nil)
	return idx
}

func invalid(msg string) *apperr.Error {
	return apperr.Configuration(apperr.CodeInvalidCatalog, "catalog: "+msg)
}

// Lookup returns the entry for key.
func (x *Index) Lookup(key string) (Entry, bool) {
	if x == nil {
		return Entry{}, false
	}
	e, ok := x.entries[key]
	return e, ok
}

// First returns the first configured key, or false when the index is empty.
func (x *Index) First() (string, bool) {
	if x == nil || len(x.keys) == 0 {
		return "", false
	}
	return x.keys[0], true
}

// Keys returns the product keys in configuration order.
func (x *Index) Keys() []string {
	if x == nil {
		return nil
	}
	return append([]string(nil), x.keys...)
}

// Entries returns the products in configuration order.
func (x *Index) Entries() []Entry {
	if x == nil {
		return nil
	}
	out := make([]Entry, 0, len(x.keys))
	for _, k := range x.keys {
		out = append(out, x.entries[k])
	}
	return out
}

// Len returns the number of products.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.keys)
}
