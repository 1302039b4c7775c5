// Package paging walks the API's cursor-paginated collections.
//
// A list endpoint answers with the batch under the collection's name and a
// "paging" object whose "next" member is either a locator string, an object
// carrying the locator in "href", or absent on the last page:
//
//	{"videos": [...], "paging": {"next": {"href": "https://.../videos.json?p=2"}}}
package paging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/ochronus/goustream/internal/services/api"
)

const (
	pagingKey = "paging"
	nextKey   = "next"
)

// ErrMalformedPaging is returned when a "next" member is neither a locator
// string nor an object with a non-empty "href".
var ErrMalformedPaging = errors.New("malformed paging descriptor")

// Descriptor is the raw "paging" object of a list response.
type Descriptor map[string]json.RawMessage

// Page is one fetched batch of a collection. It never changes after
// construction; Next returns a new Page.
type Page struct {
	requester  api.Requester
	collection string
	items      []json.RawMessage
	next       string
}

// New builds a page from data that has already been fetched. It does not
// touch the network.
func New(r api.Requester, collection string, items []json.RawMessage, d Descriptor) (*Page, error) {
	next, err := nextLocator(d)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", collection, err)
	}
	items = slices.Clone(items)
	if items == nil {
		items = []json.RawMessage{}
	}
	return &Page{
		requester:  r,
		collection: collection,
		items:      items,
		next:       next,
	}, nil
}

// Empty returns the terminal page with no items.
func Empty(r api.Requester, collection string) *Page {
	return &Page{
		requester:  r,
		collection: collection,
		items:      []json.RawMessage{},
	}
}

// FromResponse builds a page out of a list response: the items are read
// from the member named after the collection and the descriptor from
// "paging". Either may be missing.
func FromResponse(r api.Requester, collection string, resp api.Response) (*Page, error) {
	var items []json.RawMessage
	if raw, ok := resp[collection]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%s: collection is not a list: %w", collection, err)
		}
	}

	var d Descriptor
	if raw, ok := resp[pagingKey]; ok {
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("%s: %w: %s", collection, ErrMalformedPaging, raw)
		}
	}

	return New(r, collection, items, d)
}

func nextLocator(d Descriptor) (string, error) {
	raw, ok := d[nextKey]
	if !ok {
		return "", nil
	}

	var locator string
	if err := json.Unmarshal(raw, &locator); err == nil && locator != "" {
		return locator, nil
	}

	var link struct {
		Href *string `json:"href"`
	}
	if err := json.Unmarshal(raw, &link); err == nil && link.Href != nil && *link.Href != "" {
		return *link.Href, nil
	}

	return "", fmt.Errorf("%w: next=%s", ErrMalformedPaging, raw)
}

// Items returns a copy of the raw records of this page in server order.
func (p *Page) Items() []json.RawMessage {
	return slices.Clone(p.items)
}

// Len is the number of records on this page.
func (p *Page) Len() int {
	return len(p.items)
}

// Collection is the name of the collection the page belongs to.
func (p *Page) Collection() string {
	return p.collection
}

// NextLocator returns where the following page lives.
func (p *Page) NextLocator() (string, bool) {
	return p.next, p.next != ""
}

// HasNext reports whether another page follows.
func (p *Page) HasNext() bool {
	return p.next != ""
}

// Next fetches the following page. On the last page it returns (nil, nil)
// without issuing a request. Request errors are returned unchanged.
func (p *Page) Next(ctx context.Context) (*Page, error) {
	if !p.HasNext() {
		return nil, nil
	}

	resp, err := p.requester.AuthRequest(ctx, http.MethodGet, p.next, nil)
	if err != nil {
		return nil, err
	}

	return FromResponse(p.requester, p.collection, resp)
}

// Walk calls fn for p and every page after it, in order. It stops at the
// first error from fn or from fetching.
func Walk(ctx context.Context, p *Page, fn func(*Page) error) error {
	for p != nil {
		if err := fn(p); err != nil {
			return err
		}

		next, err := p.Next(ctx)
		if err != nil {
			return err
		}
		p = next
	}
	return nil
}

// Decode unmarshals the records of p into T.
func Decode[T any](p *Page) ([]T, error) {
	out := make([]T, 0, len(p.items))
	for i, raw := range p.items {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%s item %d: %w", p.collection, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
