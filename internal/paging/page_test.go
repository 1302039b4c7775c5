package paging

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/ochronus/goustream/internal/services/api"
)

type request struct {
	method string
	path   string
}

type fakeRequester struct {
	requests  []request
	responses map[string]api.Response
	err       error
}

func (f *fakeRequester) AuthRequest(_ context.Context, method, path string, _ url.Values) (api.Response, error) {
	f.requests = append(f.requests, request{method: method, path: path})
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := f.responses[path]
	if !ok {
		return nil, &api.RequestError{Method: method, URL: path, StatusCode: 404, Status: "404 Not Found"}
	}
	return resp, nil
}

func mustResponse(t *testing.T, body string) api.Response {
	t.Helper()
	var resp api.Response
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("bad fixture %s: %v", body, err)
	}
	return resp
}

func descriptor(t *testing.T, body string) Descriptor {
	t.Helper()
	var d Descriptor
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		t.Fatalf("bad fixture %s: %v", body, err)
	}
	return d
}

func TestNewLocatorExtraction(t *testing.T) {
	tests := []struct {
		name     string
		paging   string
		wantNext string
		hasNext  bool
	}{
		{"no next key", `{}`, "", false},
		{"other keys only", `{"previous":"p1","total":3}`, "", false},
		{"bare locator", `{"next":"videos.json?p=2"}`, "videos.json?p=2", true},
		{"href object", `{"next":{"href":"https://api.example.com/videos.json?p=2"}}`, "https://api.example.com/videos.json?p=2", true},
		{"href with extra members", `{"next":{"href":"X","rel":"next"}}`, "X", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := New(&fakeRequester{}, "videos", nil, descriptor(t, tt.paging))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if page.HasNext() != tt.hasNext {
				t.Errorf("expected HasNext %v, got %v", tt.hasNext, page.HasNext())
			}
			next, ok := page.NextLocator()
			if ok != tt.hasNext || next != tt.wantNext {
				t.Errorf("expected locator (%q, %v), got (%q, %v)", tt.wantNext, tt.hasNext, next, ok)
			}
		})
	}
}

func TestNewNilDescriptorIsTerminal(t *testing.T) {
	page, err := New(&fakeRequester{}, "videos", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.HasNext() {
		t.Error("expected terminal page")
	}
	if page.Items() == nil || page.Len() != 0 {
		t.Errorf("expected empty non-nil items, got %v", page.Items())
	}
}

func TestPageItemsCannotBeModified(t *testing.T) {
	items := []json.RawMessage{json.RawMessage(`{"id":1}`), json.RawMessage(`{"id":2}`)}
	page, err := New(&fakeRequester{}, "videos", items, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items[0] = json.RawMessage(`{"id":99}`)
	got := page.Items()
	got[1] = json.RawMessage(`{"id":98}`)

	again := page.Items()
	if string(again[0]) != `{"id":1}` || string(again[1]) != `{"id":2}` {
		t.Errorf("page changed after construction: %s %s", again[0], again[1])
	}
}

func TestNewMalformedPaging(t *testing.T) {
	tests := []struct {
		name   string
		paging string
	}{
		{"null", `{"next":null}`},
		{"empty string", `{"next":""}`},
		{"number", `{"next":2}`},
		{"array", `{"next":["a"]}`},
		{"object without href", `{"next":{"url":"x"}}`},
		{"empty href", `{"next":{"href":""}}`},
		{"non-string href", `{"next":{"href":5}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(&fakeRequester{}, "videos", nil, descriptor(t, tt.paging))
			if !errors.Is(err, ErrMalformedPaging) {
				t.Fatalf("expected ErrMalformedPaging, got %v", err)
			}
		})
	}
}

func TestNewDoesNotRequest(t *testing.T) {
	r := &fakeRequester{}
	if _, err := New(r, "videos", nil, descriptor(t, `{"next":"X"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.requests) != 0 {
		t.Errorf("construction must not issue requests, got %v", r.requests)
	}
}

func TestNextFetchesExactLocator(t *testing.T) {
	tests := []struct {
		name   string
		paging string
	}{
		{"href object", `{"next":{"href":"X"}}`},
		{"bare locator", `{"next":"X"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRequester{responses: map[string]api.Response{
				"X": mustResponse(t, `{"videos":[{"id":3}],"paging":{}}`),
			}}
			page, err := New(r, "videos", nil, descriptor(t, tt.paging))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			next, err := page.Next(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(r.requests) != 1 || r.requests[0] != (request{"GET", "X"}) {
				t.Fatalf("expected a single GET X, got %v", r.requests)
			}
			if next.Collection() != "videos" {
				t.Errorf("expected collection to carry over, got %q", next.Collection())
			}
			if next.Len() != 1 || next.HasNext() {
				t.Errorf("unexpected next page: len=%d hasNext=%v", next.Len(), next.HasNext())
			}
		})
	}
}

func TestNextOnTerminalPage(t *testing.T) {
	r := &fakeRequester{}
	page := Empty(r, "playlists")

	next, err := page.Next(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != nil {
		t.Errorf("expected nil page, got %+v", next)
	}
	if len(r.requests) != 0 {
		t.Errorf("expected no requests, got %v", r.requests)
	}
}

func TestNextPropagatesRequestError(t *testing.T) {
	boom := errors.New("boom")
	r := &fakeRequester{err: boom}
	page, err := New(r, "videos", nil, descriptor(t, `{"next":"X"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := page.Next(context.Background()); err != boom {
		t.Fatalf("expected the request error unchanged, got %v", err)
	}
}

func TestFromResponse(t *testing.T) {
	r := &fakeRequester{}

	page, err := FromResponse(r, "playlists", mustResponse(t, `{"playlists":[{"id":1},{"id":2}],"paging":{"next":{"href":"p2"}}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Len() != 2 || !page.HasNext() {
		t.Errorf("unexpected page: len=%d hasNext=%v", page.Len(), page.HasNext())
	}

	page, err = FromResponse(r, "playlists", mustResponse(t, `{"playlists":null}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Len() != 0 || page.HasNext() {
		t.Errorf("expected empty terminal page")
	}

	if _, err := FromResponse(r, "playlists", mustResponse(t, `{"playlists":{"1":{}}}`)); err == nil {
		t.Error("expected error for non-list collection")
	}
	if _, err := FromResponse(r, "playlists", mustResponse(t, `{"playlists":[],"paging":[]}`)); !errors.Is(err, ErrMalformedPaging) {
		t.Errorf("expected ErrMalformedPaging, got %v", err)
	}
}

func TestWalkVisitsEveryPage(t *testing.T) {
	r := &fakeRequester{responses: map[string]api.Response{
		"p2": mustResponse(t, `{"videos":[{"id":2}],"paging":{"next":"p3"}}`),
		"p3": mustResponse(t, `{"videos":[{"id":3}],"paging":{}}`),
	}}
	first, err := FromResponse(r, "videos", mustResponse(t, `{"videos":[{"id":1}],"paging":{"next":{"href":"p2"}}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	type video struct {
		ID api.ID `json:"id"`
	}
	var ids []api.ID
	err = Walk(context.Background(), first, func(p *Page) error {
		videos, err := Decode[video](p)
		if err != nil {
			return err
		}
		for _, v := range videos {
			ids = append(ids, v.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 3 || ids[0] != "1" || ids[2] != "3" {
		t.Errorf("unexpected ids: %v", ids)
	}
	if len(r.requests) != 2 {
		t.Errorf("expected 2 requests, got %d", len(r.requests))
	}
}

func TestWalkStopsOnCallbackError(t *testing.T) {
	r := &fakeRequester{}
	page, _ := New(r, "videos", nil, descriptor(t, `{"next":"p2"}`))
	stop := errors.New("stop")

	if err := Walk(context.Background(), page, func(*Page) error { return stop }); err != stop {
		t.Fatalf("expected stop error, got %v", err)
	}
	if len(r.requests) != 0 {
		t.Errorf("expected no fetch after callback error")
	}
}

func TestDecodeError(t *testing.T) {
	page, _ := New(&fakeRequester{}, "videos", []json.RawMessage{json.RawMessage(`"nope"`)}, nil)
	type video struct{ ID string }
	if _, err := Decode[video](page); err == nil {
		t.Fatal("expected decode error")
	}
}
