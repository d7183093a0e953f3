package assets

import (
	"bytes"
	"context"
	"io"
	"mountains-server/core"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

// mockAssetStore is an in-memory AssetStore for handler tests.
type mockAssetStore struct {
	blobs  map[string][]byte
	putErr error
	getErr error
}

func newMockAssetStore() *mockAssetStore {
	return &mockAssetStore{blobs: make(map[string][]byte)}
}

func (m *mockAssetStore) PutAsset(ctx context.Context, id string, data []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.blobs[id] = data
	return nil
}

func (m *mockAssetStore) GetAsset(ctx context.Context, id string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.blobs[id]
	if !ok {
		return nil, core.ErrAssetNotFound
	}
	return data, nil
}

func newRouter(store core.AssetStore) *chi.Mux {
	r := chi.NewRouter()
	r.Put("/uploads/{id}", HandlePut(store))
	r.Get("/uploads/{id}", HandleGet(store))
	return r
}

func doRequest(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

var pngBytes = append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 16)...)

func TestPutThenGetRoundtrip(t *testing.T) {
	r := newRouter(newMockAssetStore())

	rec := doRequest(r, http.MethodPut, "/uploads/tok123-photo.png", pngBytes)
	if rec.Code != http.StatusOK {
		t.Fatalf("put failed with status %d", rec.Code)
	}

	rec = doRequest(r, http.MethodGet, "/uploads/tok123-photo.png", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get failed with status %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), pngBytes) {
		t.Error("returned bytes differ from uploaded bytes")
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("expected image/png, got %q", got)
	}
}

func TestPutOverwritesExisting(t *testing.T) {
	r := newRouter(newMockAssetStore())

	doRequest(r, http.MethodPut, "/uploads/x", []byte("first"))
	doRequest(r, http.MethodPut, "/uploads/x", []byte("second"))

	rec := doRequest(r, http.MethodGet, "/uploads/x", nil)
	if rec.Body.String() != "second" {
		t.Errorf("expected overwrite, got %q", rec.Body.String())
	}
}

func TestGetSVGGetsSVGContentType(t *testing.T) {
	r := newRouter(newMockAssetStore())
	svg := []byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"><rect/></svg>`)

	doRequest(r, http.MethodPut, "/uploads/pic.svg", svg)
	rec := doRequest(r, http.MethodGet, "/uploads/pic.svg", nil)

	if got := rec.Header().Get("Content-Type"); got != "image/svg+xml" {
		t.Errorf("expected image/svg+xml, got %q", got)
	}
}

// Runs through a real server: the net/http layer sniffs a Content-Type of
// its own on the first body write unless the handler suppresses it, and a
// ResponseRecorder never exercises that.
func TestGetUnknownTypeOmitsContentType(t *testing.T) {
	srv := httptest.NewServer(newRouter(newMockAssetStore()))
	defer srv.Close()
	blob := []byte{0x00, 0x01, 0x02, 0x03, 0xFF, 0xFE}

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/uploads/mystery", bytes.NewReader(blob))
	if err != nil {
		t.Fatalf("build put request: %v", err)
	}
	if _, err := srv.Client().Do(req); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	resp, err := srv.Client().Get(srv.URL + "/uploads/mystery")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("request should still succeed, got %d", resp.StatusCode)
	}
	if got, present := resp.Header["Content-Type"]; present {
		t.Errorf("expected no Content-Type on the wire, got %v", got)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.Equal(body, blob) {
		t.Error("returned bytes differ from uploaded bytes")
	}
}

func TestGetMissingAssetIsNotFound(t *testing.T) {
	r := newRouter(newMockAssetStore())

	rec := doRequest(r, http.MethodGet, "/uploads/never-uploaded", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a never-uploaded id, got %d", rec.Code)
	}
}
