package wms_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/osmundr/go-tileproc/fetch/wms"
	"github.com/osmundr/go-tileproc/grid"
)

func TestFetch(t *testing.T) {
	imageBytes := []byte("png bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		checks := map[string]string{
			"SERVICE": "WMS",
			"VERSION": "1.3.0",
			"REQUEST": "GetMap",
			"LAYERS":  "dop",
			"STYLES":  "",
			"CRS":     "EPSG:25832",
			"BBOX":    "363052,5715294,363244,5715486",
			"WIDTH":   "960",
			"HEIGHT":  "960",
			"FORMAT":  "image/png",
		}
		for key, want := range checks {
			if got := query.Get(key); got != want {
				t.Errorf("query %s = %q, want %q", key, got, want)
			}
		}
		w.Write(imageBytes)
	}))
	defer server.Close()

	source, err := wms.New(server.URL, "dop", "EPSG:25832", 128, 0.2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	anchor := grid.Anchor{X: 363084, Y: 5715326}
	patch, err := source.Fetch(context.Background(), anchor, 32)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if !bytes.Equal(patch.Data, imageBytes) {
		t.Errorf("patch data = %q, want %q", patch.Data, imageBytes)
	}
	wantRegion := grid.Region{MinX: 363052, MinY: 5715294, MaxX: 363244, MaxY: 5715486}
	if patch.Region != wantRegion {
		t.Errorf("patch region = %v, want %v", patch.Region, wantRegion)
	}
}

func TestFetchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	source, err := wms.New(server.URL, "dop", "EPSG:25832", 128, 0.2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := source.Fetch(context.Background(), grid.Anchor{}, 0); err == nil {
		t.Error("Fetch succeeded, want error")
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := wms.New("http://example.test/wms", "dop", "EPSG:25832", 0, 0.2); err == nil {
		t.Error("New(tileSize=0) succeeded, want error")
	}
	if _, err := wms.New("http://example.test/wms", "dop", "EPSG:25832", 128, 0); err == nil {
		t.Error("New(gsd=0) succeeded, want error")
	}
}
