package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestGeocoder(t *testing.T, handler http.HandlerFunc) (*Geocoder, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g, err := New(server.URL, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g, server
}

func TestResolveMajorCityRadius(t *testing.T) {
	g, _ := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q != "New York" {
			t.Errorf("unexpected q=%q", q)
		}
		if r.URL.Query().Get("format") != "json" || r.URL.Query().Get("limit") != "1" {
			t.Error("missing format/limit params")
		}
		w.Write([]byte(`[{"lat": "40.7128", "lon": "-74.0060"}]`))
	})

	loc := g.Resolve(context.Background(), "New York")
	if loc == nil {
		t.Fatal("expected location, got nil")
	}
	if loc.Lat != 40.7128 || loc.Lon != -74.0060 {
		t.Errorf("got (%f, %f)", loc.Lat, loc.Lon)
	}
	if loc.RadiusKm != metroRadiusKm {
		t.Errorf("radius %f, want %f for major city", loc.RadiusKm, metroRadiusKm)
	}
}

func TestResolveKoreanAliasRadius(t *testing.T) {
	g, _ := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat": "35.1796", "lon": "129.0756"}]`))
	})

	loc := g.Resolve(context.Background(), "부산")
	if loc == nil {
		t.Fatal("expected location, got nil")
	}
	if loc.RadiusKm != metroRadiusKm {
		t.Errorf("radius %f, want %f", loc.RadiusKm, metroRadiusKm)
	}
}

func TestResolveDistrictRadius(t *testing.T) {
	g, _ := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat": "35.1532", "lon": "129.1186"}]`))
	})

	loc := g.Resolve(context.Background(), "광안리")
	if loc == nil {
		t.Fatal("expected location, got nil")
	}
	if loc.RadiusKm != districtRadiusKm {
		t.Errorf("radius %f, want %f for non-major place", loc.RadiusKm, districtRadiusKm)
	}
}

func TestResolveEmptyResult(t *testing.T) {
	g, _ := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	if loc := g.Resolve(context.Background(), "nowhere-at-all"); loc != nil {
		t.Errorf("expected nil for empty result, got %+v", loc)
	}
}

func TestResolveServerError(t *testing.T) {
	g, _ := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	if loc := g.Resolve(context.Background(), "서울"); loc != nil {
		t.Errorf("expected nil on server error, got %+v", loc)
	}
}

func TestResolveTimeoutReturnsNil(t *testing.T) {
	g, _ := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if loc := g.Resolve(ctx, "광안리"); loc != nil {
		t.Errorf("expected nil on timeout, got %+v", loc)
	}
}

func TestResolveCachesByExactInput(t *testing.T) {
	var calls atomic.Int32
	g, server := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[{"lat": "37.5665", "lon": "126.9780"}]`))
	})

	for range 3 {
		if loc := g.Resolve(context.Background(), "서울"); loc == nil {
			t.Fatal("expected location")
		}
	}
	if calls.Load() != 1 {
		t.Errorf("gazetteer called %d times, want 1", calls.Load())
	}

	// The cached entry survives the server going away.
	server.Close()
	if loc := g.Resolve(context.Background(), "서울"); loc == nil {
		t.Error("expected cached location after server shutdown")
	}
	if calls.Load() != 1 {
		t.Errorf("gazetteer called %d times, want 1", calls.Load())
	}
}

// A transient gazetteer failure must not poison the cache: the next
// Resolve for the same name retries and can succeed.
func TestResolveRetriesAfterFailure(t *testing.T) {
	var calls atomic.Int32
	g, _ := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"lat": "35.1796", "lon": "129.0756"}]`))
	})

	if loc := g.Resolve(context.Background(), "부산"); loc != nil {
		t.Fatalf("expected nil on first (failing) lookup, got %+v", loc)
	}
	loc := g.Resolve(context.Background(), "부산")
	if loc == nil {
		t.Fatal("expected location on retry")
	}
	if loc.Lat != 35.1796 {
		t.Errorf("lat = %f, want 35.1796", loc.Lat)
	}
	if calls.Load() != 2 {
		t.Errorf("gazetteer called %d times, want 2", calls.Load())
	}
}

func TestResolveEmptyName(t *testing.T) {
	g, _ := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("gazetteer should not be called for empty name")
	})

	if loc := g.Resolve(context.Background(), "  "); loc != nil {
		t.Errorf("expected nil, got %+v", loc)
	}
}
