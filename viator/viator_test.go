package viator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var destinationFetches atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/destinations", func(w http.ResponseWriter, r *http.Request) {
		destinationFetches.Add(1)
		if r.Header.Get("exp-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"destinations": []map[string]interface{}{
				{"destinationId": 684, "name": "Rome Province", "type": "REGION"},
				{"destinationId": 511, "name": "Rome", "type": "CITY"},
				{"destinationId": 737, "name": "Paris", "type": "CITY"},
			},
		})
	})
	mux.HandleFunc("/products/search", func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Filtering.Destination != "511" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"products": map[string]interface{}{
				"totalCount": 2,
				"results": []map[string]interface{}{
					{
						"productCode": "COLOSSEUM1",
						"title":       "Skip-the-Line Colosseum Tour",
						"description": "A guided walk through ancient Rome.",
						"webUrl":      "https://www.viator.com/tours/Rome/Colosseum/d511-COLOSSEUM1",
						"pricing":     map[string]interface{}{"summary": map[string]interface{}{"fromPrice": 49.99}},
						"reviews":     map[string]interface{}{"combinedAverageRating": 4.7, "totalReviews": 1234},
						"duration":    map[string]interface{}{"durationText": "3 hours"},
						"images":      []map[string]interface{}{{"url": "https://img.example/colosseum.jpg"}},
					},
					{
						"productCode": "VATICAN2",
						"title":       "Vatican Museums Entry",
					},
				},
			},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &destinationFetches
}

func TestSearchTours(t *testing.T) {
	server, _ := newTestServer(t)
	client := NewClient("test-key", server.URL, "")

	tours, err := client.SearchTours(context.Background(), "colosseum", "rome", "", 5)
	if err != nil {
		t.Fatalf("SearchTours failed: %v", err)
	}
	if len(tours) != 2 {
		t.Fatalf("Expected 2 tours, got %d", len(tours))
	}

	first := tours[0]
	if first.Code != "COLOSSEUM1" {
		t.Fatalf("Expected product code COLOSSEUM1, got %q", first.Code)
	}
	if first.Title != "Skip-the-Line Colosseum Tour" {
		t.Fatalf("Unexpected title %q", first.Title)
	}
	if first.Price != 49.99 {
		t.Fatalf("Expected price 49.99, got %v", first.Price)
	}
	if first.Rating != 4.7 || first.ReviewCount != 1234 {
		t.Fatalf("Unexpected review data: %v / %d", first.Rating, first.ReviewCount)
	}
	if first.Duration != "3 hours" {
		t.Fatalf("Unexpected duration %q", first.Duration)
	}
	if first.Destination != "rome" {
		t.Fatalf("Expected the caller's destination string, got %q", first.Destination)
	}
	if first.ThumbnailURL != "https://img.example/colosseum.jpg" {
		t.Fatalf("Unexpected thumbnail %q", first.ThumbnailURL)
	}
	if first.ViatorURL != "https://www.viator.com/tours/Rome/Colosseum/d511-COLOSSEUM1" {
		t.Fatalf("Unexpected url %q", first.ViatorURL)
	}

	// A product without a webUrl gets a synthesized one.
	second := tours[1]
	if second.ViatorURL != "https://www.viator.com/tours/dVATICAN2" {
		t.Fatalf("Expected synthesized url, got %q", second.ViatorURL)
	}
	if second.ThumbnailURL != "" {
		t.Fatalf("Expected no thumbnail, got %q", second.ThumbnailURL)
	}
}

func TestSearchToursAffiliateTracking(t *testing.T) {
	server, _ := newTestServer(t)
	client := NewClient("test-key", server.URL, "P00112233")

	tours, err := client.SearchTours(context.Background(), "", "Rome", "", 5)
	if err != nil {
		t.Fatalf("SearchTours failed: %v", err)
	}
	if got := tours[0].ViatorURL; got != "https://www.viator.com/tours/Rome/Colosseum/d511-COLOSSEUM1?pid=P00112233" {
		t.Fatalf("Expected affiliate pid appended, got %q", got)
	}
}

func TestDestinationsCachedAcrossSearches(t *testing.T) {
	server, fetches := newTestServer(t)
	client := NewClient("test-key", server.URL, "")
	ctx := context.Background()

	if _, err := client.SearchTours(ctx, "", "rome", "", 3); err != nil {
		t.Fatalf("First search failed: %v", err)
	}
	if _, err := client.SearchTours(ctx, "", "ROME", "", 3); err != nil {
		t.Fatalf("Second search failed: %v", err)
	}
	if n := fetches.Load(); n != 1 {
		t.Fatalf("Expected 1 destination fetch, got %d", n)
	}
}

func TestResolveDestination(t *testing.T) {
	server, _ := newTestServer(t)
	client := NewClient("test-key", server.URL, "")
	ctx := context.Background()

	t.Run("ExactMatchBeatsSubstring", func(t *testing.T) {
		// "Rome Province" also contains "rome"; the exact match wins.
		id, err := client.resolveDestination(ctx, " Rome ")
		if err != nil {
			t.Fatalf("resolveDestination failed: %v", err)
		}
		if id != 511 {
			t.Fatalf("Expected destination 511, got %d", id)
		}
	})

	t.Run("UnknownDestination", func(t *testing.T) {
		_, err := client.resolveDestination(ctx, "Atlantis")
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("Expected an APIError, got %v", err)
		}
		if apiErr.StatusCode != http.StatusNotFound {
			t.Fatalf("Expected 404, got %d", apiErr.StatusCode)
		}
	})
}

func TestSearchToursRejectsBadStartDate(t *testing.T) {
	server, _ := newTestServer(t)
	client := NewClient("test-key", server.URL, "")

	if _, err := client.SearchTours(context.Background(), "", "rome", "not-a-date", 3); err == nil {
		t.Fatal("Expected an error for a malformed start date")
	}
}

func TestUpstreamErrorSurfaced(t *testing.T) {
	server, _ := newTestServer(t)
	client := NewClient("wrong-key", server.URL, "")

	_, err := client.SearchTours(context.Background(), "", "rome", "", 3)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected an APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", apiErr.StatusCode)
	}
}
