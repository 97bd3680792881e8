package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/kura/internal/models"
)

func TestClientSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/search" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var q models.SearchQuery
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(&models.SearchResponse{Query: q.Query, Total: 0, Suggestion: "keynote"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL+"/", 5*time.Second)
	q := models.NewSearchQuery("keynot")
	resp, err := c.Search(context.Background(), &q)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Query != "keynot" || resp.Suggestion != "keynote" {
		t.Errorf("got %+v", resp)
	}
}

func TestClientErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/ask"):
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"source \"x\" not found"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid query: cannot be empty"}`))
		}
	}))
	defer ts.Close()
	c := NewClient(ts.URL, 5*time.Second)

	_, err := c.Ask(context.Background(), "x", "why")
	if !models.IsNotFound(err) || !strings.Contains(err.Error(), `source "x" not found`) {
		t.Errorf("ask: got %v", err)
	}
	q := models.NewSearchQuery("")
	_, err = c.Search(context.Background(), &q)
	if !models.IsValidation(err) || !strings.Contains(err.Error(), "cannot be empty") {
		t.Errorf("search: got %v", err)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"vector db unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"sources": 2}`))
	}))
	defer ts.Close()

	status, err := NewClient(ts.URL, 5*time.Second).Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if status["sources"] != float64(2) || atomic.LoadInt32(&calls) != 2 {
		t.Errorf("got %v after %d calls", status, calls)
	}
}
