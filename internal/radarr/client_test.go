package radarr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"curator/internal/config"
)

func testConfig(url string) config.Radarr {
	return config.Radarr{
		Enabled:          true,
		URL:              url,
		APIKey:           "key",
		RootFolder:       "/movies",
		QualityProfileID: 4,
		TagName:          "curated",
	}
}

func TestHandOffAddsMissingMovie(t *testing.T) {
	var added addPayload
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/tag", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`[{"id":7,"label":"curated"}]`))
			return
		}
		t.Errorf("unexpected tag create when tag exists")
	})
	mux.HandleFunc("/api/v3/movie/lookup", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("term") != "Interstellar (2014)" {
			t.Errorf("unexpected term %q", r.URL.Query().Get("term"))
		}
		w.Write([]byte(`[{"title":"Interstellar","year":2014,"tmdbId":157336}]`))
	})
	mux.HandleFunc("/api/v3/movie", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`[]`))
			return
		}
		if r.Header.Get("X-Api-Key") != "key" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&added); err != nil {
			t.Errorf("decode add payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := New(testConfig(server.URL), nil)
	report := client.HandOff(context.Background(), []string{"Interstellar (2014)"})

	if report.Added != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if added.TMDBID != 157336 || !added.Monitored || !added.AddOptions.SearchForMovie {
		t.Fatalf("unexpected add payload: %+v", added)
	}
	if added.RootFolderPath != "/movies" || added.QualityProfileID != 4 {
		t.Fatalf("config not applied to payload: %+v", added)
	}
	if len(added.Tags) != 1 || added.Tags[0] != 7 {
		t.Fatalf("expected tag 7, got %v", added.Tags)
	}
}

func TestHandOffMonitorsExistingMovie(t *testing.T) {
	var updateBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/tag", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":7,"label":"curated"}]`))
	})
	mux.HandleFunc("/api/v3/movie/lookup", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"title":"Heat","year":1995,"tmdbId":949}]`))
	})
	mux.HandleFunc("/api/v3/movie", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":12,"title":"Heat","year":1995,"tmdbId":949,"monitored":false,"path":"/movies/Heat"}]`))
	})
	mux.HandleFunc("/api/v3/movie/12", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&updateBody); err != nil {
			t.Errorf("decode update payload: %v", err)
		}
		w.Write([]byte(`{}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := New(testConfig(server.URL), nil)
	report := client.HandOff(context.Background(), []string{"Heat"})

	if report.Monitored != 1 {
		t.Fatalf("expected re-monitor, got %+v", report)
	}
	if updateBody["monitored"] != true {
		t.Fatalf("monitored flag not set: %v", updateBody)
	}
	if updateBody["path"] != "/movies/Heat" {
		t.Fatalf("unknown resource fields must round-trip: %v", updateBody)
	}
}

func TestHandOffSkipsAlreadyMonitored(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/tag", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":7,"label":"curated"}]`))
	})
	mux.HandleFunc("/api/v3/movie/lookup", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"title":"Heat","tmdbId":949}]`))
	})
	mux.HandleFunc("/api/v3/movie", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":12,"title":"Heat","tmdbId":949,"monitored":true}]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := New(testConfig(server.URL), nil)
	report := client.HandOff(context.Background(), []string{"Heat"})

	if report.Skipped != 1 || report.Added != 0 || report.Monitored != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestHandOffCountsFailuresPerTitle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/tag", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"id":9,"label":"curated"}`))
			return
		}
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/api/v3/movie/lookup", func(w http.ResponseWriter, r *http.Request) {
		term := r.URL.Query().Get("term")
		if strings.Contains(term, "Broken") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := New(testConfig(server.URL), nil)
	report := client.HandOff(context.Background(), []string{"Broken Movie", "Unknown Movie"})

	if report.Failed != 1 {
		t.Fatalf("expected 1 failure, got %+v", report)
	}
	if report.Skipped != 1 {
		t.Fatalf("unresolvable titles are skipped, got %+v", report)
	}
}
