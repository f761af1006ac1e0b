package plex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"curator/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := config.Plex{URL: server.URL, Token: "token", RequestTimeout: 5}
	return New(cfg, nil), server
}

func TestMovieSection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Plex-Token") != "token" {
			t.Errorf("missing plex token header")
		}
		w.Write([]byte(`{"MediaContainer":{"Directory":[
			{"key":"2","title":"TV Shows","type":"show"},
			{"key":"1","title":"Movies","type":"movie"}]}}`))
	})
	client, _ := newTestClient(t, mux)

	key, err := client.MovieSection(context.Background(), "movies")
	if err != nil {
		t.Fatalf("MovieSection failed: %v", err)
	}
	if key != "1" {
		t.Fatalf("expected section key 1, got %q", key)
	}

	_, err = client.MovieSection(context.Background(), "Anime")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown section, got %v", err)
	}
}

func TestFindCollection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections/1/collections", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"MediaContainer":{"Metadata":[
			{"ratingKey":"900","title":"Inspired by your Immaculate Taste","childCount":12}]}}`))
	})
	client, _ := newTestClient(t, mux)

	col, err := client.FindCollection(context.Background(), "1", "inspired by your immaculate taste")
	if err != nil {
		t.Fatalf("FindCollection failed: %v", err)
	}
	if col.RatingKey != "900" || col.Size != 12 {
		t.Fatalf("unexpected collection: %+v", col)
	}

	_, err = client.FindCollection(context.Background(), "1", "Other")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddToCollectionBuildsServerURI(t *testing.T) {
	var gotURI string
	mux := http.NewServeMux()
	mux.HandleFunc("/identity", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"MediaContainer":{"machineIdentifier":"abc123"}}`))
	})
	mux.HandleFunc("/library/collections/900/items", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		gotURI = r.URL.Query().Get("uri")
		w.WriteHeader(http.StatusOK)
	})
	client, _ := newTestClient(t, mux)

	items := []Item{{RatingKey: "11"}, {RatingKey: "12"}}
	if err := client.AddToCollection(context.Background(), "900", items); err != nil {
		t.Fatalf("AddToCollection failed: %v", err)
	}
	want := "server://abc123/com.plexapp.plugins.library/library/metadata/11,12"
	if gotURI != want {
		t.Fatalf("uri mismatch:\n got %s\nwant %s", gotURI, want)
	}
}

func TestRemoveFromCollection(t *testing.T) {
	var gotMethod, gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	})
	client, _ := newTestClient(t, handler)

	if err := client.RemoveFromCollection(context.Background(), "900", Item{RatingKey: "77"}); err != nil {
		t.Fatalf("RemoveFromCollection failed: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/library/collections/900/children/77" {
		t.Fatalf("unexpected request: %s %s", gotMethod, gotPath)
	}
}

func TestMoveItem(t *testing.T) {
	var gotQueries []url.Values
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQueries = append(gotQueries, r.URL.Query())
		w.WriteHeader(http.StatusOK)
	})
	client, _ := newTestClient(t, handler)

	if err := client.MoveItem(context.Background(), "900", "11", ""); err != nil {
		t.Fatalf("MoveItem failed: %v", err)
	}
	if err := client.MoveItem(context.Background(), "900", "12", "11"); err != nil {
		t.Fatalf("MoveItem failed: %v", err)
	}
	if gotQueries[0].Get("after") != "" {
		t.Fatalf("first move must not carry after, got %v", gotQueries[0])
	}
	if gotQueries[1].Get("after") != "11" {
		t.Fatalf("second move must follow item 11, got %v", gotQueries[1])
	}
}

func TestServerErrorSurfacesBody(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mix media types", http.StatusBadRequest)
	})
	client, _ := newTestClient(t, handler)

	err := client.SetCustomSort(context.Background(), "900")
	if err == nil {
		t.Fatal("expected error from 400 response")
	}
}

func TestLibraryIndex(t *testing.T) {
	items := []Item{
		{RatingKey: "1", Title: "Inception", Year: 2010, Type: "movie"},
		{RatingKey: "2", Title: "Inception (2010)", Type: "movie"},
		{RatingKey: "3", Title: "Heat", Year: 1995, Type: "movie"},
	}
	index := NewLibraryIndex(items)

	if index.Len() != 2 {
		t.Fatalf("expected duplicate canonical keys collapsed, got %d", index.Len())
	}
	if !index.Contains("inception") {
		t.Fatal("expected inception in index")
	}
	item, ok := index.Get("inception")
	if !ok || item.RatingKey != "1" {
		t.Fatalf("expected first occurrence kept, got %+v", item)
	}
	if index.Contains("alien") {
		t.Fatal("unexpected membership for alien")
	}
}
