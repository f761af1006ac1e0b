package suggest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"curator/internal/config"
	"curator/internal/tmdb"
)

type stubSource struct {
	name   string
	titles []string
	err    error
	calls  int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Suggest(context.Context, string) ([]string, error) {
	s.calls++
	return s.titles, s.err
}

func TestChainTakesFirstNonEmptyResult(t *testing.T) {
	first := &stubSource{name: "a", titles: []string{"Heat"}}
	second := &stubSource{name: "b", titles: []string{"Alien"}}
	chain := NewChain(nil, first, second)

	titles := chain.Suggest(context.Background(), "Inception")
	if len(titles) != 1 || titles[0] != "Heat" {
		t.Fatalf("expected first source result, got %v", titles)
	}
	if second.calls != 0 {
		t.Fatal("second source must not run when the first succeeds")
	}
}

func TestChainFallsThroughOnErrorAndEmpty(t *testing.T) {
	failing := &stubSource{name: "a", err: errors.New("unavailable")}
	empty := &stubSource{name: "b"}
	fallback := &stubSource{name: "c", titles: []string{"Alien"}}
	chain := NewChain(nil, failing, empty, fallback)

	titles := chain.Suggest(context.Background(), "Inception")
	if len(titles) != 1 || titles[0] != "Alien" {
		t.Fatalf("expected fallback result, got %v", titles)
	}

	exhausted := NewChain(nil, failing, empty)
	if titles := exhausted.Suggest(context.Background(), "Inception"); titles != nil {
		t.Fatalf("expected nil when every source fails, got %v", titles)
	}
}

func TestParseTitleList(t *testing.T) {
	text := "1. Inception (2010)\n- The Prestige\n  \"Interstellar\" - 2014\nThe Prestige\n* Memento\n"
	titles := ParseTitleList(text, 10)

	want := []string{"Inception (2010)", "The Prestige", "Interstellar", "Memento"}
	if len(titles) != len(want) {
		t.Fatalf("expected %v, got %v", want, titles)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, titles)
		}
	}

	if got := ParseTitleList(text, 2); len(got) != 2 {
		t.Fatalf("expected cap at 2, got %v", got)
	}
}

func TestLLMSourceParsesCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token")
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"Heat\nAlien"}}]}`))
	}))
	defer server.Close()

	source := NewLLMSource(config.LLM{APIKey: "key", BaseURL: server.URL, Model: "m"}, nil)
	titles, err := source.Suggest(context.Background(), "Inception")
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(titles) != 2 || titles[0] != "Heat" {
		t.Fatalf("unexpected titles: %v", titles)
	}
}

func TestLLMSourceRetriesOnServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"Heat"}}]}`))
	}))
	defer server.Close()

	source := NewLLMSource(config.LLM{APIKey: "key", BaseURL: server.URL, Model: "m"}, nil,
		WithLLMSleeper(func(context.Context, time.Duration) error { return nil }))
	titles, err := source.Suggest(context.Background(), "Inception")
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if attempts != 2 || len(titles) != 1 {
		t.Fatalf("expected one retry then success, got attempts=%d titles=%v", attempts, titles)
	}
}

func TestLLMSourceDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer server.Close()

	source := NewLLMSource(config.LLM{APIKey: "key", BaseURL: server.URL, Model: "m"}, nil,
		WithLLMSleeper(func(context.Context, time.Duration) error { return nil }))
	if _, err := source.Suggest(context.Background(), "Inception"); err == nil {
		t.Fatal("expected error from 400 response")
	}
	if attempts != 1 {
		t.Fatalf("client errors must not retry, got %d attempts", attempts)
	}
}

type fakeSearcher struct {
	search *tmdb.Response
	recs   *tmdb.Response
}

func (f *fakeSearcher) SearchMovie(context.Context, string) (*tmdb.Response, error) {
	return f.search, nil
}

func (f *fakeSearcher) SearchMovieYear(context.Context, string, int) (*tmdb.Response, error) {
	return f.search, nil
}

func (f *fakeSearcher) GetMovieDetails(context.Context, int64) (*tmdb.Result, error) {
	return nil, tmdb.ErrNotFound
}

func (f *fakeSearcher) GetRecommendations(context.Context, int64) (*tmdb.Response, error) {
	return f.recs, nil
}

func TestTMDBSourceRanksByVoteAverage(t *testing.T) {
	searcher := &fakeSearcher{
		search: &tmdb.Response{Results: []tmdb.Result{
			{ID: 27205, Title: "Inception", VoteCount: 30000, Popularity: 90, VoteAverage: 8.4},
		}},
		recs: &tmdb.Response{Results: []tmdb.Result{
			{ID: 1, Title: "Tenet", ReleaseDate: "2020-08-26", VoteAverage: 7.3},
			{ID: 2, Title: "Interstellar", ReleaseDate: "2014-11-05", VoteAverage: 8.4},
			{ID: 3, Title: "Dunkirk", ReleaseDate: "2017-07-19", VoteAverage: 7.8},
		}},
	}
	source := NewTMDBSource(searcher, 2, nil)

	titles, err := source.Suggest(context.Background(), "Inception")
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	want := []string{"Interstellar (2014)", "Dunkirk (2017)"}
	if len(titles) != 2 || titles[0] != want[0] || titles[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, titles)
	}
}

func TestTMDBSourceUnknownSeed(t *testing.T) {
	source := NewTMDBSource(&fakeSearcher{search: &tmdb.Response{}}, 5, nil)

	titles, err := source.Suggest(context.Background(), "No Such Movie")
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if titles != nil {
		t.Fatalf("expected no titles for unknown seed, got %v", titles)
	}
}
