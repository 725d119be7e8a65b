// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package jikan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/animescope/internal/logging"
)

// sleepRecorder captures backoff waits instead of sleeping.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) got() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts Options) (*Client, *sleepRecorder) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	rec := &sleepRecorder{}
	opts.BaseURL = srv.URL
	opts.Sleep = rec.sleep
	return New(opts), rec
}

// statusSequence answers with the given statuses in order, then 200 with body.
func statusSequence(calls *atomic.Int32, body string, statuses ...int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			_, _ = w.Write([]byte(`{"status":` + fmt.Sprint(statuses[n-1]) + `}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

const onePage = `{"pagination":{"has_next_page":true},"data":[{"mal_id":1,"title":"Cowboy Bebop"}]}`

func TestFetchPage_RetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c, rec := newTestClient(t, statusSequence(&calls, onePage, 429, 429), Options{})

	page, err := c.FetchPage(context.Background(), BrowseQuery{}.Endpoint(), 1, 25)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("requests = %d, want 3", calls.Load())
	}
	want := []time.Duration{700 * time.Millisecond, 1400 * time.Millisecond}
	got := rec.got()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("backoff = %v, want %v", got, want)
	}
	if len(page.Items) != 1 || !page.HasNext {
		t.Errorf("page = %+v", page)
	}
}

func TestFetchPage_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	c, rec := newTestClient(t, statusSequence(&calls, onePage, 503, 503, 503, 503), Options{})

	_, err := c.FetchPage(context.Background(), BrowseQuery{}.Endpoint(), 1, 25)
	if !errors.Is(err, ErrTransientUpstream) {
		t.Fatalf("err = %v, want transient", err)
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusServiceUnavailable || ue.Attempts != 3 {
		t.Errorf("error detail = %+v", ue)
	}
	if calls.Load() != 3 || len(rec.got()) != 2 {
		t.Errorf("requests %d sleeps %d, want 3 and 2", calls.Load(), len(rec.got()))
	}
}

func TestFetchPage_PermanentFailsAtOnce(t *testing.T) {
	tests := []int{http.StatusNotFound, http.StatusBadRequest, http.StatusForbidden}
	for _, status := range tests {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var calls atomic.Int32
			c, rec := newTestClient(t, statusSequence(&calls, onePage, status), Options{})

			_, err := c.FetchPage(context.Background(), BrowseQuery{}.Endpoint(), 1, 25)
			if !errors.Is(err, ErrPermanentUpstream) {
				t.Fatalf("err = %v, want permanent", err)
			}
			if calls.Load() != 1 || len(rec.got()) != 0 {
				t.Errorf("requests %d sleeps %d, want 1 and 0", calls.Load(), len(rec.got()))
			}
			if IsNotFound(err) != (status == http.StatusNotFound) {
				t.Errorf("IsNotFound = %v", IsNotFound(err))
			}
		})
	}
}

func TestFetchPage_UnparsableBodyIsEmptyLastPage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}, Options{})

	page, err := c.FetchPage(context.Background(), BrowseQuery{}.Endpoint(), 1, 25)
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if len(page.Items) != 0 || page.HasNext {
		t.Errorf("page = %+v, want empty without next", page)
	}
}

func TestFetchPage_QueryParameters(t *testing.T) {
	var gotQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/anime" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Accept") != "application/json" || r.Header.Get("User-Agent") == "" {
			t.Errorf("headers = %v", r.Header)
		}
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"data":[],"pagination":{"has_next_page":false}}`))
	}, Options{})

	q := BrowseQuery{Query: "  naruto ", GenreID: 4, Sort: SortAiring}
	if _, err := c.FetchPage(context.Background(), q.Endpoint(), 3, 25); err != nil {
		t.Fatal(err)
	}
	want := "genres=4&limit=25&order_by=members&page=3&q=naruto&sort=desc&status=airing"
	if gotQuery != want {
		t.Errorf("query = %s\nwant    %s", gotQuery, want)
	}
}

func TestFetchPage_ContextCancelStopsRetry(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, statusSequence(&calls, onePage, 429, 429, 429), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchPage(ctx, BrowseQuery{}.Endpoint(), 1, 25)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDetailRetryUsesOwnBackoff(t *testing.T) {
	var calls atomic.Int32
	body := `{"data":{"mal_id":5,"title":"Trigun","images":{"jpg":{"image_url":"s.jpg","large_image_url":"l.jpg"}}}}`
	c, rec := newTestClient(t, statusSequence(&calls, body, 500), Options{
		DetailRetry: RetryPolicy{MaxAttempts: 3, Backoff: LinearBackoff(800 * time.Millisecond)},
	})

	d, err := c.AnimeDetails(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if got := rec.got(); len(got) != 1 || got[0] != 800*time.Millisecond {
		t.Errorf("backoff = %v, want [800ms]", got)
	}
	if d.ImageURL == nil || *d.ImageURL != "l.jpg" {
		t.Errorf("image = %v, want large image", d.ImageURL)
	}
}

func TestAnime_NoData(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"null data", `{"data":null}`},
		{"garbage", `not json`},
		{"missing id", `{"data":{"title":"x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}, Options{})
			if _, err := c.Anime(context.Background(), 1); !errors.Is(err, ErrNoData) {
				t.Errorf("err = %v, want ErrNoData", err)
			}
		})
	}
}

func TestGenres_SortedByName(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/genres/anime" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":[{"mal_id":4,"name":"Comedy"},{"mal_id":1,"name":"Action"},{"name":"NoID"},{"mal_id":22,"name":"romance"}]}`))
	}, Options{})

	genres, err := c.Genres(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, g := range genres {
		names = append(names, g.Name)
	}
	if fmt.Sprint(names) != "[Action Comedy romance]" {
		t.Errorf("names = %v", names)
	}
}

func TestCharacters(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"character":{"mal_id":1,"name":"Spike","images":{"jpg":{"image_url":"spike.jpg"}}},"role":"Main"},
			{"character":{"name":"nobody"},"role":"Supporting"}]}`))
	}, Options{})

	chars, err := c.Characters(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(chars) != 1 || chars[0].Name != "Spike" || chars[0].Role != "Main" {
		t.Errorf("characters = %+v", chars)
	}
}

func TestRecommendationSource_OmitsLimit(t *testing.T) {
	var gotQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"pagination":{"has_next_page":true},"data":[
			{"entry":{"mal_id":9,"title":"Nine"},"votes":3},
			{"entry":[{"mal_id":10,"title":"Ten"}],"votes":1},
			{"entry":"bad","votes":1}]}`))
	}, Options{})

	src := RecommendationSource(c, 1)
	p, err := src.FetchPage(context.Background(), 2, 5)
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "page=2" {
		t.Errorf("query = %q, want page=2", gotQuery)
	}
	if len(p.Items) != 2 || p.Items[1].ID != 10 || !p.HasNext {
		t.Errorf("page = %+v", p)
	}
}

func TestCircuitBreaker_OpensAfterTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, Options{
		ListRetry: NoRetry(),
		Breaker:   NewCircuitBreaker("jikan-test-open", BreakerSettings{MaxFailures: 2, Timeout: time.Minute}),
	})

	ep := BrowseQuery{}.Endpoint()
	for range 2 {
		if _, err := c.FetchPage(context.Background(), ep, 1, 25); !errors.Is(err, ErrTransientUpstream) {
			t.Fatalf("err = %v", err)
		}
	}

	_, err := c.FetchPage(context.Background(), ep, 1, 25)
	var ue *UpstreamError
	if !errors.As(err, &ue) || !ue.Transient || ue.Status != http.StatusServiceUnavailable {
		t.Fatalf("open breaker err = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("requests = %d, want 2 (third short-circuited)", calls.Load())
	}
	if c.breaker.State() != "open" {
		t.Errorf("state = %s, want open", c.breaker.State())
	}
}

func TestCircuitBreaker_LogsTransitionsAsJikanComponent(t *testing.T) {
	var buf bytes.Buffer
	logging.SetLogger(logging.NewTestLogger(&buf))
	defer logging.Init(logging.DefaultConfig())

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, Options{
		ListRetry: NoRetry(),
		Breaker:   NewCircuitBreaker("jikan-test-log", BreakerSettings{MaxFailures: 1, Timeout: time.Minute}),
	})
	_, _ = c.FetchPage(context.Background(), BrowseQuery{}.Endpoint(), 1, 25)

	out := buf.String()
	for _, want := range []string{`"component":"jikan"`, `"breaker":"jikan-test-log"`, `"to":"open"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %s", out, want)
		}
	}
}

func TestCircuitBreaker_IgnoresPermanentFailures(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, Options{
		ListRetry: NoRetry(),
		Breaker:   NewCircuitBreaker("jikan-test-permanent", BreakerSettings{MaxFailures: 1, Timeout: time.Minute}),
	})

	for range 3 {
		_, err := c.FetchPage(context.Background(), BrowseQuery{}.Endpoint(), 1, 25)
		if !IsNotFound(err) {
			t.Fatalf("err = %v, want 404", err)
		}
	}
	if c.breaker.State() != "closed" {
		t.Errorf("state = %s, want closed", c.breaker.State())
	}
}

func TestCircuitBreaker_IgnoresCallerCancellation(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[],"pagination":{"has_next_page":false}}`))
	}, Options{
		ListRetry: NoRetry(),
		Breaker:   NewCircuitBreaker("jikan-test-cancel", BreakerSettings{MaxFailures: 2, Timeout: time.Minute}),
	})

	ep := BrowseQuery{}.Endpoint()
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for range 3 {
		_, err := c.FetchPage(cancelled, ep, 1, 25)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
		var ue *UpstreamError
		if !errors.As(err, &ue) {
			t.Fatalf("err type = %T, want *UpstreamError", err)
		}
	}
	if c.breaker.State() != "closed" {
		t.Fatalf("state = %s after cancelled calls, want closed", c.breaker.State())
	}

	if _, err := c.FetchPage(context.Background(), ep, 1, 25); err != nil {
		t.Fatalf("healthy fetch failed: %v", err)
	}
	if calls.Load() == 0 {
		t.Error("upstream never called")
	}
}
