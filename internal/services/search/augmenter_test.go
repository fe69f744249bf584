package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/ua-proxy-go/internal/config"
	"github.com/ua-proxy-go/internal/models"
	"github.com/ua-proxy-go/internal/quota"
	"github.com/ua-proxy-go/internal/services/ai"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type memStore struct {
	state *models.QuotaState
}

func (s *memStore) Load() (*models.QuotaState, error) { return s.state, nil }
func (s *memStore) Save(state *models.QuotaState) error {
	copied := *state
	s.state = &copied
	return nil
}

func testGuard(limit int) *quota.Guard {
	return quota.NewGuard(&memStore{}, limit, testLogger())
}

func backendClient(t *testing.T, handler http.Handler) *ai.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return ai.NewClient(&config.BackendConfig{
		BaseURL:         server.URL,
		ThinkingModel:   "test-model",
		DecisionTimeout: 5 * time.Second,
		VisionTimeout:   5 * time.Second,
		ForwardTimeout:  5 * time.Second,
	}, testLogger())
}

func generateResponder(response string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"response": response})
	})
}

func searchClient(t *testing.T, handler http.Handler) (*GoogleClient, *int) {
	t.Helper()
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	client := NewGoogleClient(&config.SearchConfig{APIKey: "key", EngineID: "cx"}, testLogger())
	client.SetAPIBase(server.URL)
	return client, &hits
}

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	return NewExtractor(&config.CacheConfig{Enabled: false}, testLogger())
}

func TestDetectMarker(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		question  string
		triggered bool
	}{
		{"english marker", "@websearch latest Go release", "latest Go release", true},
		{"traditional chinese marker", "@網路搜尋 台北天氣", "台北天氣", true},
		{"simplified chinese marker", "@网络搜索 北京天气", "北京天气", true},
		{"leading whitespace", "  @websearch question", "question", true},
		{"marker mid-text ignored", "please @websearch this", "", false},
		{"marker alone", "@websearch", "", true},
		{"first line only", "@websearch headline\nsecond line", "headline", true},
		{"no marker", "plain question", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			question, triggered := DetectMarker(tc.input)
			require.Equal(t, tc.triggered, triggered)
			require.Equal(t, tc.question, question)
		})
	}
}

func TestOptimizeQuery(t *testing.T) {
	t.Run("strips wrapping quotes", func(t *testing.T) {
		client := backendClient(t, generateResponder(`"golang generics tutorial"`))
		augmenter := NewAugmenter(client, nil, testGuard(10), newExtractor(t), 5, testLogger())

		query := augmenter.OptimizeQuery(context.Background(), "how do generics work in Go")
		require.Equal(t, "golang generics tutorial", query)
	})

	t.Run("backend failure falls back to question", func(t *testing.T) {
		client := backendClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		augmenter := NewAugmenter(client, nil, testGuard(10), newExtractor(t), 5, testLogger())

		require.Equal(t, "original", augmenter.OptimizeQuery(context.Background(), "original"))
	})

	t.Run("empty reply falls back", func(t *testing.T) {
		client := backendClient(t, generateResponder("  "))
		augmenter := NewAugmenter(client, nil, testGuard(10), newExtractor(t), 5, testLogger())

		require.Equal(t, "original", augmenter.OptimizeQuery(context.Background(), "original"))
	})
}

func TestSearch(t *testing.T) {
	t.Run("quota denied skips the API entirely", func(t *testing.T) {
		google, hits := searchClient(t, generateResponder("unused"))
		augmenter := NewAugmenter(nil, google, testGuard(0), newExtractor(t), 5, testLogger())

		require.Nil(t, augmenter.Search(context.Background(), "anything"))
		require.Zero(t, *hits)
	})

	t.Run("api error degrades to empty", func(t *testing.T) {
		google, hits := searchClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		augmenter := NewAugmenter(nil, google, testGuard(10), newExtractor(t), 5, testLogger())

		require.Nil(t, augmenter.Search(context.Background(), "anything"))
		require.Equal(t, 1, *hits)
	})

	t.Run("results pass through in rank order", func(t *testing.T) {
		google, _ := searchClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "key", r.URL.Query().Get("key"))
			require.Equal(t, "cx", r.URL.Query().Get("cx"))
			require.Equal(t, "3", r.URL.Query().Get("num"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"items": []map[string]string{
					{"title": "First", "link": "http://a", "snippet": "aa"},
					{"title": "Second", "link": "http://b", "snippet": "bb"},
				},
			})
		}))
		augmenter := NewAugmenter(nil, google, testGuard(10), newExtractor(t), 3, testLogger())

		results := augmenter.Search(context.Background(), "query")
		require.Len(t, results, 2)
		require.Equal(t, "First", results[0].Title)
		require.Equal(t, "Second", results[1].Title)
	})
}

func TestBuildContext(t *testing.T) {
	t.Run("empty results yield empty context", func(t *testing.T) {
		augmenter := NewAugmenter(nil, nil, testGuard(10), newExtractor(t), 5, testLogger())
		require.Empty(t, augmenter.BuildContext(context.Background(), nil, "q"))
	})

	t.Run("failed deep dives keep the snippet sources", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		dead.Close()

		augmenter := NewAugmenter(nil, nil, testGuard(10), newExtractor(t), 5, testLogger())
		results := []models.SearchResult{
			{Title: "One", Link: dead.URL + "/1", Snippet: "snippet one"},
			{Title: "Two", Link: dead.URL + "/2", Snippet: "snippet two"},
		}

		got := augmenter.BuildContext(context.Background(), results, "q")
		require.Contains(t, got, "--- CONTEXTUAL SOURCES ---")
		require.Contains(t, got, "[Source 1]")
		require.Contains(t, got, "Title: One")
		require.Contains(t, got, "snippet two")
		require.NotContains(t, got, "--- DEEP DIVE SUMMARIES ---")
	})

	t.Run("deep dive summaries appended", func(t *testing.T) {
		article := "<html><body><article><h1>Title</h1><p>" +
			strings.Repeat("A sentence with enough substance to pass the length filter. ", 10) +
			"</p></article></body></html>"
		pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			io.WriteString(w, article)
		}))
		t.Cleanup(pages.Close)

		client := backendClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/chat", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"message": map[string]string{"role": "assistant", "content": "condensed key points"},
			})
		}))
		augmenter := NewAugmenter(client, nil, testGuard(10), newExtractor(t), 5, testLogger())

		results := []models.SearchResult{{Title: "One", Link: pages.URL, Snippet: "s"}}
		got := augmenter.BuildContext(context.Background(), results, "q")
		require.Contains(t, got, "--- DEEP DIVE SUMMARIES ---")
		require.Contains(t, got, "condensed key points")
	})
}

func TestIsRelevant(t *testing.T) {
	t.Run("yes verdict", func(t *testing.T) {
		client := backendClient(t, generateResponder("Yes."))
		augmenter := NewAugmenter(client, nil, testGuard(10), newExtractor(t), 5, testLogger())
		require.True(t, augmenter.IsRelevant(context.Background(), "context", "question"))
	})

	t.Run("no verdict", func(t *testing.T) {
		client := backendClient(t, generateResponder("No"))
		augmenter := NewAugmenter(client, nil, testGuard(10), newExtractor(t), 5, testLogger())
		require.False(t, augmenter.IsRelevant(context.Background(), "context", "question"))
	})

	t.Run("empty context is never relevant", func(t *testing.T) {
		augmenter := NewAugmenter(nil, nil, testGuard(10), newExtractor(t), 5, testLogger())
		require.False(t, augmenter.IsRelevant(context.Background(), "", "question"))
	})

	t.Run("backend failure fails closed", func(t *testing.T) {
		client := backendClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		augmenter := NewAugmenter(client, nil, testGuard(10), newExtractor(t), 5, testLogger())
		require.False(t, augmenter.IsRelevant(context.Background(), "context", "question"))
	})
}
