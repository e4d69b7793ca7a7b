// Package shopifytest runs a fake Admin API for tests.
package shopifytest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/shopify"
)

// Shop is the domain every fake session is bound to.
const Shop = "demo.myshopify.com"

// GraphQLRequest is a decoded GraphQL POST body.
type GraphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// Server is an httptest server with a request log.
type Server struct {
	*httptest.Server
	Mux *http.ServeMux

	mu    sync.Mutex
	calls []string
}

// NewServer starts a server that is closed when t finishes.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{Mux: http.NewServeMux()}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		s.Mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// Client returns a session against the server with no throttling and no
// retry delay.
func (s *Server) Client() *shopify.Client {
	return s.Gateway(shopify.Config{}).Session(domain.Credential{Shop: Shop, AccessToken: "shpat_test"})
}

// Gateway builds a gateway pointed at the server. BaseURL is always
// overridden; a zero Retry keeps two attempts but removes the delay.
func (s *Server) Gateway(cfg shopify.Config) *shopify.Gateway {
	cfg.BaseURL = s.URL
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = shopify.RetryPolicy{MaxAttempts: 2}
	}
	if cfg.Clock == nil {
		cfg.Clock = &FakeClock{}
	}
	return shopify.NewGateway(cfg, shopify.NewThrottle(0, nil))
}

// HandleJSON answers pattern with v encoded as JSON.
func (s *Server) HandleJSON(pattern string, v interface{}) {
	s.Mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, v)
	})
}

// HandleGraphQL routes POST /graphql.json to fn. fn returns the "data"
// object; returning an error value sends it as a GraphQL error instead.
func (s *Server) HandleGraphQL(fn func(req GraphQLRequest) interface{}) {
	s.Mux.HandleFunc("POST /graphql.json", func(w http.ResponseWriter, r *http.Request) {
		var req GraphQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := fn(req)
		if err, ok := out.(error); ok {
			WriteJSON(w, http.StatusOK, map[string]interface{}{
				"errors": []map[string]string{{"message": err.Error()}},
			})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"data": out})
	})
}

// Calls returns "METHOD /path" for every request received so far.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Count returns how many requests matched "METHOD /path" exactly.
func (s *Server) Count(call string) int {
	n := 0
	for _, c := range s.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// NextLink formats a Link header pointing at path on this server.
func (s *Server) NextLink(path string) string {
	return `<` + s.URL + "/" + strings.TrimPrefix(path, "/") + `>; rel="next"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// FakeClock records sleeps and advances its own time instead of blocking.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	Sleeps []time.Duration
}

// NewFakeClock starts at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sleeps = append(c.Sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return nil
}
