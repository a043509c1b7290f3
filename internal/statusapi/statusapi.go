// Package statusapi exposes a small HTTP surface for operators: per-pool
// liveness and backfill-lag reporting, plus a plain liveness probe. Its
// handler shape is grounded on cmd/dexserver/main.go's poolsHandler in the
// reference codebase (one JSON-encoding handler per concern, built over a
// core snapshot); routing itself uses chi rather than bare net/http.
package statusapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/apestrong/amm-indexer/internal/model"
)

// PoolStatus is one row of the /pools response.
type PoolStatus struct {
	Pool                 string `json:"pool"`
	DEX                  string `json:"dex"`
	LastSignature        string `json:"last_signature,omitempty"`
	SecondsSinceLastSeen *int64 `json:"seconds_since_last_seen,omitempty"`
}

// Source is the read-only view the status API renders. The Indexer Engine
// (or a thin adapter over its collaborators) implements this.
type Source interface {
	// PoolStatuses reports the current cursor and staleness per tracked
	// pool, across every DEX being indexed.
	PoolStatuses() []PoolStatus
	// Liveness reports whether the process considers itself healthy enough
	// to keep receiving traffic.
	Liveness() bool
}

// Server wraps a chi router serving the status endpoints.
type Server struct {
	router chi.Router
	source Source
	log    *logrus.Entry
}

// New builds a Server. addr is not bound here; call ListenAndServe.
func New(source Source, log *logrus.Entry) *Server {
	s := &Server{source: source, log: log}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/pools", s.handlePools)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if !s.source.Liveness() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handlePools(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.source.PoolStatuses())
}

// EngineSource adapts a signature store plus a static pool/DEX inventory
// into a Source, without requiring the status API to depend on the engine
// package directly.
type EngineSource struct {
	Pools      []model.Pool
	Cursors    func(pool string, dex model.DEXTag) (signature string, updated time.Time, ok bool)
	IsLiveFunc func() bool
}

func (e *EngineSource) PoolStatuses() []PoolStatus {
	out := make([]PoolStatus, 0, len(e.Pools))
	for _, p := range e.Pools {
		st := PoolStatus{Pool: p.Address, DEX: string(p.DEX)}
		if e.Cursors == nil {
			out = append(out, st)
			continue
		}
		if sig, updated, ok := e.Cursors(p.Address, p.DEX); ok {
			st.LastSignature = sig
			secs := int64(time.Since(updated).Seconds())
			st.SecondsSinceLastSeen = &secs
		}
		out = append(out, st)
	}
	return out
}

func (e *EngineSource) Liveness() bool {
	if e.IsLiveFunc == nil {
		return true
	}
	return e.IsLiveFunc()
}
