package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ErrSnapshotsDisabled is returned by a SnapshotFunc when no snapshot
// directory is configured.
var ErrSnapshotsDisabled = errors.New("snapshots disabled")

// RouterConfig holds the debug router dependencies. Both funcs are optional.
type RouterConfig struct {
	// State returns a JSON-encodable view of the engine.
	State func() any

	// Snapshot requests a PNG of the next rendered frame and returns its path.
	Snapshot func() (string, error)

	RateLimit   *RateLimitConfig
	CORSOrigins []string
}

// NewDebugRouter builds the debug HTTP handler. It is pure: no goroutines,
// no listeners.
func NewDebugRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	rlCfg := DefaultRateLimitConfig
	if cfg.RateLimit != nil {
		rlCfg = *cfg.RateLimit
	}
	r.Use(NewIPRateLimiter(rlCfg).Middleware)

	origins := cfg.CORSOrigins
	if origins == nil {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/debug", func(r chi.Router) {
		r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
			if cfg.State == nil {
				http.Error(w, "no state source", http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, cfg.State())
		})
		r.Post("/snapshot", func(w http.ResponseWriter, _ *http.Request) {
			if cfg.Snapshot == nil {
				http.Error(w, ErrSnapshotsDisabled.Error(), http.StatusNotFound)
				return
			}
			path, err := cfg.Snapshot()
			if errors.Is(err, ErrSnapshotsDisabled) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"path": path})
		})

		r.HandleFunc("/pprof/", pprof.Index)
		r.HandleFunc("/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/pprof/profile", pprof.Profile)
		r.HandleFunc("/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/pprof/trace", pprof.Trace)
		r.Handle("/pprof/{name}", http.HandlerFunc(pprof.Index))
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Server is a running debug server.
type Server struct {
	srv  *http.Server
	addr string
	done chan struct{}
	err  error
}

// Addr is the bound address.
func (s *Server) Addr() string { return s.addr }

// Shutdown stops accepting and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	<-s.done
	if err != nil {
		return err
	}
	return s.err
}

// StartDebugServer binds addr and serves h in the background. Non-loopback
// addresses are refused unless allowExternal is set.
func StartDebugServer(addr string, h http.Handler, allowExternal bool, log zerolog.Logger) (*Server, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	if !allowExternal && !isLoopback(host) {
		log.Warn().Str("addr", addr).Msg("⚠️ Debug server forced to localhost")
		addr = "127.0.0.1:6061"
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		srv: &http.Server{
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
		},
		addr: ln.Addr().String(),
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		log.Info().Str("addr", s.addr).Msg("📊 Debug server starting")
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.err = err
			log.Error().Err(err).Msg("Debug server error")
		}
	}()
	return s, nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
