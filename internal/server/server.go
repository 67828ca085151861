// Package server exposes uploads over HTTP. Uploads are written to storage
// under a freshly minted ID and tracked by the expiry queue; downloads are
// refused as soon as the ID says the upload has expired, whether or not the
// sweeper has reclaimed it yet.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/expiredrop/internal/auth"
	"github.com/dharsanguruparan/expiredrop/internal/config"
	"github.com/dharsanguruparan/expiredrop/internal/expiry"
	"github.com/dharsanguruparan/expiredrop/internal/logging"
	"github.com/dharsanguruparan/expiredrop/internal/model"
	"github.com/dharsanguruparan/expiredrop/internal/storage"
	"github.com/dharsanguruparan/expiredrop/internal/sweeper"
)

const shutdownTimeout = 5 * time.Second

// Ledger records uploads for auditing. *repository.UploadRepository
// satisfies it.
type Ledger interface {
	Create(ctx context.Context, u *model.Upload) error
}

// Deps are the collaborators of a Server. Sweeper and Ledger are optional.
type Deps struct {
	Store   storage.Store
	Queue   *expiry.Queue
	Sweeper *sweeper.Sweeper
	Ledger  Ledger
	Logger  *zap.Logger
}

// Server hosts the HTTP handlers.
type Server struct {
	cfg     *config.Config
	store   storage.Store
	queue   *expiry.Queue
	sweeper *sweeper.Sweeper
	ledger  Ledger
	tokens  *auth.Tokens
	limiter *ipLimiter
	log     *zap.Logger
	now     func() time.Time
	once    sync.Once
}

// New creates a configured server.
func New(cfg *config.Config, deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = logging.Nop()
	}
	q := deps.Queue
	if q == nil {
		q = expiry.NewQueue()
	}
	return &Server{
		cfg:     cfg,
		store:   deps.Store,
		queue:   q,
		sweeper: deps.Sweeper,
		ledger:  deps.Ledger,
		tokens:  auth.NewTokens(cfg.Tokens),
		limiter: newIPLimiter(cfg.RateLimitPerMinute),
		log:     log,
		now:     time.Now,
	}
}

// Serve starts the sweeper and launches the HTTP server until the context is
// cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.once.Do(func() {
		if s.sweeper != nil {
			go s.sweeper.Run(ctx)
		}
	})
	httpServer := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	s.log.Info("listening", zap.String("address", s.cfg.Address), zap.Int("tracked", s.queue.Len()))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the full middleware-wrapped route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/upload", s.limiter.Middleware(auth.Middleware(s.tokens, http.HandlerFunc(s.handleUpload))))
	mux.HandleFunc("/", s.handleFiles)
	return logging.Middleware(s.log, corsMiddleware(mux))
}

type healthResponse struct {
	Status     string     `json:"status"`
	Tracked    int        `json:"tracked"`
	NextExpiry *time.Time `json:"next_expiry,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Tracked: s.queue.Len()}
	if next, ok := s.queue.Next(); ok {
		at := next.ExpiresAt().UTC()
		resp.NextExpiry = &at
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		s.log.Warn("encode json failed", zap.Error(err))
	}
}
