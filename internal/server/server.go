package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"voralith-bot/internal/config"
	"voralith-bot/internal/modules/verification"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// TokenExchanger trades an authorization code for an access token.
// *oauth2.Config satisfies it.
type TokenExchanger interface {
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

// Completer finishes a verification handshake inside the bot.
type Completer interface {
	CompleteVerification(ctx context.Context, userID, state string, token *oauth2.Token) error
}

// Server serves the OAuth redirect callback and the health probe.
type Server struct {
	cfg       config.HTTPConfig
	router    *chi.Mux
	server    *http.Server
	exchanger TokenExchanger
	completer Completer
	limiter   *RateLimiter
	logger    *zap.Logger
}

func New(cfg config.HTTPConfig, exchanger TokenExchanger, completer Completer, logger *zap.Logger) *Server {
	r := chi.NewRouter()
	limiter := NewRateLimiter(cfg.RateLimit, cfg.Burst)

	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(Recovery(logger))
	r.Use(limiter.Middleware)

	s := &Server{
		cfg:       cfg,
		router:    r,
		exchanger: exchanger,
		completer: completer,
		limiter:   limiter,
		logger:    logger,
	}
	s.registerRoutes()
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/callback", s.handleCallback)
	s.router.Get("/oauth/callback", s.handleCallback)
	s.router.Get("/oauth2/authorized", s.handleCallback)
}

// Start blocks serving HTTP until Shutdown is called. It returns at once
// when Shutdown already ran.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.cfg.Addr))

	go s.limiter.cleanup()

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.stop()
	s.logger.Info("http server shutting down")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	logger := s.logger.With(zap.String("request_id", GetRequestID(r.Context())))

	if oauthErr := query.Get("error"); oauthErr != "" {
		logger.Info("oauth authorization denied", zap.String("error", oauthErr))
		s.render(w, http.StatusBadRequest, pageFailed, pageData{Detail: query.Get("error_description")})
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		s.render(w, http.StatusBadRequest, pageInvalid, pageData{})
		return
	}

	userID, _, err := verification.ParseState(state)
	if err != nil {
		logger.Warn("oauth callback with malformed state", zap.Error(err))
		s.render(w, http.StatusBadRequest, pageInvalid, pageData{})
		return
	}

	token, err := s.exchanger.Exchange(r.Context(), code)
	if err != nil {
		logger.Warn("oauth token exchange failed", zap.String("user_id", userID), zap.Error(err))
		s.render(w, http.StatusBadGateway, pageFailed, pageData{Detail: "The authorization code could not be exchanged."})
		return
	}

	if err := s.completer.CompleteVerification(r.Context(), userID, state, token); err != nil {
		logger.Warn("verification not completed", zap.String("user_id", userID), zap.Error(err))
		s.render(w, http.StatusOK, pageFallback, pageData{})
		return
	}

	logger.Info("verification completed", zap.String("user_id", userID))
	s.render(w, http.StatusOK, pageSuccess, pageData{})
}
