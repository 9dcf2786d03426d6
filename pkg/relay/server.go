package relay

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/llmrelay/llmrelay/pkg/config"
	"github.com/llmrelay/llmrelay/pkg/logutil"
	"golang.org/x/crypto/acme/autocert"
)

const maxInboundBodyBytes = 32 << 20

type Server struct {
	cfg        config.ServerConfig
	routes     *config.RouteTable
	keyring    *Keyring
	forwarder  *Forwarder
	metrics    *Metrics
	logger     *log.Logger
	httpServer *http.Server

	activeRelays atomic.Int64
	draining     atomic.Bool
}

func NewServer(cfg *config.ServerConfig, routes *config.RouteTable) (*Server, error) {
	forwarder, err := NewForwarder(cfg.HTTPProxy, cfg.HTTPSProxy)
	if err != nil {
		return nil, fmt.Errorf("create forwarder: %w", err)
	}

	s := &Server{
		cfg:       *cfg,
		routes:    routes,
		keyring:   NewKeyring(),
		forwarder: forwarder,
		metrics:   NewMetrics(),
		logger:    logutil.Named("relay"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(preflightMiddleware)
	r.Use(s.relayLifecycleMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.HandleFunc("/*", s.relayHandler)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	return s, nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	if s.cfg.TLS.Enabled {
		mgr := &autocert.Manager{
			Cache:      autocert.DirCache(s.cfg.TLS.CacheDir),
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(s.cfg.TLS.Domain),
			Email:      s.cfg.TLS.Email,
		}

		httpsSrv := &http.Server{
			Addr:              ":443",
			Handler:           s.httpServer.Handler,
			ReadHeaderTimeout: s.httpServer.ReadHeaderTimeout,
			ReadTimeout:       s.httpServer.ReadTimeout,
			WriteTimeout:      s.httpServer.WriteTimeout,
			IdleTimeout:       s.httpServer.IdleTimeout,
			TLSConfig:         &tls.Config{GetCertificate: mgr.GetCertificate, MinVersion: tls.VersionTLS12},
		}

		httpChallenge := &http.Server{
			Addr:              ":80",
			Handler:           mgr.HTTPHandler(http.HandlerFunc(redirectHTTPS)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			s.logger.Info("http challenge/redirect listening", "addr", ":80")
			if err := httpChallenge.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http challenge server: %w", err)
			}
		}()

		go func() {
			s.logger.Info("https listening", "addr", ":443", "domain", s.cfg.TLS.Domain)
			if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("https server: %w", err)
			}
		}()

		<-ctx.Done()
		s.draining.Store(true)
		s.waitForRelayIdle(ctx)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpChallenge.Shutdown(shutdownCtx)
		_ = httpsSrv.Shutdown(shutdownCtx)
		return firstErr(errCh)
	}

	go func() {
		s.logger.Info("gateway listening", "addr", s.cfg.ListenAddr, "tenants", s.routes.Tenants())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("gateway server: %w", err)
		}
	}()

	<-ctx.Done()
	s.draining.Store(true)
	s.waitForRelayIdle(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = s.httpServer.Shutdown(shutdownCtx)
	return firstErr(errCh)
}

func redirectHTTPS(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "https://"+r.Host+r.RequestURI, http.StatusMovedPermanently)
}

// preflightMiddleware answers CORS preflights before routing so that
// OPTIONS to any path, including the operational endpoints, returns 204.
func preflightMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			writePreflight(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) relayLifecycleMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		isRelayReq := r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
		if isRelayReq && s.draining.Load() {
			w.Header().Set("Retry-After", "3")
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		if isRelayReq {
			s.activeRelays.Add(1)
			defer s.activeRelays.Add(-1)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) waitForRelayIdle(ctx context.Context) {
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	lastLog := time.Time{}
	for {
		active := s.activeRelays.Load()
		if active <= 0 {
			s.logger.Info("shutdown: relay idle")
			return
		}
		if lastLog.IsZero() || time.Since(lastLog) >= time.Second {
			s.logger.Info("shutdown: waiting for active relays", "active", active)
			lastLog = time.Now()
		}
		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}
}

func writePreflight(w http.ResponseWriter) {
	setCORSHeaders(w.Header())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) relayHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInboundBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	payload := ClassifyBody(r.Header.Get("Content-Type"), body)
	model := payload.Model()
	token := bearerToken(r.Header)
	chat := IsChatPath(r.URL.Path)

	rc := s.routes.Resolve(token, model)
	target, err := ResolveTarget(rc, chat, r.URL.Path, r.URL.RawQuery, model)
	if err != nil {
		s.metrics.ObserveError("missing_route")
		s.logger.Warn("no route for request", "path", r.URL.Path, "model", model, "err", err)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	credential, haveCredential := s.keyring.Select(rc.Key, chat)
	headers := OutboundHeaders(r.Header, credential, haveCredential)

	outBody, err := payload.Encode()
	if err != nil {
		s.metrics.ObserveError("encode")
		s.logger.Error("encode outbound body", "err", err)
		http.Error(w, "failed to encode request body", http.StatusInternalServerError)
		return
	}

	resp, err := s.forwarder.Do(r.Context(), r.Method, target, outBody, headers)
	if err != nil {
		var unsupported *ErrUnsupportedMethod
		switch {
		case errors.As(err, &unsupported):
			s.metrics.ObserveError("unsupported_method")
			s.logger.Error("unsupported method", "method", r.Method, "path", r.URL.Path)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		case r.Context().Err() != nil:
			// Caller went away before the upstream answered; nobody is
			// left to receive an error.
			s.metrics.ObserveError("client_gone")
			s.logger.Debug("caller disconnected before upstream response", "path", r.URL.Path)
		default:
			s.metrics.ObserveError("upstream_dial")
			s.logger.Error("upstream request failed", "url", target, "err", err)
			http.Error(w, "upstream request failed", http.StatusBadGateway)
		}
		return
	}
	defer resp.Body.Close()

	// Relay mode is fixed here and never re-evaluated mid-flight. A non-2xx
	// upstream answer is always relayed buffered so the caller sees the
	// real status and error body.
	streaming := payload.Stream() && resp.StatusCode >= 200 && resp.StatusCode <= 299
	mode := "buffered"
	if streaming {
		mode = "stream"
	}

	var written int64
	var relayed []byte
	var relayErr error
	status := resp.StatusCode
	if streaming {
		status = http.StatusOK
		written, relayErr = writeStream(w, resp)
		s.metrics.AddStreamBytes(written)
	} else {
		relayed, relayErr = writeBuffered(w, resp)
		written = int64(len(relayed))
	}

	elapsed := time.Since(start)
	s.metrics.ObserveRequest(mode, status, elapsed)

	switch {
	case relayErr != nil && r.Context().Err() != nil:
		s.logger.Debug("caller disconnected mid-relay", "path", r.URL.Path, "written", written)
	case relayErr != nil:
		s.metrics.ObserveError("relay")
		s.logger.Warn("relay interrupted", "url", target, "err", relayErr)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		s.logger.Error("upstream returned error status",
			"url", target, "status", resp.StatusCode, "model", model,
			"body", snippet(relayed, 512))
	default:
		s.logger.Info("relayed request",
			"method", r.Method, "path", r.URL.Path, "model", model,
			"mode", mode, "status", status, "bytes", written,
			"duration", elapsed.Round(time.Millisecond))
	}
}

func bearerToken(h http.Header) string {
	auth := h.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func firstErr(ch <-chan error) error {
	select {
	case err := <-ch:
		return err
	default:
		return nil
	}
}
