package callback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/logging"
	"github.com/sirupsen/logrus"
)

const (
	maxForwardBytes = 8 << 10
	forwardPath     = "/forward"
	healthPath      = "/healthz"
)

// URLRouter consumes a wallet callback URL.
type URLRouter interface {
	RouteURL(ctx context.Context, rawURL string) error
}

// Server accepts wallet callbacks on a loopback address. Custom-scheme URLs
// reach it through POST /forward; wallets that call back over http hit any
// other path, which is rebuilt as <appScheme>://<path>?<query>.
type Server struct {
	appScheme string
	router    URLRouter
	logger    logrus.FieldLogger
	listener  net.Listener
	server    *http.Server
	serveErr  chan error
	closeOnce sync.Once
}

func Start(listenAddr, appScheme string, router URLRouter, logger logrus.FieldLogger) (*Server, error) {
	if router == nil {
		return nil, errors.New("callback router is required")
	}
	if listenAddr == "" {
		listenAddr = "127.0.0.1:0"
	}
	if logger == nil {
		logger = logging.Discard()
	}

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen callback server: %w", err)
	}

	s := &Server{
		appScheme: appScheme,
		router:    router,
		logger:    logger,
		listener:  listener,
		serveErr:  make(chan error, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(healthPath, s.handleHealth)
	mux.HandleFunc(forwardPath, s.handleForward)
	mux.HandleFunc("/", s.handleDirect)
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.serveErr <- err
		}
		close(s.serveErr)
	}()

	logger.WithField("addr", s.Addr()).Info("callback server listening")
	return s, nil
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) BaseURL() string {
	if tcpAddr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return fmt.Sprintf("http://127.0.0.1:%d", tcpAddr.Port)
	}
	return "http://" + s.Addr()
}

// Wait blocks until ctx is done or the server stops on its own.
func (s *Server) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-s.serveErr:
		return err
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		err = s.server.Shutdown(shutdownCtx)
	})
	return err
}

func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.server.Close()
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	var raw string
	switch r.Method {
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxForwardBytes))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		raw = strings.TrimSpace(string(body))
	case http.MethodGet:
		raw = r.URL.Query().Get("url")
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if raw == "" {
		http.Error(w, "missing callback url", http.StatusBadRequest)
		return
	}
	s.route(w, r, raw)
}

func (s *Server) handleDirect(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" || s.appScheme == "" {
		http.NotFound(w, r)
		return
	}

	raw := s.appScheme + "://" + path
	if r.URL.RawQuery != "" {
		raw += "?" + r.URL.RawQuery
	}
	s.route(w, r, raw)
}

func (s *Server) route(w http.ResponseWriter, r *http.Request, raw string) {
	if err := s.router.RouteURL(r.Context(), raw); err != nil {
		s.logger.WithError(err).Debug("callback not accepted")
		http.Error(w, domain.UserMessage(err), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Wallet response received. You can return to the terminal."))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoPendingSession), errors.Is(err, domain.ErrRequestNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// Forward hands rawURL to a callback server running at baseURL. It is what
// the OS custom-scheme handler invokes.
func Forward(ctx context.Context, client *http.Client, baseURL, rawURL string) error {
	if client == nil {
		client = http.DefaultClient
	}
	if _, err := url.Parse(rawURL); err != nil {
		return fmt.Errorf("parse callback url: %w", domain.ErrInvalidCallback)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+forwardPath, bytes.NewBufferString(rawURL))
	if err != nil {
		return fmt.Errorf("build forward request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("forward callback: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxForwardBytes))
		return fmt.Errorf("callback server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
