// Package connector runs the interactive account-linking flow in the
// user's browser and hears the result on a loopback redirect.
package connector

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/toolchat/internal/connect"
)

// Opener shows a URL to the user.
type Opener func(url string) error

// AccountResolver finds the account a flow just created when the redirect
// does not name it.
type AccountResolver interface {
	NewestAccountID(ctx context.Context, app string) (string, error)
}

// Config configures a Browser connector.
type Config struct {
	// BaseURL is the hosted connect page.
	BaseURL string
	// CallbackAddr is where the redirect listener binds, e.g. 127.0.0.1:0.
	CallbackAddr string

	Open     Opener          // defaults to OpenBrowser
	Resolver AccountResolver // optional
	Logger   *zap.Logger
}

// Browser implements connect.Connector.
type Browser struct {
	cfg Config
	log *zap.Logger
}

var _ connect.Connector = (*Browser)(nil)

// New returns a Browser connector.
func New(cfg Config) *Browser {
	if cfg.Open == nil {
		cfg.Open = OpenBrowser
	}
	if cfg.CallbackAddr == "" {
		cfg.CallbackAddr = "127.0.0.1:0"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Browser{cfg: cfg, log: cfg.Logger}
}

// ConnectAccount starts a loopback listener, opens the connect page and
// returns. Exactly one of req.OnSuccess or req.OnError is called when the
// browser is redirected back. The listener shuts down after the first
// redirect or when ctx is done.
func (b *Browser) ConnectAccount(ctx context.Context, req connect.Request) error {
	ln, err := net.Listen("tcp", b.cfg.CallbackAddr)
	if err != nil {
		return fmt.Errorf("listening for connect callback: %w", err)
	}
	ctx, stop := context.WithCancel(ctx)

	state := uuid.NewString()
	var once sync.Once
	finish := func(accountID string, err error) {
		defer stop()
		once.Do(func() {
			if err != nil {
				if req.OnError != nil {
					req.OnError(err)
				}
				return
			}
			if req.OnSuccess != nil {
				req.OnSuccess(accountID)
			}
		})
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/connect/success", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "unknown connect attempt", http.StatusBadRequest)
			return
		}
		accountID := r.URL.Query().Get("account_id")
		if accountID == "" && b.cfg.Resolver != nil {
			id, err := b.cfg.Resolver.NewestAccountID(r.Context(), req.App)
			if err != nil {
				b.log.Warn("resolving connected account failed", zap.String("app", req.App), zap.Error(err))
			}
			accountID = id
		}
		writePage(w, "Account connected", "You can close this tab and return to the terminal.")
		finish(accountID, nil)
	})
	router.Get("/connect/error", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "unknown connect attempt", http.StatusBadRequest)
			return
		}
		reason := r.URL.Query().Get("error")
		if reason == "" {
			reason = "unknown error"
		}
		writePage(w, "Connection failed", reason)
		finish("", errors.New(reason))
	})

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.log.Warn("connect callback server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	callback := "http://" + ln.Addr().String()
	target, err := connectURL(b.cfg.BaseURL, req,
		callback+"/connect/success?state="+state,
		callback+"/connect/error?state="+state,
	)
	if err == nil {
		b.log.Info("opening connect page", zap.String("app", req.App), zap.String("callback", callback))
		err = b.cfg.Open(target)
	}
	if err != nil {
		stop()
		return fmt.Errorf("opening connect page: %w", err)
	}
	return nil
}

func connectURL(base string, req connect.Request, successURI, errorURI string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing connect base url: %w", err)
	}
	q := u.Query()
	q.Set("token", req.Token)
	q.Set("app", req.App)
	q.Set("connectLink", "true")
	q.Set("success_redirect_uri", successURI)
	q.Set("error_redirect_uri", errorURI)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func writePage(w http.ResponseWriter, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!doctype html><title>%s</title><h1>%s</h1><p>%s</p>",
		html.EscapeString(title), html.EscapeString(title), html.EscapeString(body))
}

// OpenBrowser opens url in the system browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
