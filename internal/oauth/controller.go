// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package oauth

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/planly/planly-tui/internal/auth"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// DefaultDeadline is how long an attempt waits for the browser round trip
// before settling as timed out.
const DefaultDeadline = 90 * time.Second

// callbackPath is the loopback route the API redirects the browser to.
const callbackPath = "/callback"

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBindFailed indicates no loopback listener could be bound.
	ErrBindFailed = errors.New("failed to bind loopback listener")

	// ErrBrowserFailed indicates the system browser could not be launched.
	ErrBrowserFailed = errors.New("failed to open browser")
)

// =============================================================================
// TYPES
// =============================================================================

// Outcome classifies how an attempt settled.
type Outcome int

const (
	// OutcomeSuccess means tokens arrived and were persisted.
	OutcomeSuccess Outcome = iota
	// OutcomeProviderError means the callback carried a provider error.
	OutcomeProviderError
	// OutcomeMalformed means the callback carried neither tokens nor an error.
	OutcomeMalformed
	// OutcomeTimeout means no callback arrived before the deadline.
	OutcomeTimeout
	// OutcomeSuperseded means a newer attempt replaced this one.
	OutcomeSuperseded
	// OutcomeFailed means the attempt could not run (bind, browser, storage).
	OutcomeFailed
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeProviderError:
		return "provider error"
	case OutcomeMalformed:
		return "malformed callback"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeSuperseded:
		return "superseded"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the single settlement of an attempt.
type Result struct {
	AttemptID string
	Outcome   Outcome
	Err       error
}

// Succeeded reports whether this result carries a persisted session.
func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// Attempt is one browser-delegated login round trip. It settles exactly
// once; the settlement is delivered on Done.
type Attempt struct {
	// ID distinguishes this attempt from superseded predecessors.
	ID string

	// Done receives the attempt's single settlement.
	Done <-chan Result

	done     chan Result
	settled  sync.Once
	server   *http.Server
	listener net.Listener
	timer    *time.Timer
	teardown sync.Once
}

// Controller runs browser-delegated login attempts. At most one attempt is
// live at any time; starting a new one supersedes the previous.
type Controller struct {
	mu      sync.Mutex
	current *Attempt

	tokens   *auth.TokenStore
	deadline time.Duration

	// loginURL maps a loopback redirect URL to the browser entry point.
	loginURL func(redirect string) string

	// openBrowser launches the system browser. Swapped out in tests.
	openBrowser func(url string) error
}

// NewController creates a login controller. loginURL builds the URL the
// browser is sent to, given the loopback callback URL as redirect target.
func NewController(tokens *auth.TokenStore, loginURL func(redirect string) string) *Controller {
	return &Controller{
		tokens:      tokens,
		deadline:    DefaultDeadline,
		loginURL:    loginURL,
		openBrowser: OpenBrowser,
	}
}

// WithDeadline overrides the attempt deadline.
func (c *Controller) WithDeadline(d time.Duration) *Controller {
	c.deadline = d
	return c
}

// WithBrowserOpener overrides the browser launcher. Used by tests.
func (c *Controller) WithBrowserOpener(open func(url string) error) *Controller {
	c.openBrowser = open
	return c
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Begin starts a new login attempt, superseding any in-flight one. The
// returned attempt settles exactly once on its Done channel. Begin itself
// only fails when no loopback listener can be bound.
func (c *Controller) Begin(ctx context.Context) (*Attempt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.settle(Result{
			AttemptID: c.current.ID,
			Outcome:   OutcomeSuperseded,
		})
		c.current = nil
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBindFailed, err)
	}

	done := make(chan Result, 1)
	attempt := &Attempt{
		ID:       uuid.New().String(),
		Done:     done,
		done:     done,
		listener: listener,
	}

	redirect := fmt.Sprintf("http://%s%s", listener.Addr().String(), callbackPath)

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		c.handleCallback(attempt, w, r)
	})
	attempt.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := attempt.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			attempt.settle(Result{
				AttemptID: attempt.ID,
				Outcome:   OutcomeFailed,
				Err:       err,
			})
		}
	}()

	attempt.timer = time.AfterFunc(c.deadline, func() {
		attempt.settle(Result{AttemptID: attempt.ID, Outcome: OutcomeTimeout})
	})

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				attempt.settle(Result{
					AttemptID: attempt.ID,
					Outcome:   OutcomeFailed,
					Err:       ctx.Err(),
				})
			case <-attempt.Done:
			}
		}()
	}

	log.Info().Str("attempt", attempt.ID).Str("redirect", redirect).Msg("browser login started")

	if err := c.openBrowser(c.loginURL(redirect)); err != nil {
		attempt.settle(Result{
			AttemptID: attempt.ID,
			Outcome:   OutcomeFailed,
			Err:       fmt.Errorf("%w: %v", ErrBrowserFailed, err),
		})
	}

	c.current = attempt
	return attempt, nil
}

// Cancel settles the current attempt, if any, as superseded.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.settle(Result{AttemptID: c.current.ID, Outcome: OutcomeSuperseded})
		c.current = nil
	}
}

// =============================================================================
// CALLBACK
// =============================================================================

// handleCallback processes the browser's redirect. Only the first callback
// for an attempt settles it; later hits get a neutral page.
func (c *Controller) handleCallback(a *Attempt, w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	var first bool
	a.settled.Do(func() {
		first = true
		c.settleFromCallback(a, w, r)
	})

	if !first {
		fmt.Fprint(w, pageAlreadyDone)
	}
}

// settleFromCallback runs exactly once per attempt, inside the settled Once.
func (c *Controller) settleFromCallback(a *Attempt, w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if provErr := query.Get("error"); provErr != "" {
		desc := query.Get("error_description")
		if desc == "" {
			desc = provErr
		}
		renderPage(w, pageError, map[string]string{"Description": template.HTMLEscapeString(desc)})
		a.deliver(Result{
			AttemptID: a.ID,
			Outcome:   OutcomeProviderError,
			Err:       fmt.Errorf("provider rejected login: %s", provErr),
		})
		return
	}

	session := auth.Session{
		AccessToken:  query.Get("access_token"),
		RefreshToken: query.Get("refresh_token"),
	}
	if !session.Complete() {
		renderPage(w, pageError, map[string]string{"Description": "The sign-in response was incomplete."})
		a.deliver(Result{
			AttemptID: a.ID,
			Outcome:   OutcomeMalformed,
			Err:       errors.New("callback carried no usable credentials"),
		})
		return
	}

	if err := c.tokens.Set(session); err != nil {
		renderPage(w, pageError, map[string]string{"Description": "Planly could not save your session."})
		a.deliver(Result{
			AttemptID: a.ID,
			Outcome:   OutcomeFailed,
			Err:       fmt.Errorf("failed to persist session: %w", err),
		})
		return
	}

	fmt.Fprint(w, pageSuccess)
	log.Info().Str("attempt", a.ID).Str("token", session.Fingerprint()).Msg("browser login succeeded")
	a.deliver(Result{AttemptID: a.ID, Outcome: OutcomeSuccess})
}

// renderPage executes a static page template. The templates are compile-time
// constants, so parse errors cannot happen at runtime.
func renderPage(w http.ResponseWriter, page string, data map[string]string) {
	tmpl := template.Must(template.New("page").Parse(page))
	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// =============================================================================
// SETTLEMENT
// =============================================================================

// settle delivers res unless the attempt already settled via its callback.
func (a *Attempt) settle(res Result) {
	a.settled.Do(func() {
		a.deliver(res)
	})
}

// deliver sends the settlement and tears the attempt down. Must only be
// called from inside the settled Once.
func (a *Attempt) deliver(res Result) {
	if res.Err != nil {
		log.Warn().Str("attempt", res.AttemptID).Str("outcome", res.Outcome.String()).Err(res.Err).Msg("login attempt settled")
	} else {
		log.Debug().Str("attempt", res.AttemptID).Str("outcome", res.Outcome.String()).Msg("login attempt settled")
	}

	a.done <- res
	a.close()
}

// close releases the attempt's listener and timer. Safe to call repeatedly.
func (a *Attempt) close() {
	a.teardown.Do(func() {
		if a.timer != nil {
			a.timer.Stop()
		}
		// Shut down off the callback goroutine so the in-flight HTTP
		// response still reaches the browser.
		srv, lis := a.server, a.listener
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
			_ = lis.Close()
		}()
	})
}
