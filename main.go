// Planly TUI - the desktop assistant client for the Planly service.
//
// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/planly/planly-tui/internal/api"
	"github.com/planly/planly-tui/internal/auth"
	"github.com/planly/planly-tui/internal/config"
	"github.com/planly/planly-tui/internal/instance"
	"github.com/planly/planly-tui/internal/oauth"
	"github.com/planly/planly-tui/internal/store"
	"github.com/planly/planly-tui/internal/ui"
	"github.com/planly/planly-tui/internal/ui/chat"
	"github.com/planly/planly-tui/internal/ui/components"
	"github.com/planly/planly-tui/internal/ui/styles"
	"github.com/planly/planly-tui/internal/window"
)

// Version information (set at build time)
var (
	Version   = "0.4.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global program reference for async events (config reloads, activations).
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

func sendToProgram(msg tea.Msg) {
	programMu.Lock()
	p := programRef
	programMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// =============================================================================
// STARTUP
// =============================================================================

func main() {
	// Single-instance rule: a second launch hands activation to the running
	// process and exits.
	lock, err := instance.Acquire(instance.DefaultPath())
	if err != nil {
		var already *instance.AlreadyRunningError
		if errors.As(err, &already) {
			if actErr := instance.Activate(already.PID); actErr != nil {
				fmt.Fprintf(os.Stderr, "Planly is already running.\n")
			}
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer lock.Release()

	cfg := config.Global()

	if err := config.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not create data directory: %v\n", err)
		os.Exit(1)
	}

	closeLogs, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open log file: %v\n", err)
	} else {
		defer closeLogs()
	}
	log.Info().Str("version", Version).Msg("planly starting")

	dbPath, err := store.DefaultPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not resolve data directory: %v\n", err)
		os.Exit(1)
	}
	kv, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not open local store: %v\n", err)
		os.Exit(1)
	}
	defer kv.Close()

	keyPath, err := auth.DefaultKeyPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not resolve data directory: %v\n", err)
		os.Exit(1)
	}
	cipher, err := auth.NewCipher(keyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not initialize credential encryption: %v\n", err)
		os.Exit(1)
	}

	tokens := auth.NewTokenStore(kv, cipher)
	client := api.NewClient(cfg.Server.BaseURL, tokens).WithTimeout(cfg.RequestTimeout())
	oauthCtrl := oauth.NewController(tokens, client.OAuthLoginURL).WithDeadline(cfg.BrowserDeadline())
	winStore := window.NewStore(kv)

	m := NewModel(styles.NewTheme(), cfg, client, tokens, oauthCtrl, winStore)

	p := tea.NewProgram(m, tea.WithAltScreen())

	programMu.Lock()
	programRef = p
	programMu.Unlock()

	// External activations (signal from a second launch) feed the same
	// toggle as the in-app shortcut.
	go func() {
		for range instance.Activations() {
			sendToProgram(ui.ActivationMsg{})
		}
	}()

	// Live config reload.
	if cfgPath, err := config.Path(); err == nil {
		if watcher, err := config.NewWatcher(cfgPath, func(c *config.Config) {
			sendToProgram(configReloadedMsg{cfg: c})
		}); err == nil {
			if err := watcher.Watch(); err != nil {
				log.Warn().Err(err).Msg("config watcher failed to start")
			}
			defer watcher.Close()
		}
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running planly: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("planly exited")
}

// setupLogging routes zerolog to the data-directory log file. The TUI owns
// the terminal; logs never go to stdout.
func setupLogging(cfg *config.Config) (func(), error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	path := cfg.Log.Path
	if path == "" {
		dir, err := config.Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "planly.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return func() { f.Close() }, nil
}

// =============================================================================
// APPLICATION MODEL
// =============================================================================

// State represents the primary surface in control of the screen.
type State int

const (
	StateSplash State = iota // Startup: health check and session probe
	StateLogin               // Credential or browser login
	StateHome                // Authenticated landing surface
)

// Model is the main Bubble Tea model for the application.
type Model struct {
	// State
	state State

	// chatVisible is the auth-gated overlay flag, independent of state.
	chatVisible bool

	// Theme and styling
	theme *styles.Theme

	// Dimensions
	width  int
	height int

	// Surfaces
	splash    components.Splash
	login     components.Login
	home      components.Home
	statusBar components.StatusBar
	chatModel chat.Model

	// Collaborators
	config    *config.Config
	client    *api.Client
	tokens    *auth.TokenStore
	oauthCtrl *oauth.Controller
	winStore  *window.Store

	// Session display state
	profile *api.Profile

	// Overlay geometry for the visible chat surface
	chatBounds window.Bounds

	// resizeSeq identifies the latest resize so only the settled size is
	// persisted, not every intermediate frame of a drag.
	resizeSeq int

	// Fatal startup failure, shown before quitting
	fatalErr error
}

// NewModel creates the application model.
func NewModel(theme *styles.Theme, cfg *config.Config, client *api.Client, tokens *auth.TokenStore, oauthCtrl *oauth.Controller, winStore *window.Store) *Model {
	splash := components.NewSplash(theme)
	splash.SetVersion(Version)

	return &Model{
		state:     StateSplash,
		theme:     theme,
		splash:    splash,
		login:     components.NewLogin(theme),
		home:      components.NewHome(theme),
		statusBar: components.NewStatusBar(theme),
		chatModel: chat.New(theme, client),
		config:    cfg,
		client:    client,
		tokens:    tokens,
		oauthCtrl: oauthCtrl,
		winStore:  winStore,
	}
}

// =============================================================================
// MESSAGES
// =============================================================================

type healthResultMsg struct{ ok bool }

type sessionValidMsg struct{ profile *api.Profile }

type sessionInvalidMsg struct{ err error }

type loginDoneMsg struct{ userID string }

type loginFailedMsg struct{ err error }

type browserLoginResultMsg struct{ result oauth.Result }

type profileLoadedMsg struct{ profile *api.Profile }

type loggedOutMsg struct{}

type fatalQuitMsg struct{}

type resizeSettledMsg struct{ seq int }

type configReloadedMsg struct{ cfg *config.Config }

// =============================================================================
// COMMANDS
// =============================================================================

func (m *Model) checkHealthCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		return healthResultMsg{ok: client.HealthCheck(context.Background())}
	}
}

// validateSessionCmd probes the stored session with a profile fetch. Expiry
// recovery is the gateway's job; only refresh exhaustion lands here as an
// invalid session.
func (m *Model) validateSessionCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		profile, err := client.Me(context.Background())
		if err != nil {
			return sessionInvalidMsg{err: err}
		}
		return sessionValidMsg{profile: profile}
	}
}

func (m *Model) loginCmd(email, password string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		userID, err := client.Login(context.Background(), email, password)
		if err != nil {
			return loginFailedMsg{err: err}
		}
		return loginDoneMsg{userID: userID}
	}
}

func (m *Model) registerCmd(email, password, fullName string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		userID, err := client.Register(context.Background(), email, password, fullName)
		if err != nil {
			return loginFailedMsg{err: err}
		}
		return loginDoneMsg{userID: userID}
	}
}

// browserLoginCmd starts a browser attempt and blocks on its settlement.
// Starting a new attempt supersedes this one; the superseded settlement is
// ignored by the handler.
func (m *Model) browserLoginCmd() tea.Cmd {
	ctrl := m.oauthCtrl
	return func() tea.Msg {
		attempt, err := ctrl.Begin(context.Background())
		if err != nil {
			return loginFailedMsg{err: err}
		}
		return browserLoginResultMsg{result: <-attempt.Done}
	}
}

func (m *Model) fetchProfileCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		profile, err := client.Me(context.Background())
		if err != nil {
			return sessionInvalidMsg{err: err}
		}
		return profileLoadedMsg{profile: profile}
	}
}

// splashPause keeps splash status messages on screen long enough to read.
const splashPause = 600 * time.Millisecond

// resizeSettle is how long the terminal size must hold steady before the
// overlay placement is persisted.
const resizeSettle = 500 * time.Millisecond

// staged defers a command so the preceding splash status stays legible.
func staged(cmd tea.Cmd) tea.Cmd {
	return tea.Tick(splashPause, func(time.Time) tea.Msg { return cmd() })
}

func (m *Model) logoutCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		// Best-effort remote; local credentials are gone either way.
		if err := client.Logout(context.Background()); err != nil {
			log.Warn().Err(err).Msg("logout finished with remote error")
		}
		return loggedOutMsg{}
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.splash.Init(),
		m.login.Init(),
		m.chatModel.Init(),
		ui.StatusText("Contacting Planly..."),
		m.checkHealthCmd(),
	)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ui.StatusTextMsg:
		m.splash.SetStatus(msg.Text)
		m.statusBar.SetMessage(msg.Text)
		return m, nil

	case ui.NavigationMsg:
		return m.handleNavigation(msg.Surface)

	case ui.ActivationMsg:
		return m.toggleChat()

	case ui.SessionExpiredMsg:
		return m.routeToLogin("Your session expired. Please sign in again.")

	case healthResultMsg:
		return m.handleHealthResult(msg.ok)

	case sessionValidMsg:
		m.profile = msg.profile
		return m.enterHome()

	case sessionInvalidMsg:
		return m.handleSessionInvalid(msg.err)

	case components.CredentialsSubmitMsg:
		return m, tea.Batch(m.loginCmd(msg.Email, msg.Password))

	case components.RegisterSubmitMsg:
		return m, tea.Batch(m.registerCmd(msg.Email, msg.Password, msg.FullName))

	case components.BrowserLoginMsg:
		return m, m.browserLoginCmd()

	case loginDoneMsg:
		m.state = StateSplash
		if m.login.Registering() {
			m.splash.SetStatus("Setting up your account...")
		} else {
			m.splash.SetStatus("Loading your profile...")
		}
		return m, tea.Batch(m.splash.Init(), staged(m.fetchProfileCmd()))

	case loginFailedMsg:
		m.login.SetError(loginErrorText(msg.err))
		return m, nil

	case browserLoginResultMsg:
		return m.handleBrowserResult(msg.result)

	case profileLoadedMsg:
		m.profile = msg.profile
		return m.enterHome()

	case loggedOutMsg:
		return m.routeToLogin("Signed out.")

	case fatalQuitMsg:
		return m, tea.Quit

	case resizeSettledMsg:
		return m.handleResizeSettled(msg.seq)

	case configReloadedMsg:
		m.config = msg.cfg
		m.client.WithTimeout(msg.cfg.RequestTimeout())
		m.oauthCtrl.WithDeadline(msg.cfg.BrowserDeadline())
		m.statusBar.SetMessage("Configuration reloaded")
		return m, nil

	case chat.ReplyMsg, chat.ConfirmResultMsg, chat.ErrMsg:
		var cmd tea.Cmd
		m.chatModel, cmd = m.chatModel.Update(msg)
		return m, cmd
	}

	return m.updateActiveSurface(msg)
}

// updateActiveSurface forwards a message to whichever surface is live.
func (m *Model) updateActiveSurface(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch m.state {
	case StateSplash:
		m.splash, cmd = m.splash.Update(msg)
		cmds = append(cmds, cmd)
	case StateLogin:
		m.login, cmd = m.login.Update(msg)
		cmds = append(cmds, cmd)
	case StateHome:
		if m.chatVisible {
			m.chatModel, cmd = m.chatModel.Update(msg)
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

// =============================================================================
// STATE TRANSITIONS
// =============================================================================

func (m *Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)
	m.splash.SetSize(msg.Width, msg.Height)
	m.login.SetSize(msg.Width, msg.Height)
	m.home.SetSize(msg.Width, msg.Height-1)
	m.statusBar.SetSize(msg.Width)

	// The chat overlay keeps its last placement when it still fits the new
	// work area; otherwise the computed default wins. Persistence waits for
	// the size to settle so a drag through transient sizes never overwrites
	// the saved placement.
	screen := window.Rect{X: 0, Y: 0, Width: msg.Width, Height: msg.Height}
	m.chatBounds = m.winStore.Restore(screen)
	m.chatModel.SetSize(m.chatBounds.Width, m.chatBounds.Height)

	m.resizeSeq++
	seq := m.resizeSeq
	return m, tea.Tick(resizeSettle, func(time.Time) tea.Msg { return resizeSettledMsg{seq: seq} })
}

// handleResizeSettled persists the overlay placement once no newer resize
// has arrived.
func (m *Model) handleResizeSettled(seq int) (tea.Model, tea.Cmd) {
	if seq != m.resizeSeq {
		return m, nil
	}
	if err := m.winStore.Save(m.chatBounds); err != nil {
		log.Warn().Err(err).Msg("failed to persist window bounds")
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	// Terminals report ctrl+space as the NUL key (ctrl+@).
	case "ctrl+@", "ctrl+space":
		return m.toggleChat()

	case "ctrl+l":
		if m.state == StateHome {
			m.statusBar.SetMessage("Signing out...")
			return m, m.logoutCmd()
		}

	case "esc":
		// Abandon a pending browser attempt and unlock the form.
		if m.state == StateLogin {
			m.oauthCtrl.Cancel()
			m.login.SetBusy(false)
			return m, nil
		}
	}
	return m.updateActiveSurface(msg)
}

func (m *Model) handleNavigation(surface ui.Surface) (tea.Model, tea.Cmd) {
	log.Debug().Stringer("surface", surface).Msg("surface changed")
	switch surface {
	case ui.SurfaceSplash:
		m.state = StateSplash
		return m, m.splash.Init()
	case ui.SurfaceLogin:
		m.state = StateLogin
		m.chatVisible = false
		return m, m.login.Init()
	case ui.SurfaceHome:
		m.state = StateHome
	}
	return m, nil
}

func (m *Model) handleHealthResult(ok bool) (tea.Model, tea.Cmd) {
	if !ok {
		// No useful offline mode exists; startup is fatal.
		m.fatalErr = errors.New("the Planly service is unreachable")
		m.splash.SetStatus("Planly is unreachable. Check your connection and try again.")
		log.Error().Msg("startup health check failed")
		return m, tea.Tick(2500*time.Millisecond, func(time.Time) tea.Msg { return fatalQuitMsg{} })
	}

	if m.tokens.IsAuthenticated() {
		m.splash.SetStatus("Checking your session...")
		return m, staged(m.validateSessionCmd())
	}
	return m.routeToLogin("")
}

func (m *Model) handleSessionInvalid(err error) (tea.Model, tea.Cmd) {
	var apiErr *api.APIError
	switch {
	case errors.Is(err, api.ErrSessionExpired), errors.Is(err, api.ErrNotAuthenticated):
		return m.routeToLogin("Your session expired. Please sign in again.")
	case errors.As(err, &apiErr):
		return m.routeToLogin("Could not restore your session. Please sign in.")
	default:
		// Transient network failure while validating: surface it, let the
		// user retry with credentials.
		log.Warn().Err(err).Msg("session validation failed")
		return m.routeToLogin("Could not reach Planly. Sign in to retry.")
	}
}

func (m *Model) handleBrowserResult(res oauth.Result) (tea.Model, tea.Cmd) {
	if res.Outcome == oauth.OutcomeSuperseded {
		// A newer attempt took over; this settlement means nothing now.
		return m, nil
	}

	if res.Succeeded() {
		m.state = StateSplash
		m.splash.SetStatus("Loading your profile...")
		return m, tea.Batch(m.splash.Init(), staged(m.fetchProfileCmd()))
	}

	switch res.Outcome {
	case oauth.OutcomeTimeout:
		m.login.SetError("Browser sign-in timed out. Try again.")
	case oauth.OutcomeProviderError:
		m.login.SetError("The provider rejected the sign-in. Try again.")
	case oauth.OutcomeMalformed:
		m.login.SetError("The sign-in response was incomplete. Try again.")
	default:
		m.login.SetError("Browser sign-in failed. Try again.")
	}
	if res.Err != nil {
		log.Warn().Err(res.Err).Msg("browser login failed")
	}
	return m, nil
}

func (m *Model) enterHome() (tea.Model, tea.Cmd) {
	if m.profile != nil {
		m.home.SetProfile(m.profile.DisplayName(), m.profile.Email)
		m.statusBar.SetUser(m.profile.DisplayName())
	}
	m.statusBar.SetHealth(components.HealthOK)
	return m, ui.Navigate(ui.SurfaceHome)
}

// routeToLogin is the single path to the login surface. The chat overlay is
// forced hidden; it must never survive into an unauthenticated state.
func (m *Model) routeToLogin(notice string) (tea.Model, tea.Cmd) {
	m.chatVisible = false
	m.chatModel.Clear()
	m.profile = nil
	m.login.Reset()
	if notice != "" {
		m.login.SetError(notice)
	}
	return m, ui.Navigate(ui.SurfaceLogin)
}

// toggleChat shows or hides the assistant overlay. The visible overlay is
// unreachable without a session, no matter which channel asked for it.
func (m *Model) toggleChat() (tea.Model, tea.Cmd) {
	if m.chatVisible {
		m.chatVisible = false
		return m, nil
	}

	if !m.client.CheckAuth() || m.state != StateHome {
		return m.routeToLogin("Sign in to use the assistant.")
	}

	// Restore persisted placement fresh each time the overlay appears.
	screen := window.Rect{X: 0, Y: 0, Width: m.width, Height: m.height}
	m.chatBounds = m.winStore.Restore(screen)
	m.chatModel.SetSize(m.chatBounds.Width, m.chatBounds.Height)

	m.chatVisible = true
	m.chatModel.Focus()
	return m, nil
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the active surface (plus the chat overlay on Home).
func (m *Model) View() string {
	switch m.state {
	case StateSplash:
		return m.splash.View()

	case StateLogin:
		return m.login.View()

	case StateHome:
		if m.chatVisible {
			return m.chatModel.View() + "\n" + m.statusBar.View()
		}
		return m.home.View() + "\n" + m.statusBar.View()
	}
	return ""
}

// loginErrorText maps login failures to user-facing text.
func loginErrorText(err error) string {
	var apiErr *api.APIError
	switch {
	case errors.Is(err, api.ErrLoginThrottled):
		return "Too many attempts. Wait a moment and try again."
	case errors.As(err, &apiErr):
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return fmt.Sprintf("Sign-in failed (HTTP %d).", apiErr.Status)
	default:
		return "Could not reach Planly. Check your connection."
	}
}
