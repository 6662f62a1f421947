// Package session runs one isolated browser session end to end: configure
// identity, install the fingerprint pipeline and network capture before
// navigation, navigate under a bounded timeout, export persisted state, and
// tear down. A runner always returns a result, regardless of how far
// navigation got, and always releases the session's browser resources.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/godsownf/sessiondiff/pkg/capture"
	"github.com/godsownf/sessiondiff/pkg/config"
	"github.com/godsownf/sessiondiff/pkg/cookiepolicy"
	"github.com/godsownf/sessiondiff/pkg/fingerprint"
)

// StorageStateFileName is the exported persisted-state artifact.
const StorageStateFileName = "storage_state.json"

// State tracks a session through its lifecycle.
type State int

const (
	StateCreated State = iota
	StateConfiguring
	StateCapturing
	StateNavigating
	StateFinalizing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConfiguring:
		return "configuring"
	case StateCapturing:
		return "capturing"
	case StateNavigating:
		return "navigating"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Config is the per-account session configuration. It is constructed once
// before the session starts (with any per-host policy already merged into
// App) and owned exclusively by its runner.
type Config struct {
	AccountID        string
	App              *config.Config
	ArtifactsDir     string
	StorageStatePath string
}

// BuildConfig derives a session configuration for one account from the
// effective (policy-merged) application configuration.
func BuildConfig(app *config.Config, accountID string) Config {
	return Config{
		AccountID:        accountID,
		App:              app,
		ArtifactsDir:     filepath.Join(app.Storage.ArtifactsDir, "acct_"+accountID),
		StorageStatePath: filepath.Join(app.Storage.ProfileDir, "acct_"+accountID+"_state.json"),
	}
}

// Result is the outcome of one session. Exactly one Result exists per
// Config, even when the session failed.
type Result struct {
	AccountID string
	Requests  []capture.Request
	Succeeded bool
	Err       error
}

// Runner owns one browser session's full lifecycle.
type Runner struct {
	cfg    Config
	pw     *playwright.Playwright
	logger *zap.Logger
	id     string
	state  State
}

// NewRunner creates a runner for one session configuration.
func NewRunner(pw *playwright.Playwright, cfg Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New().String()
	return &Runner{
		cfg:    cfg,
		pw:     pw,
		logger: logger.With(zap.String("session_id", id), zap.String("account", cfg.AccountID)),
		id:     id,
		state:  StateCreated,
	}
}

// ID returns the runner's session id.
func (r *Runner) ID() string { return r.id }

// State returns the runner's current lifecycle state.
func (r *Runner) State() State { return r.state }

func (r *Runner) setState(s State) {
	r.logger.Debug("Session state change",
		zap.String("from", r.state.String()), zap.String("to", s.String()))
	r.state = s
}

// Run executes the session end to end and always returns a Result. A
// navigation failure marks the result failed but still runs the finalize
// and close steps; nothing escalates to the caller as a fatal error.
func (r *Runner) Run(ctx context.Context) Result {
	app := r.cfg.App
	result := Result{AccountID: r.cfg.AccountID}

	r.setState(StateConfiguring)
	browser, bctx, err := r.openContext()
	if err != nil {
		r.setState(StateFailed)
		result.Err = err
		return result
	}
	defer r.release(browser, bctx)

	pipeline := fingerprint.NewPipeline(app.Fingerprint, r.logger)
	recorder := capture.NewRecorder(capture.RecorderConfig{
		AcceptLanguage: app.Capture.AcceptLanguage,
		CustomHeaders:  app.Capture.CustomHeaders,
		Include:        app.Capture.Include,
		Exclude:        app.Capture.Exclude,
	}, r.logger)

	// Probes and interception must both be active before the first request
	// leaves the context.
	r.setState(StateCapturing)
	if err := pipeline.InstallProbes(bctx); err != nil {
		r.logger.Warn("Fingerprint probe installation failed", zap.Error(err))
	}
	if err := recorder.Install(bctx); err != nil {
		r.logger.Warn("Capture installation failed", zap.Error(err))
	}
	r.seedCookies(bctx)

	page, err := bctx.NewPage()
	if err != nil {
		r.setState(StateFailed)
		result.Err = fmt.Errorf("creating page: %w", err)
		result.Requests = recorder.Requests()
		r.finalize(bctx, recorder, pipeline, nil)
		return result
	}

	r.setState(StateNavigating)
	navErr := r.navigate(ctx, page, pipeline)

	r.setState(StateFinalizing)
	r.finalize(bctx, recorder, pipeline, page)

	result.Requests = recorder.Requests()
	result.Succeeded = navErr == nil
	result.Err = navErr
	if navErr != nil {
		r.setState(StateFailed)
		r.logger.Error("Session failed", zap.Error(navErr))
	} else {
		r.logger.Info("Session finished", zap.Int("captured_requests", len(result.Requests)))
	}
	return result
}

// openContext launches the browser and builds the identity context from the
// session configuration.
func (r *Runner) openContext() (playwright.Browser, playwright.BrowserContext, error) {
	app := r.cfg.App
	browser, err := r.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(app.Browser.Headless),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("launching browser: %w", err)
	}

	opts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  app.Browser.ViewportWidth,
			Height: app.Browser.ViewportHeight,
		},
		DeviceScaleFactor: playwright.Float(app.Browser.DeviceScaleFactor),
		IsMobile:          playwright.Bool(app.Browser.IsMobile),
		HasTouch:          playwright.Bool(app.Browser.HasTouch),
	}
	if app.Browser.UserAgent != "" {
		opts.UserAgent = playwright.String(app.Browser.UserAgent)
	}
	if app.Browser.Locale != "" {
		opts.Locale = playwright.String(app.Browser.Locale)
	}
	if app.Browser.Timezone != "" {
		opts.TimezoneId = playwright.String(app.Browser.Timezone)
	}
	if app.Storage.Export {
		if _, err := os.Stat(r.cfg.StorageStatePath); err == nil {
			opts.StorageStatePath = playwright.String(r.cfg.StorageStatePath)
		}
	}

	bctx, err := browser.NewContext(opts)
	if err != nil {
		_ = browser.Close()
		return nil, nil, fmt.Errorf("creating browser context: %w", err)
	}
	return browser, bctx, nil
}

// seedCookies loads the stored cookie set and applies the applicable
// records. A malformed or missing cookie file degrades to an empty set.
func (r *Runner) seedCookies(bctx playwright.BrowserContext) {
	app := r.cfg.App
	target, err := cookiepolicy.TargetFromURL(app.TargetURL)
	if err != nil {
		r.logger.Warn("Cannot derive cookie target", zap.Error(err))
		return
	}
	records, err := cookiepolicy.Load(app.Cookies.File)
	if err != nil {
		r.logger.Warn("Cookie file unusable, continuing without cookies", zap.Error(err))
		return
	}
	if len(records) == 0 {
		r.logger.Debug("No cookie records to seed")
		return
	}
	cookiepolicy.NewSeeder(r.logger).Seed(bctx, records, target)
}

// navigate performs the bounded navigation, the optional readiness wait,
// the login-token seeding, and the fingerprint observation.
func (r *Runner) navigate(ctx context.Context, page playwright.Page, pipeline *fingerprint.Pipeline) error {
	app := r.cfg.App
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := playwright.Float(float64(app.Navigation.Timeout.Milliseconds()))

	r.logger.Info("Navigating", zap.String("url", app.TargetURL))
	if _, err := page.Goto(app.TargetURL, playwright.PageGotoOptions{Timeout: timeout}); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if sel := app.Navigation.ReadySelector; sel != "" {
		if _, err := page.WaitForSelector(sel, playwright.PageWaitForSelectorOptions{Timeout: timeout}); err != nil {
			return fmt.Errorf("readiness wait for %q failed: %w", sel, err)
		}
	}
	if token := app.Auth.LoginToken; token != "" {
		if _, err := page.Evaluate(`(token) => { localStorage.token = token; }`, token); err != nil {
			r.logger.Warn("Login token seeding failed", zap.Error(err))
		}
	}
	if _, err := pipeline.Observe(ctx, page); err != nil {
		r.logger.Warn("Fingerprint observation failed", zap.Error(err))
	}
	return nil
}

// finalize always runs, even after a navigation failure: persist captured
// requests, optionally export storage state, and run the patch phase with
// whatever observation result was gathered.
func (r *Runner) finalize(bctx playwright.BrowserContext, recorder *capture.Recorder, pipeline *fingerprint.Pipeline, page playwright.Page) {
	app := r.cfg.App
	if err := recorder.Flush(r.cfg.ArtifactsDir); err != nil {
		r.logger.Warn("Failed to persist captured requests", zap.Error(err))
	}
	if app.Storage.Export {
		path := filepath.Join(r.cfg.ArtifactsDir, StorageStateFileName)
		if _, err := bctx.StorageState(path); err != nil {
			r.logger.Warn("Storage state export failed", zap.Error(err))
		} else {
			r.logger.Info("Storage state exported", zap.String("path", path))
		}
	}
	if page != nil {
		pipeline.Patch(page)
	}
}

// release closes the context and browser on every exit path. Close errors
// are logged and never re-raised.
func (r *Runner) release(browser playwright.Browser, bctx playwright.BrowserContext) {
	if err := bctx.Close(); err != nil {
		r.logger.Warn("Context close failed", zap.Error(err))
	}
	if err := browser.Close(); err != nil {
		r.logger.Warn("Browser close failed", zap.Error(err))
	}
	// Failed is sticky; a failed session still gets its resources released
	// but stays in its terminal state.
	if r.state != StateFailed {
		r.setState(StateClosed)
	}
}
