package capture

import (
	"encoding/json"
	"sync"

	"github.com/gobwas/glob"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// RecorderConfig controls header injection and what gets recorded.
type RecorderConfig struct {
	// AcceptLanguage, when set, is injected into every outgoing request.
	AcceptLanguage string
	// CustomHeaders is a JSON object of header name to value. A parse
	// failure is logged and treated as no additional headers.
	CustomHeaders string
	// Include/Exclude are glob patterns over request URLs. An empty include
	// list records everything; exclude wins over include. Invalid patterns
	// are logged and dropped.
	Include []string
	Exclude []string
}

// Recorder intercepts a browser context's outgoing requests, injects the
// configured headers, and appends normalized records to a session-scoped
// ordered buffer. One Recorder belongs to exactly one session.
type Recorder struct {
	logger       *zap.Logger
	extraHeaders map[string]string
	include      []glob.Glob
	exclude      []glob.Glob

	mu       sync.Mutex
	requests []Request
}

// NewRecorder builds a Recorder from its configuration. Malformed header
// bags and invalid glob patterns degrade with a warning rather than failing
// the session.
func NewRecorder(cfg RecorderConfig, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		logger:       logger,
		extraHeaders: make(map[string]string),
		requests:     make([]Request, 0),
	}
	if cfg.AcceptLanguage != "" {
		r.extraHeaders["Accept-Language"] = cfg.AcceptLanguage
	}
	if cfg.CustomHeaders != "" {
		var bag map[string]string
		if err := json.Unmarshal([]byte(cfg.CustomHeaders), &bag); err != nil {
			logger.Warn("Custom header bag is not valid JSON, ignoring", zap.Error(err))
		} else {
			for k, v := range bag {
				r.extraHeaders[k] = v
			}
		}
	}
	r.include = compilePatterns(cfg.Include, logger)
	r.exclude = compilePatterns(cfg.Exclude, logger)
	return r
}

func compilePatterns(patterns []string, logger *zap.Logger) []glob.Glob {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			logger.Warn("Invalid capture pattern, dropping", zap.String("pattern", p), zap.Error(err))
			continue
		}
		compiled = append(compiled, g)
	}
	return compiled
}

// Install hooks the recorder into the browser context. Must be called
// before the first navigation so the first request is already intercepted.
func (r *Recorder) Install(bctx playwright.BrowserContext) error {
	bctx.OnRequest(func(req playwright.Request) {
		headers, err := req.AllHeaders()
		if err != nil {
			r.logger.Debug("Could not read request headers", zap.String("url", req.URL()), zap.Error(err))
			headers = map[string]string{}
		}
		body := ""
		if data, err := req.PostData(); err == nil {
			body = data
		}
		r.Record(Normalize(req.URL(), req.Method(), headers, body))
	})

	if len(r.extraHeaders) == 0 {
		return nil
	}
	return bctx.Route("**/*", func(route playwright.Route) {
		headers, err := route.Request().AllHeaders()
		if err != nil {
			headers = map[string]string{}
		}
		merged := make(map[string]string, len(headers)+len(r.extraHeaders))
		for k, v := range headers {
			merged[k] = v
		}
		for k, v := range r.extraHeaders {
			merged[k] = v
		}
		if err := route.Continue(playwright.RouteContinueOptions{Headers: merged}); err != nil {
			r.logger.Debug("Route continue failed", zap.String("url", route.Request().URL()), zap.Error(err))
		}
	})
}

// Record appends a request to the buffer if it passes the URL filters.
func (r *Recorder) Record(req Request) {
	if !r.matches(req.URL) {
		return
	}
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
}

func (r *Recorder) matches(url string) bool {
	for _, g := range r.exclude {
		if g.Match(url) {
			return false
		}
	}
	if len(r.include) == 0 {
		return true
	}
	for _, g := range r.include {
		if g.Match(url) {
			return true
		}
	}
	return false
}

// Requests returns a copy of the capture buffer in arrival order.
func (r *Recorder) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Request, len(r.requests))
	copy(out, r.requests)
	return out
}

// Flush writes the buffered requests to dir as the session's capture
// artifact.
func (r *Recorder) Flush(dir string) error {
	return WriteRequests(dir, r.Requests())
}
