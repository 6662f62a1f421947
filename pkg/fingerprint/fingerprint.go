// Package fingerprint implements the observe-then-patch pipeline for the
// fingerprint-sensitive browser surfaces (graphics parameters, canvas
// export, audio buffer readback). The pipeline first installs passive
// probes that record which surfaces a page actually touches, then patches
// only the surfaces that were both observed in use and enabled in
// configuration. Patching unconditionally would itself be a tell; limiting
// patches to used surfaces keeps the pipeline's footprint minimal.
package fingerprint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/godsownf/sessiondiff/pkg/config"
)

// Surface identifies one fingerprint-sensitive browser API category.
type Surface string

const (
	SurfaceWebGL  Surface = "webgl"
	SurfaceCanvas Surface = "canvas"
	SurfaceAudio  Surface = "audio"
)

// State tracks the pipeline through its per-session lifecycle.
type State int

const (
	StateIdle State = iota
	StateObserving
	StatePatched
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateObserving:
		return "observing"
	case StatePatched:
		return "patched"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// UsageReport records which surfaces the page touched during the
// observation window. Produced once per session; read-only afterwards.
type UsageReport struct {
	WebGL  bool `json:"webgl"`
	Canvas bool `json:"canvas"`
	Audio  bool `json:"audio"`
}

// used reports whether the given surface appeared in the report.
func (r UsageReport) used(s Surface) bool {
	switch s {
	case SurfaceWebGL:
		return r.WebGL
	case SurfaceCanvas:
		return r.Canvas
	case SurfaceAudio:
		return r.Audio
	}
	return false
}

// probeParams crosses the control/browser boundary as structured data.
type probeParams struct {
	Detect              bool `json:"detect"`
	RemoveWebdriver     bool `json:"removeWebdriver"`
	HardwareConcurrency int  `json:"hardwareConcurrency"`
	DeviceMemory        int  `json:"deviceMemory"`
}

// patchDescriptor is one entry of the tagged-variant patch set: a fixed
// script plus the structured parameters it is invoked with.
type patchDescriptor struct {
	surface Surface
	script  string
	params  map[string]interface{}
}

// Pipeline drives the observe-then-patch protocol for one session. It is
// owned by a single session runner and is not safe for concurrent use.
type Pipeline struct {
	cfg     config.FingerprintConfig
	logger  *zap.Logger
	state   State
	report  *UsageReport
	patched map[Surface]bool
}

// NewPipeline creates an idle pipeline for one session.
func NewPipeline(cfg config.FingerprintConfig, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:     cfg,
		logger:  logger,
		state:   StateIdle,
		patched: make(map[Surface]bool),
	}
}

// State returns the pipeline's current lifecycle state.
func (p *Pipeline) State() State { return p.state }

// Report returns the usage report, or nil before observation completes.
func (p *Pipeline) Report() *UsageReport { return p.report }

// InstallProbes registers the probe init script on the context so it runs
// before any page script on every navigation. Must be called before the
// first navigation. Moves the pipeline from Idle to Observing.
func (p *Pipeline) InstallProbes(bctx playwright.BrowserContext) error {
	if p.state != StateIdle {
		return fmt.Errorf("probes already installed (state %s)", p.state)
	}
	params := probeParams{
		Detect:              p.cfg.Detect,
		RemoveWebdriver:     p.cfg.RemoveWebdriver,
		HardwareConcurrency: p.cfg.HardwareConcurrency,
		DeviceMemory:        p.cfg.DeviceMemory,
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding probe parameters: %w", err)
	}
	// Init scripts take no arguments, so the parameter object is attached
	// by applying the fixed script function to its JSON-encoded form.
	script := fmt.Sprintf("(%s)(%s);", probeScript, encoded)
	if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(script)}); err != nil {
		return fmt.Errorf("installing fingerprint probes: %w", err)
	}
	p.state = StateObserving
	p.logger.Debug("Fingerprint probes installed", zap.Bool("detect", p.cfg.Detect))
	return nil
}

// Observe waits out the observation window and reads the usage report back
// from the page. The report is produced exactly once; a second call returns
// the stored report without touching the page again.
func (p *Pipeline) Observe(ctx context.Context, page playwright.Page) (UsageReport, error) {
	if p.report != nil {
		return *p.report, nil
	}
	if p.state != StateObserving {
		return UsageReport{}, fmt.Errorf("cannot observe in state %s", p.state)
	}

	window := p.cfg.ObservationWindow
	if window > 0 {
		select {
		case <-time.After(window):
		case <-ctx.Done():
			return UsageReport{}, ctx.Err()
		}
	}

	report := UsageReport{}
	if p.cfg.Detect {
		result, err := page.Evaluate(usageReadbackScript)
		if err != nil {
			return UsageReport{}, fmt.Errorf("reading fingerprint usage: %w", err)
		}
		report = decodeReport(result)
	}
	p.report = &report
	p.logger.Info("Fingerprint surfaces observed",
		zap.Bool("webgl", report.WebGL),
		zap.Bool("canvas", report.Canvas),
		zap.Bool("audio", report.Audio))
	return report, nil
}

func decodeReport(result interface{}) UsageReport {
	report := UsageReport{}
	m, ok := result.(map[string]interface{})
	if !ok {
		return report
	}
	report.WebGL, _ = m["webgl"].(bool)
	report.Canvas, _ = m["canvas"].(bool)
	report.Audio, _ = m["audio"].(bool)
	return report
}

// Patch installs overrides for every surface that was observed in use and
// has its toggle enabled. A failure on one surface is logged and does not
// block the others; each surface is patched at most once per session.
// Moves the pipeline to Patched.
func (p *Pipeline) Patch(page playwright.Page) {
	if p.report == nil {
		p.logger.Debug("No usage report gathered, skipping patch phase")
		return
	}
	for _, d := range p.descriptors(*p.report) {
		if p.patched[d.surface] {
			continue
		}
		p.patched[d.surface] = true
		if _, err := page.Evaluate(d.script, d.params); err != nil {
			p.logger.Warn("Failed to install fingerprint patch",
				zap.String("surface", string(d.surface)), zap.Error(err))
			continue
		}
		p.logger.Debug("Fingerprint patch installed", zap.String("surface", string(d.surface)))
	}
	p.state = StatePatched
}

// descriptors returns the patch set for the report: only surfaces whose
// usage flag is true and whose configuration toggle is enabled.
func (p *Pipeline) descriptors(report UsageReport) []patchDescriptor {
	var out []patchDescriptor
	if report.used(SurfaceWebGL) && p.cfg.SpoofWebGL {
		out = append(out, patchDescriptor{
			surface: SurfaceWebGL,
			script:  webglPatchScript,
			params: map[string]interface{}{
				"vendor":   p.cfg.WebGLVendor,
				"renderer": p.cfg.WebGLRenderer,
			},
		})
	}
	if report.used(SurfaceCanvas) && p.cfg.SpoofCanvas {
		out = append(out, patchDescriptor{
			surface: SurfaceCanvas,
			script:  canvasPatchScript,
			params:  map[string]interface{}{"alpha": 0.999999},
		})
	}
	if report.used(SurfaceAudio) && p.cfg.SpoofAudio {
		out = append(out, patchDescriptor{
			surface: SurfaceAudio,
			script:  audioPatchScript,
			params:  map[string]interface{}{"interval": 100, "offset": 1e-7},
		})
	}
	return out
}
