package cookiepolicy

import (
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// Report summarizes one batch of cookie applications against a target.
type Report struct {
	Applied int
	Skipped int
}

// Seeder applies a stored cookie set to a live browser context.
type Seeder struct {
	logger *zap.Logger
}

// NewSeeder creates a Seeder. A nil logger is replaced with a no-op logger.
func NewSeeder(logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{logger: logger}
}

// Seed applies every applicable record to the browser context, one at a
// time so a single rejected cookie cannot abort the batch. Records that
// fail the policy check or are rejected by the browser count as skipped.
// Each record is applied at most once.
func (s *Seeder) Seed(bctx playwright.BrowserContext, records []Record, target Target) Report {
	var report Report
	for _, c := range records {
		if !Applies(c, target) {
			report.Skipped++
			continue
		}
		if c.SameSite != "" {
			s.logger.Debug("Dropping sameSite attribute before seeding",
				zap.String("cookie", c.Name), zap.String("same_site", c.SameSite))
		}
		if err := bctx.AddCookies([]playwright.OptionalCookie{toOptionalCookie(c)}); err != nil {
			s.logger.Debug("Browser rejected cookie",
				zap.String("cookie", c.Name), zap.Error(err))
			report.Skipped++
			continue
		}
		report.Applied++
	}
	s.logger.Info("Cookies applied",
		zap.Int("applied", report.Applied), zap.Int("skipped", report.Skipped))
	return report
}

// toOptionalCookie converts a record for the browser API. SameSite is
// deliberately not carried over.
func toOptionalCookie(c Record) playwright.OptionalCookie {
	path := c.Path
	if path == "" {
		path = "/"
	}
	return playwright.OptionalCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   playwright.String(c.Domain),
		Path:     playwright.String(path),
		Secure:   playwright.Bool(c.Secure),
		HttpOnly: playwright.Bool(c.HTTPOnly),
	}
}
