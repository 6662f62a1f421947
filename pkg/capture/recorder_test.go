package capture

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRecorder(t *testing.T) {
	t.Run("accept language becomes an extra header", func(t *testing.T) {
		r := NewRecorder(RecorderConfig{AcceptLanguage: "en-US,en;q=0.9"}, zap.NewNop())
		assert.Equal(t, "en-US,en;q=0.9", r.extraHeaders["Accept-Language"])
	})

	t.Run("custom header bag merges in", func(t *testing.T) {
		r := NewRecorder(RecorderConfig{
			AcceptLanguage: "en-US",
			CustomHeaders:  `{"X-Trace": "abc", "X-Env": "staging"}`,
		}, zap.NewNop())
		assert.Len(t, r.extraHeaders, 3)
		assert.Equal(t, "abc", r.extraHeaders["X-Trace"])
	})

	t.Run("malformed header bag degrades to none", func(t *testing.T) {
		r := NewRecorder(RecorderConfig{
			AcceptLanguage: "en-US",
			CustomHeaders:  `{not json`,
		}, zap.NewNop())
		assert.Len(t, r.extraHeaders, 1)
	})

	t.Run("invalid glob pattern is dropped", func(t *testing.T) {
		r := NewRecorder(RecorderConfig{Include: []string{"https://**", "[bad"}}, zap.NewNop())
		assert.Len(t, r.include, 1)
	})
}

func TestRecorderFilters(t *testing.T) {
	req := func(url string) Request {
		return Normalize(url, "GET", nil, "")
	}

	t.Run("no patterns records everything", func(t *testing.T) {
		r := NewRecorder(RecorderConfig{}, zap.NewNop())
		r.Record(req("https://example.com/a"))
		r.Record(req("https://tracker.invalid/pixel"))
		assert.Len(t, r.Requests(), 2)
	})

	t.Run("include restricts recording", func(t *testing.T) {
		r := NewRecorder(RecorderConfig{Include: []string{"https://example.com/**"}}, zap.NewNop())
		r.Record(req("https://example.com/a"))
		r.Record(req("https://other.invalid/b"))
		requests := r.Requests()
		require.Len(t, requests, 1)
		assert.Equal(t, "https://example.com/a", requests[0].URL)
	})

	t.Run("exclude wins over include", func(t *testing.T) {
		r := NewRecorder(RecorderConfig{
			Include: []string{"https://example.com/**"},
			Exclude: []string{"*/pixel*"},
		}, zap.NewNop())
		r.Record(req("https://example.com/pixel.gif"))
		r.Record(req("https://example.com/app.js"))
		requests := r.Requests()
		require.Len(t, requests, 1)
		assert.Equal(t, "https://example.com/app.js", requests[0].URL)
	})
}

func TestRecorderBuffer(t *testing.T) {
	t.Run("preserves arrival order", func(t *testing.T) {
		r := NewRecorder(RecorderConfig{}, zap.NewNop())
		r.Record(Normalize("https://example.com/1", "GET", nil, ""))
		r.Record(Normalize("https://example.com/2", "GET", nil, ""))
		r.Record(Normalize("https://example.com/3", "GET", nil, ""))

		requests := r.Requests()
		require.Len(t, requests, 3)
		assert.Equal(t, "https://example.com/1", requests[0].URL)
		assert.Equal(t, "https://example.com/3", requests[2].URL)
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		r := NewRecorder(RecorderConfig{}, zap.NewNop())
		r.Record(Normalize("https://example.com/1", "GET", nil, ""))
		first := r.Requests()
		first[0].URL = "mutated"
		assert.Equal(t, "https://example.com/1", r.Requests()[0].URL)
	})

	t.Run("flush writes the capture artifact", func(t *testing.T) {
		dir := t.TempDir()
		r := NewRecorder(RecorderConfig{}, zap.NewNop())
		r.Record(Normalize("https://example.com/1", "GET", nil, ""))
		require.NoError(t, r.Flush(dir))

		loaded, err := LoadRequests(filepath.Join(dir, RequestsFileName))
		require.NoError(t, err)
		assert.Len(t, loaded, 1)
	})
}
