package cookiepolicy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainMatch(t *testing.T) {
	target := Target{Scheme: "https", Host: "example.com", Path: "/"}

	t.Run("exact host matches", func(t *testing.T) {
		assert.True(t, Applies(Record{Name: "a", Domain: "example.com"}, target))
	})

	t.Run("leading dot is stripped", func(t *testing.T) {
		assert.True(t, Applies(Record{Name: "a", Domain: ".example.com"}, target))
	})

	t.Run("strict subdomain matches", func(t *testing.T) {
		sub := Target{Scheme: "https", Host: "www.example.com", Path: "/"}
		assert.True(t, Applies(Record{Name: "a", Domain: "example.com"}, sub))
	})

	t.Run("suffix without dot boundary does not match", func(t *testing.T) {
		other := Target{Scheme: "https", Host: "notexample.com", Path: "/"}
		assert.False(t, Applies(Record{Name: "a", Domain: "example.com"}, other))
	})

	t.Run("empty domain fails closed", func(t *testing.T) {
		assert.False(t, Applies(Record{Name: "a"}, target))
	})

	t.Run("case insensitive", func(t *testing.T) {
		upper := Target{Scheme: "https", Host: "WWW.Example.COM", Path: "/"}
		assert.True(t, Applies(Record{Name: "a", Domain: ".EXAMPLE.com"}, upper))
	})
}

func TestPathMatch(t *testing.T) {
	base := Record{Name: "a", Domain: "example.com"}

	t.Run("empty cookie path matches everything", func(t *testing.T) {
		target := Target{Scheme: "https", Host: "example.com", Path: "/anything/at/all"}
		assert.True(t, Applies(base, target))
	})

	t.Run("prefix match succeeds", func(t *testing.T) {
		c := base
		c.Path = "/api"
		target := Target{Scheme: "https", Host: "example.com", Path: "/api/v2/x"}
		assert.True(t, Applies(c, target))
	})

	t.Run("exact path matches", func(t *testing.T) {
		c := base
		c.Path = "/api"
		target := Target{Scheme: "https", Host: "example.com", Path: "/api"}
		assert.True(t, Applies(c, target))
	})

	t.Run("non prefix fails", func(t *testing.T) {
		c := base
		c.Path = "/api"
		target := Target{Scheme: "https", Host: "example.com", Path: "/apx"}
		assert.False(t, Applies(c, target))
	})

	t.Run("prefix without segment boundary fails", func(t *testing.T) {
		c := base
		c.Path = "/api"
		target := Target{Scheme: "https", Host: "example.com", Path: "/apiextra"}
		assert.False(t, Applies(c, target))
	})

	t.Run("trailing slash cookie path matches its subtree", func(t *testing.T) {
		c := base
		c.Path = "/api/"
		target := Target{Scheme: "https", Host: "example.com", Path: "/api/v2"}
		assert.True(t, Applies(c, target))
	})

	t.Run("missing leading slash is added", func(t *testing.T) {
		c := base
		c.Path = "api"
		target := Target{Scheme: "https", Host: "example.com", Path: "/api/v2"}
		assert.True(t, Applies(c, target))
	})
}

func TestSecureMatch(t *testing.T) {
	c := Record{Name: "a", Domain: "example.com", Secure: true}

	t.Run("secure cookie rejected on http", func(t *testing.T) {
		target := Target{Scheme: "http", Host: "example.com", Path: "/"}
		assert.False(t, Applies(c, target))
	})

	t.Run("secure cookie accepted on https", func(t *testing.T) {
		target := Target{Scheme: "https", Host: "example.com", Path: "/"}
		assert.True(t, Applies(c, target))
	})
}

func TestTargetFromURL(t *testing.T) {
	t.Run("derives scheme host and path", func(t *testing.T) {
		target, err := TargetFromURL("https://example.com/api/v2?x=1")
		require.NoError(t, err)
		assert.Equal(t, Target{Scheme: "https", Host: "example.com", Path: "/api/v2"}, target)
	})

	t.Run("empty path becomes root", func(t *testing.T) {
		target, err := TargetFromURL("https://example.com")
		require.NoError(t, err)
		assert.Equal(t, "/", target.Path)
	})

	t.Run("hostless URL is rejected", func(t *testing.T) {
		_, err := TargetFromURL("not a url")
		assert.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	t.Run("missing file yields empty set", func(t *testing.T) {
		records, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cookies.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("valid file parses and keeps sameSite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cookies.json")
		data := `[{"name":"sid","value":"abc","domain":".example.com","path":"/","secure":true,"httpOnly":true,"sameSite":"Lax"}]`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		records, err := Load(path)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "sid", records[0].Name)
		assert.Equal(t, "Lax", records[0].SameSite)
		assert.True(t, records[0].Secure)
	})
}
