package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// HostPolicy is a flat key to value override set loaded from a per-host
// policy file. Keys use the same dotted names as the configuration surface
// (e.g. "browser.user_agent", "fingerprint.spoof_canvas").
type HostPolicy map[string]interface{}

// LoadHostPolicy reads <dir>/<host>.json. A missing file is not an error and
// yields a nil policy; a malformed file is an error so the caller can log it
// and continue with the base configuration.
func LoadHostPolicy(dir, host string) (HostPolicy, error) {
	if dir == "" || host == "" {
		return nil, nil
	}
	path := filepath.Join(dir, host+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading policy file %s: %w", path, err)
	}
	var policy HostPolicy
	if err := json.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("parsing policy file %s: %w", path, err)
	}
	return policy, nil
}

// ForHost returns a copy of the configuration with the policy overrides
// applied. The receiver is never mutated, so concurrent sessions targeting
// different hosts cannot cross-contaminate each other's effective
// configuration. Unknown keys are collected and returned so the caller can
// log them.
func (c Config) ForHost(policy HostPolicy) (Config, []string) {
	if len(policy) == 0 {
		return c, nil
	}
	var unknown []string
	for key, raw := range policy {
		if !c.applyOverride(strings.ToLower(key), raw) {
			unknown = append(unknown, key)
		}
	}
	return c, unknown
}

// applyOverride sets a single policy key on the copy. Returns false for keys
// outside the documented override surface.
func (c *Config) applyOverride(key string, raw interface{}) bool {
	switch key {
	case "browser.headless":
		c.Browser.Headless = asBool(raw, c.Browser.Headless)
	case "browser.viewport_width":
		c.Browser.ViewportWidth = asInt(raw, c.Browser.ViewportWidth)
	case "browser.viewport_height":
		c.Browser.ViewportHeight = asInt(raw, c.Browser.ViewportHeight)
	case "browser.user_agent":
		c.Browser.UserAgent = asString(raw, c.Browser.UserAgent)
	case "browser.locale":
		c.Browser.Locale = asString(raw, c.Browser.Locale)
	case "browser.timezone":
		c.Browser.Timezone = asString(raw, c.Browser.Timezone)
	case "browser.device_scale_factor":
		c.Browser.DeviceScaleFactor = asFloat(raw, c.Browser.DeviceScaleFactor)
	case "browser.is_mobile":
		c.Browser.IsMobile = asBool(raw, c.Browser.IsMobile)
	case "browser.has_touch":
		c.Browser.HasTouch = asBool(raw, c.Browser.HasTouch)
	case "navigation.timeout":
		c.Navigation.Timeout = asDuration(raw, c.Navigation.Timeout)
	case "navigation.ready_selector":
		c.Navigation.ReadySelector = asString(raw, c.Navigation.ReadySelector)
	case "capture.accept_language":
		c.Capture.AcceptLanguage = asString(raw, c.Capture.AcceptLanguage)
	case "capture.custom_headers":
		c.Capture.CustomHeaders = asString(raw, c.Capture.CustomHeaders)
	case "fingerprint.detect":
		c.Fingerprint.Detect = asBool(raw, c.Fingerprint.Detect)
	case "fingerprint.spoof_webgl":
		c.Fingerprint.SpoofWebGL = asBool(raw, c.Fingerprint.SpoofWebGL)
	case "fingerprint.spoof_canvas":
		c.Fingerprint.SpoofCanvas = asBool(raw, c.Fingerprint.SpoofCanvas)
	case "fingerprint.spoof_audio":
		c.Fingerprint.SpoofAudio = asBool(raw, c.Fingerprint.SpoofAudio)
	case "fingerprint.webgl_vendor":
		c.Fingerprint.WebGLVendor = asString(raw, c.Fingerprint.WebGLVendor)
	case "fingerprint.webgl_renderer":
		c.Fingerprint.WebGLRenderer = asString(raw, c.Fingerprint.WebGLRenderer)
	case "fingerprint.remove_webdriver":
		c.Fingerprint.RemoveWebdriver = asBool(raw, c.Fingerprint.RemoveWebdriver)
	case "fingerprint.hardware_concurrency":
		c.Fingerprint.HardwareConcurrency = asInt(raw, c.Fingerprint.HardwareConcurrency)
	case "fingerprint.device_memory":
		c.Fingerprint.DeviceMemory = asInt(raw, c.Fingerprint.DeviceMemory)
	case "cookies.file":
		c.Cookies.File = asString(raw, c.Cookies.File)
	case "storage.export":
		c.Storage.Export = asBool(raw, c.Storage.Export)
	case "auth.login_token":
		c.Auth.LoginToken = asString(raw, c.Auth.LoginToken)
	default:
		return false
	}
	return true
}

// JSON policy values arrive as string, bool or float64; the helpers coerce
// them to the target type and fall back to the current value on a mismatch.

func asString(raw interface{}, fallback string) string {
	if s, ok := raw.(string); ok {
		return s
	}
	return fallback
}

func asBool(raw interface{}, fallback bool) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	case float64:
		return v != 0
	}
	return fallback
}

func asInt(raw interface{}, fallback int) int {
	switch v := raw.(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func asFloat(raw interface{}, fallback float64) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func asDuration(raw interface{}, fallback time.Duration) time.Duration {
	switch v := raw.(type) {
	case float64:
		// Bare numbers are seconds.
		return time.Duration(v * float64(time.Second))
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
