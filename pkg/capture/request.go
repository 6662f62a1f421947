// Package capture normalizes intercepted network requests into canonical
// records, fingerprints them by content, and computes symmetric diffs
// between two captured sequences.
package capture

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HashLen is the number of hex characters kept from the sha256 digest when
// fingerprinting a request. 48 bits keeps the collision probability
// negligible for realistic capture volumes (well under 10^-6 at tens of
// thousands of requests); raise it for bigger runs rather than relying on
// the full digest.
const HashLen = 12

// RequestsFileName is the per-session capture artifact.
const RequestsFileName = "requests.json"

// Request is the canonical record of one intercepted request. Header keys
// are lowercased at construction so hashing is case-insensitive within a
// header set; instances are never mutated after creation.
type Request struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// Normalize builds the canonical record for an intercepted request.
func Normalize(url, method string, headers map[string]string, body string) Request {
	normalized := make(map[string]string, len(headers))
	for k, v := range headers {
		normalized[strings.ToLower(k)] = v
	}
	return Request{URL: url, Method: method, Headers: normalized, Body: body}
}

// Fingerprint returns the truncated content hash of the request. The JSON
// encoder emits map keys in sorted order, which gives the canonical form
// the hash needs without a separate canonicalization pass.
func Fingerprint(r Request) string {
	canonical, err := json.Marshal(r)
	if err != nil {
		// A Request is plain strings and a string map; Marshal cannot fail.
		panic(fmt.Sprintf("capture: marshaling request: %v", err))
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:HashLen]
}

// Result holds the outcome of diffing two capture sequences.
type Result struct {
	Added   []Request `json:"added"`
	Removed []Request `json:"removed"`
}

// Diff computes the set-symmetric difference between two capture sequences,
// keyed by content fingerprint rather than sequence position. Reordering
// without content change yields an empty diff; Diff(a, a) is always empty;
// Diff(a, b).Added equals Diff(b, a).Removed.
func Diff(a, b []Request) Result {
	hashesA := fingerprintSet(a)
	hashesB := fingerprintSet(b)

	result := Result{Added: []Request{}, Removed: []Request{}}
	seen := make(map[string]bool)
	for _, r := range b {
		h := Fingerprint(r)
		if !hashesA[h] && !seen[h] {
			result.Added = append(result.Added, r)
			seen[h] = true
		}
	}
	seen = make(map[string]bool)
	for _, r := range a {
		h := Fingerprint(r)
		if !hashesB[h] && !seen[h] {
			result.Removed = append(result.Removed, r)
			seen[h] = true
		}
	}
	return result
}

func fingerprintSet(requests []Request) map[string]bool {
	set := make(map[string]bool, len(requests))
	for _, r := range requests {
		set[Fingerprint(r)] = true
	}
	return set
}

// WriteRequests persists a capture sequence as a JSON array under dir.
func WriteRequests(dir string, requests []Request) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating capture dir %s: %w", dir, err)
	}
	if requests == nil {
		requests = []Request{}
	}
	data, err := json.MarshalIndent(requests, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding captured requests: %w", err)
	}
	path := filepath.Join(dir, RequestsFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// LoadRequests reads a previously written capture sequence for offline
// diffing.
func LoadRequests(path string) ([]Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading capture file %s: %w", path, err)
	}
	var requests []Request
	if err := json.Unmarshal(data, &requests); err != nil {
		return nil, fmt.Errorf("parsing capture file %s: %w", path, err)
	}
	return requests, nil
}
