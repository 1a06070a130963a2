package engine

import (
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// VersionCache memoises the helper's reported version behind a single
// mutual-exclusion guard, mirroring the original adapter's static-lock
// one-shot version probe; singleflight additionally collapses concurrent
// first-callers into one exec instead of only deduplicating storage.
type VersionCache struct {
	group singleflight.Group
	mu    sync.RWMutex
	value string
	path  string
}

// NewVersionCache builds a version cache for the helper at helperPath.
func NewVersionCache(helperPath string) *VersionCache {
	return &VersionCache{path: helperPath}
}

// Version returns the cached helper version string, probing it via
// `helper --version` at most once regardless of concurrent callers.
func (v *VersionCache) Version() (string, error) {
	v.mu.RLock()
	if v.value != "" {
		defer v.mu.RUnlock()
		return v.value, nil
	}
	v.mu.RUnlock()

	out, err, _ := v.group.Do("version", func() (any, error) {
		cmd := exec.Command(v.path, "--version")
		raw, err := cmd.Output()
		if err != nil {
			return "", err
		}
		return firstLine(string(raw)), nil
	})
	if err != nil {
		return "", err
	}

	s := out.(string)
	v.mu.Lock()
	v.value = s
	v.mu.Unlock()
	return s, nil
}

// Invalidate clears the cached version, used when a filesystem watch
// observes the helper binary changing on disk.
func (v *VersionCache) Invalidate() {
	v.mu.Lock()
	v.value = ""
	v.mu.Unlock()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
