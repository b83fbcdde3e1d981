package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Options configures the file watcher.
type Options struct {
	// IgnorePatterns are matched against the base name. Nil selects editor and OS junk defaults.
	IgnorePatterns []string
	// SettleDelay is how long a file must stay unchanged before an event fires.
	SettleDelay  time.Duration
	IgnoreHidden bool
}

func (o *Options) setDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = 100 * time.Millisecond
	}

	// Explicitly empty patterns keep the caller's IgnoreHidden choice.
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{
			".DS_Store",
			"Thumbs.db",
			"*.tmp",
			"*.swp",
			"*~",
		}
		o.IgnoreHidden = true
	}
}

func (o *Options) shouldIgnore(path string) bool {
	if o.IgnoreHidden {
		for _, part := range strings.Split(filepath.Clean(path), string(filepath.Separator)) {
			if strings.HasPrefix(part, ".") && part != "." && part != ".." {
				return true
			}
		}
	}

	base := filepath.Base(path)
	for _, pattern := range o.IgnorePatterns {
		if matched, err := filepath.Match(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}
