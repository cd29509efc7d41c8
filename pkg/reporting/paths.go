package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPathManager implements path management functionality
type DefaultPathManager struct {
	root string
}

// NewDefaultPathManager creates a path manager rooted at root ("results" when empty)
func NewDefaultPathManager(root string) *DefaultPathManager {
	if strings.TrimSpace(root) == "" {
		root = "results"
	}
	return &DefaultPathManager{root: root}
}

// GetDefaultOutputDir returns {root}/{LABEL}_{interval}
func (p *DefaultPathManager) GetDefaultOutputDir(label, interval string) string {
	s := strings.ToUpper(strings.TrimSpace(label))
	i := strings.ToLower(strings.TrimSpace(interval))
	if s == "" {
		s = "UNKNOWN"
	}
	if i == "" {
		i = "unknown"
	}
	return filepath.Join(p.root, fmt.Sprintf("%s_%s", s, i))
}

// EnsureDirectoryExists creates the parent directory of path
func (p *DefaultPathManager) EnsureDirectoryExists(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// DefaultOutputDir is the package-level convenience over the default root
func DefaultOutputDir(label, interval string) string {
	return NewDefaultPathManager("").GetDefaultOutputDir(label, interval)
}
