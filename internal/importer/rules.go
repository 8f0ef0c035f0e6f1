package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules maps drop-directory locations to vault folders. Files dropped at
// the root import into DefaultFolder; files dropped inside a named
// subdirectory import into that subdirectory's folder.
type Rules struct {
	// DefaultFolder is the vault folder ID for files dropped at the drop
	// directory root. Empty means the vault root.
	DefaultFolder string `yaml:"default_folder"`

	// Subdirs maps a top-level subdirectory name to a vault folder ID.
	Subdirs map[string]string `yaml:"subdirs"`

	// Ignore lists glob patterns (matched against the base name) that are
	// never imported.
	Ignore []string `yaml:"ignore"`
}

// LoadRules reads an import rules file. A missing path returns empty
// rules rather than an error so the importer works without configuration.
func LoadRules(path string) (Rules, error) {
	var rules Rules

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}

		return rules, fmt.Errorf("reading import rules: %w", err)
	}

	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("parsing import rules: %w", err)
	}

	return rules, nil
}

// TargetFolder resolves the vault folder for a path relative to the drop
// directory.
func (r Rules) TargetFolder(relPath string) string {
	parts := strings.SplitN(filepath.ToSlash(relPath), "/", 2)
	if len(parts) == 2 {
		if folder, ok := r.Subdirs[parts[0]]; ok {
			return folder
		}
	}

	return r.DefaultFolder
}

// Ignored reports whether a base name matches one of the ignore patterns.
func (r Rules) Ignored(base string) bool {
	for _, pattern := range r.Ignore {
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
	}

	return false
}
