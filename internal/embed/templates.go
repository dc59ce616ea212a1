// Package embed carries starter files written by `dreamlog init`.
package embed

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed templates/dreamlog.yaml
var templatesFS embed.FS

// Template represents a starter file to be written
type Template struct {
	Path    string
	Content []byte
	Mode    os.FileMode
}

// GetTemplates returns the starter files written during init
func GetTemplates() ([]Template, error) {
	content, err := templatesFS.ReadFile("templates/dreamlog.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded template: %w", err)
	}
	return []Template{
		{Path: "dreamlog.yaml", Content: content, Mode: 0644},
	}, nil
}

// WriteTemplates writes the starter files that do not already exist
// under dir. Returns the paths written.
func WriteTemplates(dir string) ([]string, error) {
	templates, err := GetTemplates()
	if err != nil {
		return nil, err
	}

	var written []string
	for _, tpl := range templates {
		path := filepath.Join(dir, tpl.Path)
		if _, err := os.Stat(path); err == nil {
			continue // never overwrite an existing config
		}
		if err := os.WriteFile(path, tpl.Content, tpl.Mode); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
