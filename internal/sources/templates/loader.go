// Package templates loads the notification template catalog from a YAML file.
package templates

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fieldops/scheduler/internal/dispatch"
)

// Loader handles loading and parsing of templates.yaml
type Loader struct {
	filePath string
}

// NewLoader creates a new template loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads and parses the templates file
func (l *Loader) Load() (CatalogConfig, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return CatalogConfig{}, fmt.Errorf("failed to read templates file: %w", err)
	}

	var config CatalogConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return CatalogConfig{}, fmt.Errorf("failed to parse templates yaml: %w", err)
	}

	return config, nil
}

// MapTemplates converts the parsed config into catalog entries keyed by
// type and locale. Entries without a type or without both subject and body
// are skipped.
func MapTemplates(config CatalogConfig) map[string]dispatch.Template {
	entries := make(map[string]dispatch.Template, len(config.Templates))
	for _, props := range config.Templates {
		if props.Type == "" {
			continue
		}
		if props.Subject == "" && props.Body == "" {
			continue
		}
		entries[dispatch.Key(props.Type, props.Locale)] = dispatch.Template{
			Subject: props.Subject,
			Body:    props.Body,
		}
	}
	return entries
}
