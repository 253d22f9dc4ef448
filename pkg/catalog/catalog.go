// Package catalog ships the builtin reply templates embedded in the
// binary. Organizations see them merged into their template list under
// stable "builtin:" IDs; they cannot be edited or deleted.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"teamhub-backend/pkg/models"
)

//go:embed templates.yaml
var templatesYAML []byte

type catalogFile struct {
	Templates []catalogEntry `yaml:"templates"`
}

type catalogEntry struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

var (
	loadOnce sync.Once
	loaded   []models.MessageTemplate
	loadErr  error
)

// Builtin returns the embedded templates. The slice is shared; callers
// must not mutate it.
func Builtin() ([]models.MessageTemplate, error) {
	loadOnce.Do(func() {
		var file catalogFile
		if err := yaml.Unmarshal(templatesYAML, &file); err != nil {
			loadErr = fmt.Errorf("failed to parse builtin template catalog: %w", err)
			return
		}

		seen := make(map[string]bool, len(file.Templates))
		for _, entry := range file.Templates {
			if entry.ID == "" || entry.Name == "" || entry.Body == "" {
				loadErr = fmt.Errorf("builtin template %q is missing required fields", entry.ID)
				return
			}
			if seen[entry.ID] {
				loadErr = fmt.Errorf("duplicate builtin template id %q", entry.ID)
				return
			}
			seen[entry.ID] = true

			loaded = append(loaded, models.MessageTemplate{
				ID:      "builtin:" + entry.ID,
				Name:    entry.Name,
				Subject: entry.Subject,
				Body:    entry.Body,
				Builtin: true,
			})
		}
	})
	return loaded, loadErr
}
