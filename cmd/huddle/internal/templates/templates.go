// Package templates provides the embedded starter configs for `huddle init`.
package templates

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/germanamz/huddle/pkg/engine"
)

//go:embed settings/*.yaml
var templateFS embed.FS

// ConfigFile is the file name Apply writes.
const ConfigFile = "huddle.yaml"

// EnvFile is the dotenv file Apply seeds when absent.
const EnvFile = ".env"

const envExample = "# Variables referenced as ${NAME} in huddle.yaml are read from here.\nOPENAI_API_KEY=\n"

// Meta holds display metadata for a template.
type Meta struct {
	Name        string
	Description string
}

var catalog = []Meta{
	{Name: "groupchat", Description: "User proxy, product manager and coder in a group chat; MemGPT coder with use_memory."},
	{Name: "pair", Description: "Assistant and a user proxy that runs its code until TERMINATE."},
}

// Template is a starter config with its metadata.
type Template struct {
	Meta Meta
	Data []byte
}

// Config parses the template into an engine.Config.
func (t Template) Config() (engine.Config, error) {
	return engine.ParseConfig(t.Data)
}

// List returns metadata for all available templates.
func List() []Meta {
	return append([]Meta(nil), catalog...)
}

// Get loads a template by name.
func Get(name string) (Template, error) {
	for _, m := range catalog {
		if m.Name != name {
			continue
		}
		data, err := templateFS.ReadFile("settings/" + name + ".yaml")
		if err != nil {
			return Template{}, fmt.Errorf("templates: %w", err)
		}
		return Template{Meta: m, Data: data}, nil
	}

	return Template{}, fmt.Errorf("templates: %q not found", name)
}

// Apply writes the template to dir/huddle.yaml and seeds dir/.env. An
// existing config is only overwritten when force is set; an existing .env
// is never touched. It returns the config path.
func Apply(t Template, dir string, force bool) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("templates: create dir: %w", err)
	}

	configPath := filepath.Join(dir, ConfigFile)
	if !force {
		if _, err := os.Stat(configPath); err == nil {
			return "", fmt.Errorf("templates: config already exists at %s (use --force to overwrite)", configPath)
		}
	}
	if err := os.WriteFile(configPath, t.Data, 0o644); err != nil { //nolint:gosec // config file, not secret
		return "", fmt.Errorf("templates: write config: %w", err)
	}

	envPath := filepath.Join(dir, EnvFile)
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		if err := os.WriteFile(envPath, []byte(envExample), 0o600); err != nil {
			return "", fmt.Errorf("templates: write %s: %w", EnvFile, err)
		}
	}

	return configPath, nil
}
