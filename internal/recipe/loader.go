package recipe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is a recipe file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// DefaultPlaceholder is the placeholder method name of a Wrap that names
// none.
const DefaultPlaceholder = "Original"

// ErrFormat is returned for recipe files of unknown format.
var ErrFormat = errors.New("unknown recipe format")

// FormatOf picks the format from the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}

	return "", fmt.Errorf("%w: %s", ErrFormat, path)
}

// Load reads and parses the recipe file at path.
func Load(path string) (*Recipe, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe %s: %w", path, err)
	}

	r, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return r, nil
}

// Parse parses recipe data in the given format and fills in defaults.
func Parse(data []byte, format Format) (*Recipe, error) {
	var r Recipe

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("failed to parse recipe YAML: %w", err)
		}

	case FormatTOML:
		meta, err := toml.Decode(string(data), &r)
		if err != nil {
			return nil, fmt.Errorf("failed to parse recipe TOML: %w", err)
		}

		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("failed to parse recipe TOML: unknown key %s", undecoded[0])
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrFormat, format)
	}

	applyDefaults(&r)

	return &r, nil
}

// applyDefaults fills in default values for optional fields.
func applyDefaults(r *Recipe) {
	if r.Version == "" {
		r.Version = "1"
	}

	for i := range r.Targets {
		t := &r.Targets[i]

		// "App.Widget" as a fresh name splits into namespace and name.
		if !t.Merging() && t.Namespace == "" {
			if dot := strings.LastIndexByte(t.Name, '.'); dot > 0 {
				t.Namespace, t.Name = t.Name[:dot], t.Name[dot+1:]
			}
		}
	}

	if r.Wrap != nil && r.Wrap.Placeholder == "" {
		r.Wrap.Placeholder = DefaultPlaceholder
	}

	if r.Output == "" && len(r.Targets) > 0 && r.Targets[0].Module != "" {
		r.Output = r.Targets[0].Module + ".yaml"
	}
}

// Marshal serializes a recipe to YAML.
func Marshal(r *Recipe) ([]byte, error) {
	return yaml.Marshal(r)
}
