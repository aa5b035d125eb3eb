package cli

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
)

// decoders parse context files by extension.
var decoders = map[string]func([]byte, any) error{
	".json": json.Unmarshal,
	".yaml": decodeYAML,
	".yml":  decodeYAML,
	".toml": toml.Unmarshal,
}

func decodeYAML(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}

// loadContext reads the variables of a render. Files are merged in order,
// later files replacing top-level keys of earlier ones, and vars are applied
// last.
func loadContext(files []string, vars map[string]string) (map[string]any, error) {
	out := make(map[string]any)
	for _, path := range files {
		m, err := decodeFile(path)
		if err != nil {
			return nil, err
		}
		maps.Copy(out, m)
	}
	for k, v := range vars {
		out[k] = v
	}
	return out, nil
}

func decodeFile(path string) (map[string]any, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return nil, fmt.Errorf("context file %s: unknown format %q", path, ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := make(map[string]any)
	if err := decode(data, &m); err != nil {
		return nil, fmt.Errorf("context file %s: %w", path, err)
	}
	return m, nil
}
