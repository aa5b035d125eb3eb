package cli

import (
	"os"
	"path/filepath"
	"sync"
)

// configDir is the directory holding config.json.
var configDir = sync.OnceValue(func() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir, err = os.UserHomeDir()
		if err != nil {
			return name
		}
		dir = filepath.Join(dir, ".config")
	}
	return filepath.Join(dir, name)
})

// cacheDir is the directory for transient files such as profiles.
var cacheDir = sync.OnceValue(func() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, name)
})

func configPath(elem ...string) string {
	return filepath.Join(append([]string{configDir()}, elem...)...)
}
