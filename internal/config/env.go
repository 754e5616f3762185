package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names understood by ipu-gate.
const (
	EnvSkipCheckOSRelease = "LEAPP_SKIP_CHECK_OS_RELEASE"
)

// Environment is an immutable snapshot of the switches actors read.
type Environment struct {
	// SkipCheckOSRelease is true when LEAPP_SKIP_CHECK_OS_RELEASE is set to
	// any non-empty value.
	SkipCheckOSRelease bool
}

// LoadEnvironment resolves every known variable through lookup, falling back
// to the dotenv file at dotenvPath. Process variables always win; a missing
// dotenv file is not an error.
func LoadEnvironment(lookup func(string) (string, bool), dotenvPath string) (Environment, error) {
	fileVars, err := readDotEnv(dotenvPath)
	if err != nil {
		return Environment{}, err
	}
	get := func(key string) string {
		if lookup != nil {
			if v, ok := lookup(key); ok {
				return v
			}
		}
		return fileVars[key]
	}
	return Environment{
		SkipCheckOSRelease: truthy(get(EnvSkipCheckOSRelease)),
	}, nil
}

func readDotEnv(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return vars, nil
}

func truthy(value string) bool {
	return value != ""
}
