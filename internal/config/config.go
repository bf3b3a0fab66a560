package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// configFileVar names an optional YAML file whose values act as defaults
// beneath the environment.
const configFileVar = "TUNIWAY_CONFIG"

type Config interface {
	EnvConfig
	BackendConfig
	StoreConfig
	CorsConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetFrontendURL() string
	GetDataFolder() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
}

type mainConfig struct {
	EnvVars
	Backend
	Store
	Cors
	Security
}

// New loads the file named by TUNIWAY_CONFIG, if any.
func New() (Config, error) {
	return Load(os.Getenv(configFileVar))
}

// Load reads path as the file layer. An empty path means environment only.
func Load(path string) (Config, error) {
	src := &source{}
	if path != "" {
		values, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = values
	}
	return mainConfig{
		EnvVars:  EnvVars{src},
		Backend:  Backend{src},
		Store:    Store{src},
		Cors:     Cors{src},
		Security: Security{src},
	}, nil
}

// readFile accepts a flat mapping. Keys match the environment variable names
// case-insensitively, so both BACKEND_URL and backend_url work.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[config] read %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("[config] parse %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch vv := v.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(vv))
			for _, p := range vv {
				parts = append(parts, fmt.Sprint(p))
			}
			values[strings.ToUpper(k)] = strings.Join(parts, ",")
		default:
			values[strings.ToUpper(k)] = fmt.Sprint(vv)
		}
	}
	return values, nil
}

// source resolves a key from the environment first, then the file.
type source struct {
	file map[string]string
}

func (s *source) get(name, defaultValue string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	if s != nil {
		if v := s.file[name]; v != "" {
			return v
		}
	}
	return defaultValue
}
