package deploy

import (
	"fmt"
	"strings"
	"time"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the deployer configuration: a yaml file for paths and
// commands, with DEPLOY_-prefixed environment variables layered on
// top. Remote credentials come only from the environment.
type Config struct {
	Workdir string        `koanf:"workdir"`
	Branch  string        `koanf:"branch"`
	Archive string        `koanf:"archive"`
	Poll    time.Duration `koanf:"poll"`

	Lint struct {
		Commands []string `koanf:"commands"`
	} `koanf:"lint"`

	Frontend struct {
		Dir      string   `koanf:"dir"`
		Commands []string `koanf:"commands"`
		Bundle   string   `koanf:"bundle"`
	} `koanf:"frontend"`

	Remote RemoteConfig `koanf:"remote"`
}

// RemoteConfig describes the target host. Host, user, key and
// passphrase are CI secrets and are accepted only via environment
// variables (DEPLOY_REMOTE_HOST and friends).
type RemoteConfig struct {
	Host       string `koanf:"host"`
	User       string `koanf:"user"`
	Keyfile    string `koanf:"keyfile"`
	Passphrase string `koanf:"passphrase"`
	Knownhosts string `koanf:"knownhosts"`

	Staging string `koanf:"staging"`
	Bundle  string `koanf:"bundle"`
	Compose string `koanf:"compose"`
}

// secretKeys may not appear in the config file.
var secretKeys = []string{"remote.host", "remote.user", "remote.keyfile", "remote.passphrase"}

// LoadConfig reads the yaml file (if given) and merges environment
// overrides over it.
func LoadConfig(fileName string) (*Config, error) {
	k := koanf.New(".")

	if fileName != "" {
		if err := k.Load(file.Provider(fileName), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("load file: %w", err)
		}

		for _, key := range secretKeys {
			if k.Exists(key) {
				return nil, fmt.Errorf("%s must come from the environment, not the config file", key)
			}
		}
	}

	if err := k.Load(env.Provider("DEPLOY_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "DEPLOY_")), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	defaults := map[string]any{
		"branch":          "main",
		"archive":         "build/bundle.tar.gz",
		"poll":            "30s",
		"frontend.dir":    "frontend",
		"frontend.bundle": "frontend/build",
		"remote.staging":  "/tmp/foodgram-bundle.tar.gz",
		"remote.bundle":   "/var/www/frontend",
		"remote.compose":  "/opt/foodgram",
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			_ = k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the config is complete enough to run a deploy.
func (c *Config) Validate() error {
	switch {
	case c.Workdir == "":
		return fmt.Errorf("workdir is not set")
	case c.Remote.Host == "":
		return fmt.Errorf("remote host is not set (DEPLOY_REMOTE_HOST)")
	case c.Remote.User == "":
		return fmt.Errorf("remote user is not set (DEPLOY_REMOTE_USER)")
	case c.Remote.Keyfile == "":
		return fmt.Errorf("remote key file is not set (DEPLOY_REMOTE_KEYFILE)")
	}
	return nil
}
