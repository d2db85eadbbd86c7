package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/benaskins/credvault/internal/keychain"
)

// Backend names a secret store implementation.
type Backend string

const (
	BackendKeychain Backend = "keychain"
	BackendSQLite   Backend = "sqlite"
	BackendMemory   Backend = "memory"
)

// DefaultPassphraseEnv is read for the SQLite vault passphrase when
// passphrase_env is not set.
const DefaultPassphraseEnv = "CREDVAULT_PASSPHRASE"

// Config holds persistent CLI configuration loaded from ~/.credvault/config.yaml.
type Config struct {
	Backend            Backend  `yaml:"backend"`
	Database           string   `yaml:"database"`
	AuditLog           string   `yaml:"audit_log"`
	Accessible         string   `yaml:"accessible"`
	AccessGroup        string   `yaml:"access_group"`
	DeniedAccessGroups []string `yaml:"denied_access_groups"`
	PassphraseEnv      string   `yaml:"passphrase_env"`
}

// Home returns the credvault home directory (~/.credvault).
func Home() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".credvault"), nil
}

// DefaultPath returns the default config file path: ~/.credvault/config.yaml.
func DefaultPath() string {
	dir, err := Home()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads a YAML config file from path. If the file does not exist,
// it returns an empty Config and no error. An empty or all-comment file
// also returns an empty Config with no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects unknown backends and accessibility names.
func (c *Config) Validate() error {
	switch c.Backend {
	case "", BackendKeychain, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q (want keychain, sqlite or memory)", c.Backend)
	}
	if _, err := keychain.ParseAccessibility(c.Accessible); err != nil {
		return err
	}
	return nil
}

// ResolvedBackend returns the configured backend, defaulting to the system
// keychain.
func (c *Config) ResolvedBackend() Backend {
	if c.Backend == "" {
		return BackendKeychain
	}
	return c.Backend
}

// AccessibleValue returns the parsed default accessibility policy.
func (c *Config) AccessibleValue() keychain.Accessibility {
	a, _ := keychain.ParseAccessibility(c.Accessible)
	return a
}

// DatabasePath returns the SQLite vault path, defaulting to
// ~/.credvault/vault.db.
func (c *Config) DatabasePath() (string, error) {
	return c.pathOrDefault(c.Database, "vault.db")
}

// AuditLogPath returns the audit log path, defaulting to
// ~/.credvault/audit.log.
func (c *Config) AuditLogPath() (string, error) {
	return c.pathOrDefault(c.AuditLog, "audit.log")
}

// PassphraseVar returns the environment variable holding the vault passphrase.
func (c *Config) PassphraseVar() string {
	if c.PassphraseEnv == "" {
		return DefaultPassphraseEnv
	}
	return c.PassphraseEnv
}

func (c *Config) pathOrDefault(p, name string) (string, error) {
	if p != "" {
		return expandHome(p)
	}
	dir, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func expandHome(p string) (string, error) {
	if p != "~" && (len(p) < 2 || p[:2] != "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, p[1:]), nil
}
