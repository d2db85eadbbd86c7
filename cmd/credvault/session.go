package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/benaskins/credvault/internal/audit"
	"github.com/benaskins/credvault/internal/config"
	"github.com/benaskins/credvault/internal/keychain"
	"github.com/benaskins/credvault/internal/sqlitestore"
)

// session is the store stack a command runs against: the configured backend
// wrapped in an audit trail.
type session struct {
	cfg     *config.Config
	store   *keychain.AuditedStore
	closers []func() error
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg}

	backend, err := s.openBackend(cmd.Context())
	if err != nil {
		s.Close()
		return nil, err
	}

	auditPath, err := cfg.AuditLogPath()
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := ensureDir(filepath.Dir(auditPath)); err != nil {
		s.Close()
		return nil, err
	}
	logger, err := audit.NewLogger(auditPath)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, logger.Close)

	s.store = keychain.NewAuditedStore(backend, logger, "cli")
	return s, nil
}

func (s *session) openBackend(ctx context.Context) (keychain.Store, error) {
	switch s.cfg.ResolvedBackend() {
	case config.BackendMemory:
		mem := keychain.NewMemoryStore()
		for _, g := range s.cfg.DeniedAccessGroups {
			mem.DenyAccessGroup(g)
		}
		return mem, nil

	case config.BackendSQLite:
		path, err := s.cfg.DatabasePath()
		if err != nil {
			return nil, err
		}
		if err := ensureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
		db, err := sqlitestore.NewDB(path)
		if err != nil {
			return nil, fmt.Errorf("opening vault %s: %w", path, err)
		}
		s.closers = append(s.closers, db.Close)
		if err := sqlitestore.RunMigrations(db.Writer); err != nil {
			return nil, err
		}

		store := sqlitestore.New(db, sqlitestore.Options{DeniedAccessGroups: s.cfg.DeniedAccessGroups})
		pass, err := vaultPassphrase(s.cfg.PassphraseVar())
		if errors.Is(err, errNoPassphrase) {
			slog.Warn("vault left locked; secrets are unavailable", "env", s.cfg.PassphraseVar())
			return store, nil
		}
		if err != nil {
			return nil, err
		}
		if err := store.Unlock(ctx, pass); err != nil {
			return nil, fmt.Errorf("unlocking vault: %w", err)
		}
		return store, nil

	default:
		if len(s.cfg.DeniedAccessGroups) > 0 {
			slog.Debug("denied_access_groups is ignored by the system keychain")
		}
		return keychain.NewSystemStore(), nil
	}
}

// Close releases everything the session opened, newest first.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
