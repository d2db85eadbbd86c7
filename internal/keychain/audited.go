package keychain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benaskins/credvault/internal/audit"
)

// AuditedStore wraps a Store and records every write and secret read to an
// audit log. Queries and listings are not audited.
type AuditedStore struct {
	inner Store
	audit *audit.Logger
	actor string // "cli" or "library"
}

var _ Store = (*AuditedStore)(nil)

// NewAuditedStore wraps an existing store with audit logging.
func NewAuditedStore(inner Store, auditLog *audit.Logger, actor string) *AuditedStore {
	return &AuditedStore{
		inner: inner,
		audit: auditLog,
		actor: actor,
	}
}

// log is best-effort: a failure to log never blocks the operation.
func (s *AuditedStore) log(e audit.Entry) {
	e.Actor = s.actor
	if err := s.audit.Log(e); err != nil {
		slog.Warn("audit log write failed", "action", string(e.Action), "error", err)
	}
}

func (s *AuditedStore) Add(ctx context.Context, attrs Attributes, data []byte) (Entry, error) {
	e, err := s.inner.Add(ctx, attrs, data)
	if err != nil {
		return Entry{}, fmt.Errorf("audited store add: %w", err)
	}

	s.log(audit.Entry{
		Action: audit.ActionItemAdd,
		Key:    e.Key().String(),
		Handle: string(e.Handle),
		Class:  e.Class.String(),
	})
	return e, nil
}

func (s *AuditedStore) Update(ctx context.Context, h Handle, diff Diff) (Entry, error) {
	e, err := s.inner.Update(ctx, h, diff)
	if err != nil {
		return Entry{}, fmt.Errorf("audited store update: %w", err)
	}

	s.log(audit.Entry{
		Action: audit.ActionItemUpdate,
		Key:    e.Key().String(),
		Handle: string(h),
		Class:  e.Class.String(),
		Fields: diff.Fields.Names(),
	})
	return e, nil
}

// identify resolves the key and class behind h for an audit entry. Handles on
// some backends are opaque, so entries carry the key as well. A failed lookup
// leaves both empty.
func (s *AuditedStore) identify(ctx context.Context, h Handle) (key, class string) {
	e, err := s.inner.QueryHandle(ctx, h)
	if err != nil {
		return "", ""
	}
	return e.Key().String(), e.Class.String()
}

func (s *AuditedStore) Delete(ctx context.Context, h Handle) error {
	key, class := s.identify(ctx, h)
	if err := s.inner.Delete(ctx, h); err != nil {
		return fmt.Errorf("audited store delete: %w", err)
	}

	s.log(audit.Entry{
		Action: audit.ActionItemDelete,
		Key:    key,
		Handle: string(h),
		Class:  class,
	})
	return nil
}

func (s *AuditedStore) Secret(ctx context.Context, h Handle) ([]byte, error) {
	data, err := s.inner.Secret(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("audited store secret: %w", err)
	}

	key, class := s.identify(ctx, h)
	s.log(audit.Entry{
		Action:  audit.ActionSecretRead,
		Key:     key,
		Handle:  string(h),
		Class:   class,
		Trigger: "manual",
	})
	return data, nil
}

func (s *AuditedStore) Query(ctx context.Context, key Key) (Entry, error) {
	return s.inner.Query(ctx, key)
}

func (s *AuditedStore) QueryHandle(ctx context.Context, h Handle) (Entry, error) {
	return s.inner.QueryHandle(ctx, h)
}

func (s *AuditedStore) QueryPersistent(ctx context.Context, ref []byte) (Entry, error) {
	return s.inner.QueryPersistent(ctx, ref)
}

func (s *AuditedStore) List(ctx context.Context, class Class) ([]Entry, error) {
	return s.inner.List(ctx, class)
}

// LogRotation records the outcome of a rotation command run against key.
func (s *AuditedStore) LogRotation(key Key, command string, rotateErr error) {
	e := audit.Entry{
		Action:  audit.ActionSecretRotate,
		Key:     key.String(),
		Class:   key.Class.String(),
		Trigger: "hook",
		Command: command,
	}
	if rotateErr != nil {
		e.Error = rotateErr.Error()
	}
	s.log(e)
}
