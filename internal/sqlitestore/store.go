// Package sqlitestore is a file-backed keychain.Store for hosts without a
// system keychain. Attributes are stored in plain columns so entries can be
// listed while the vault is locked; secrets are sealed with AES-256-GCM under
// a key derived from the vault passphrase.
package sqlitestore

import (
	"bytes"
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/benaskins/credvault/internal/keychain"
)

var _ keychain.Store = (*Store)(nil)

const itemColumns = `id, class, service, server, protocol, port, path, account, access_group,
	auth_type, security_domain, label, description, comment, creator, type,
	invisible, negative, generic, accessible, created_at, updated_at`

// Options configures a Store.
type Options struct {
	// DeniedAccessGroups lists access groups this process may not touch.
	DeniedAccessGroups []string
}

// Store implements keychain.Store on SQLite. It starts locked: metadata can
// be queried, but reading or writing a secret fails with
// keychain.ErrUnavailable until Unlock succeeds.
type Store struct {
	db     *DB
	denied map[string]bool
	now    func() time.Time

	mu  sync.RWMutex
	key []byte
}

// New returns a locked store over db. Migrations must already have run.
func New(db *DB, opts Options) *Store {
	denied := make(map[string]bool, len(opts.DeniedAccessGroups))
	for _, g := range opts.DeniedAccessGroups {
		denied[g] = true
	}
	return &Store{
		db:     db,
		denied: denied,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Unlock derives the vault key from passphrase. The first unlock of a new
// vault records the salt and a verifier; later unlocks with a different
// passphrase fail with keychain.ErrAccessDenied.
func (s *Store) Unlock(ctx context.Context, passphrase []byte) error {
	var salt, verifier []byte
	err := s.db.Reader.QueryRowContext(ctx, `SELECT salt, verifier FROM vault_meta WHERE id = 1`).Scan(&salt, &verifier)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s.initVault(ctx, passphrase)
	case err != nil:
		return fmt.Errorf("read vault meta: %w: %v", keychain.ErrUnavailable, err)
	}

	key := deriveKey(passphrase, salt)
	if subtle.ConstantTimeCompare(makeVerifier(key), verifier) != 1 {
		return fmt.Errorf("%w: wrong vault passphrase", keychain.ErrAccessDenied)
	}

	s.mu.Lock()
	s.key = key
	s.mu.Unlock()
	slog.Debug("vault unlocked", "path", s.db.Path())
	return nil
}

func (s *Store) initVault(ctx context.Context, passphrase []byte) error {
	salt, err := newSalt()
	if err != nil {
		return err
	}
	key := deriveKey(passphrase, salt)

	const query = `INSERT INTO vault_meta (id, salt, verifier, created_at) VALUES (1, ?, ?, ?)`
	if _, err := s.db.Writer.ExecContext(ctx, query, salt, makeVerifier(key), formatTime(s.now())); err != nil {
		if isUniqueViolation(err) {
			// Another process initialised the vault first.
			return s.Unlock(ctx, passphrase)
		}
		return fmt.Errorf("init vault: %w", err)
	}

	s.mu.Lock()
	s.key = key
	s.mu.Unlock()
	slog.Info("vault initialised", "path", s.db.Path())
	return nil
}

// Lock forgets the vault key.
func (s *Store) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.key {
		s.key[i] = 0
	}
	s.key = nil
}

// Locked reports whether secrets are currently inaccessible.
func (s *Store) Locked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key == nil
}

func (s *Store) vaultKey() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return nil, fmt.Errorf("%w: vault is locked", keychain.ErrUnavailable)
	}
	return bytes.Clone(s.key), nil
}

func (s *Store) checkGroup(group string) error {
	if s.denied[group] {
		return fmt.Errorf("%w: access group %q", keychain.ErrAccessDenied, group)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, attrs keychain.Attributes, data []byte) (keychain.Entry, error) {
	if err := attrs.Validate(); err != nil {
		return keychain.Entry{}, err
	}
	if err := s.checkGroup(attrs.AccessGroup); err != nil {
		return keychain.Entry{}, err
	}
	key, err := s.vaultKey()
	if err != nil {
		return keychain.Entry{}, err
	}

	id := uuid.New()
	var secret any
	if data != nil {
		sealed, err := seal(key, data, id[:])
		if err != nil {
			return keychain.Entry{}, err
		}
		secret = sealed
	}

	now := s.now()
	attrs = attrs.Clone()
	attrs.CreationDate = now
	attrs.ModificationDate = now

	const query = `INSERT INTO items (` + itemColumns + `, secret)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := append(itemArgs(id.String(), attrs), secret)
	if _, err := s.db.Writer.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return keychain.Entry{}, fmt.Errorf("%w: %s", keychain.ErrDuplicateItem, attrs.Key())
		}
		return keychain.Entry{}, fmt.Errorf("insert item: %w", err)
	}

	return keychain.Entry{
		Attributes:    attrs,
		Handle:        keychain.Handle(id.String()),
		PersistentRef: append([]byte(nil), id[:]...),
	}, nil
}

func (s *Store) Update(ctx context.Context, h keychain.Handle, diff keychain.Diff) (keychain.Entry, error) {
	var key []byte
	if diff.Fields.Has(keychain.FieldData) {
		k, err := s.vaultKey()
		if err != nil {
			return keychain.Entry{}, err
		}
		key = k
	}

	tx, err := s.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return keychain.Entry{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	e, err := s.queryOne(ctx, tx, `WHERE id = ?`, string(h))
	if err != nil {
		return keychain.Entry{}, err
	}
	if err := s.checkGroup(e.AccessGroup); err != nil {
		return keychain.Entry{}, err
	}

	e.Attributes.Apply(diff.Fields, diff.Attributes)
	if err := e.Attributes.Validate(); err != nil {
		return keychain.Entry{}, err
	}
	e.ModificationDate = s.now()

	const query = `UPDATE items SET label = ?, description = ?, comment = ?, creator = ?, type = ?,
		invisible = ?, negative = ?, generic = ?, accessible = ?, updated_at = ? WHERE id = ?`
	_, err = tx.ExecContext(ctx, query,
		e.Label, e.Description, e.Comment, e.Creator, e.Type,
		e.Invisible, e.Negative, e.Generic, int(e.Accessible), formatTime(e.ModificationDate), string(h))
	if err != nil {
		return keychain.Entry{}, fmt.Errorf("update item %s: %w", h, err)
	}

	if key != nil {
		data := diff.Data
		if data == nil {
			data = []byte{}
		}
		sealed, err := seal(key, data, e.PersistentRef)
		if err != nil {
			return keychain.Entry{}, err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE items SET secret = ? WHERE id = ?`, sealed, string(h)); err != nil {
			return keychain.Entry{}, fmt.Errorf("update secret %s: %w", h, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return keychain.Entry{}, fmt.Errorf("commit update: %w", err)
	}
	return e, nil
}

func (s *Store) Delete(ctx context.Context, h keychain.Handle) error {
	e, err := s.QueryHandle(ctx, h)
	if err != nil {
		return err
	}
	if err := s.checkGroup(e.AccessGroup); err != nil {
		return err
	}
	res, err := s.db.Writer.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, string(h))
	if err != nil {
		return fmt.Errorf("delete item %s: %w", h, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: handle %s", keychain.ErrNotFound, h)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, k keychain.Key) (keychain.Entry, error) {
	if err := s.checkGroup(k.AccessGroup); err != nil {
		return keychain.Entry{}, err
	}
	return s.queryOne(ctx, s.db.Reader,
		`WHERE class = ? AND service = ? AND server = ? AND protocol = ? AND port = ? AND path = ? AND account = ? AND access_group = ?`,
		int(k.Class), k.Service, k.Server, string(k.Protocol), k.Port, k.Path, k.Account, k.AccessGroup)
}

func (s *Store) QueryHandle(ctx context.Context, h keychain.Handle) (keychain.Entry, error) {
	e, err := s.queryOne(ctx, s.db.Reader, `WHERE id = ?`, string(h))
	if err != nil {
		return keychain.Entry{}, err
	}
	if err := s.checkGroup(e.AccessGroup); err != nil {
		return keychain.Entry{}, err
	}
	return e, nil
}

// QueryPersistent resolves a reference returned by Add. References are the
// raw bytes of the item's UUID.
func (s *Store) QueryPersistent(ctx context.Context, ref []byte) (keychain.Entry, error) {
	id, err := uuid.FromBytes(ref)
	if err != nil {
		return keychain.Entry{}, fmt.Errorf("%w: persistent ref %x", keychain.ErrNotFound, ref)
	}
	return s.QueryHandle(ctx, keychain.Handle(id.String()))
}

func (s *Store) Secret(ctx context.Context, h keychain.Handle) ([]byte, error) {
	e, err := s.QueryHandle(ctx, h)
	if err != nil {
		return nil, err
	}
	key, err := s.vaultKey()
	if err != nil {
		return nil, err
	}

	var sealed []byte
	if err := s.db.Reader.QueryRowContext(ctx, `SELECT secret FROM items WHERE id = ?`, string(h)).Scan(&sealed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: handle %s", keychain.ErrNotFound, h)
		}
		return nil, fmt.Errorf("read secret %s: %w", h, err)
	}
	if len(sealed) == 0 {
		return []byte{}, nil
	}

	data, err := unseal(key, sealed, e.PersistentRef)
	if err != nil {
		return nil, fmt.Errorf("decrypt secret %s: %w", h, err)
	}
	return data, nil
}

func (s *Store) List(ctx context.Context, class keychain.Class) ([]keychain.Entry, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	var args []any
	if class != 0 {
		query += ` WHERE class = ?`
		args = append(args, int(class))
	}

	rows, err := s.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var entries []keychain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if s.denied[e.AccessGroup] {
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key().String() < entries[j].Key().String()
	})
	return entries, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) queryOne(ctx context.Context, q queryer, where string, args ...any) (keychain.Entry, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items `+where, args...)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return keychain.Entry{}, fmt.Errorf("%w: %v", keychain.ErrNotFound, args)
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (keychain.Entry, error) {
	var (
		e                  keychain.Entry
		id, protocol, auth string
		class, accessible  int
		created, updated   string
	)
	err := sc.Scan(&id, &class, &e.Service, &e.Server, &protocol, &e.Port, &e.Path, &e.Account, &e.AccessGroup,
		&auth, &e.SecurityDomain, &e.Label, &e.Description, &e.Comment, &e.Creator, &e.Type,
		&e.Invisible, &e.Negative, &e.Generic, &accessible, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return keychain.Entry{}, err
		}
		return keychain.Entry{}, fmt.Errorf("scan item: %w", err)
	}

	uid, err := uuid.Parse(id)
	if err != nil {
		return keychain.Entry{}, fmt.Errorf("parse item id %q: %w", id, err)
	}
	e.Handle = keychain.Handle(id)
	e.PersistentRef = append([]byte(nil), uid[:]...)
	e.Class = keychain.Class(class)
	e.Protocol = keychain.Protocol(protocol)
	e.AuthenticationType = keychain.AuthenticationType(auth)
	e.Accessible = keychain.Accessibility(accessible)

	if e.CreationDate, err = parseTime(created); err != nil {
		return keychain.Entry{}, fmt.Errorf("parse created_at for %s: %w", id, err)
	}
	if e.ModificationDate, err = parseTime(updated); err != nil {
		return keychain.Entry{}, fmt.Errorf("parse updated_at for %s: %w", id, err)
	}
	return e, nil
}

func itemArgs(id string, a keychain.Attributes) []any {
	return []any{
		id, int(a.Class), a.Service, a.Server, string(a.Protocol), a.Port, a.Path, a.Account, a.AccessGroup,
		string(a.AuthenticationType), a.SecurityDomain, a.Label, a.Description, a.Comment, a.Creator, a.Type,
		a.Invisible, a.Negative, a.Generic, int(a.Accessible), formatTime(a.CreationDate), formatTime(a.ModificationDate),
	}
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }
