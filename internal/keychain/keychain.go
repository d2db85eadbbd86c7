// Package keychain defines the secret store that credential records are
// persisted to, along with its backends.
//
// Entries belong to one of two classes:
//   - generic passwords, addressed by service and account
//   - internet passwords, addressed by server, protocol, port, path and account
//
// Both are further scoped by an access group. A store hands out an opaque
// Handle for every entry it holds, plus a persistent reference that stays
// valid across sessions.
//
// On macOS the system Keychain is used (kSecClassGenericPassword and
// kSecClassInternetPassword items). MemoryStore backs tests, and
// AuditedStore wraps any Store with an append-only audit trail.
package keychain

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no entry matches a key, handle or reference.
	ErrNotFound = errors.New("item not found")
	// ErrDuplicateItem is returned when an insert collides with an existing identity.
	ErrDuplicateItem = errors.New("duplicate item")
	// ErrAccessDenied is returned when the access group or policy forbids the operation.
	ErrAccessDenied = errors.New("access denied")
	// ErrUnavailable is returned when the store is locked or unreachable.
	ErrUnavailable = errors.New("keychain unavailable")
	// ErrInvalidField is wrapped by every *FieldError.
	ErrInvalidField = errors.New("invalid field")
)

// Handle is a session-scoped reference to a persisted entry. The zero value
// means "not persisted".
type Handle string

// IsZero reports whether h refers to nothing.
func (h Handle) IsZero() bool { return h == "" }

// Entry is a persisted item as reported by a store: its attributes plus the
// references the store assigned to it. The secret payload is never part of an
// Entry; it is fetched separately with Store.Secret.
type Entry struct {
	Attributes
	Handle        Handle
	PersistentRef []byte
}

// Diff names the mutable fields to overwrite on an existing entry. Values are
// read from Attributes for every field in Fields, and from Data when Fields
// includes FieldData.
type Diff struct {
	Fields     Field
	Attributes Attributes
	Data       []byte
}

// Store is the platform secret store. Implementations must be safe for
// concurrent use; they serialize writes themselves.
type Store interface {
	// Add inserts a new entry. It fails with ErrDuplicateItem if an entry
	// with the same Key already exists.
	Add(ctx context.Context, attrs Attributes, data []byte) (Entry, error)
	// Update overwrites the fields named by diff on the entry behind h and
	// returns the entry as stored afterwards.
	Update(ctx context.Context, h Handle, diff Diff) (Entry, error)
	Delete(ctx context.Context, h Handle) error
	Query(ctx context.Context, key Key) (Entry, error)
	QueryHandle(ctx context.Context, h Handle) (Entry, error)
	QueryPersistent(ctx context.Context, ref []byte) (Entry, error)
	// Secret returns the payload of the entry behind h. On a real keychain
	// this may block on an authorization prompt.
	Secret(ctx context.Context, h Handle) ([]byte, error)
	// List returns all entries of a class, or of every class when class is zero.
	List(ctx context.Context, class Class) ([]Entry, error)
}

// Describe returns a human-readable description of a store error, in the
// spirit of SecCopyErrorMessageString.
func Describe(err error) string {
	var fe *FieldError
	switch {
	case err == nil:
		return "No error."
	case errors.As(err, &fe):
		return "The attribute " + fe.Field + " is invalid: " + fe.Reason + "."
	case errors.Is(err, ErrNotFound):
		return "The specified item could not be found in the keychain."
	case errors.Is(err, ErrDuplicateItem):
		return "The specified item already exists in the keychain."
	case errors.Is(err, ErrAccessDenied):
		return "The user name or passphrase you entered is not correct, or access to the item is not allowed."
	case errors.Is(err, ErrUnavailable):
		return "The keychain is locked or cannot be reached."
	default:
		return err.Error()
	}
}
