// Package credential is an object-style façade over a keychain.Store.
//
// A record mirrors one store entry. Setters only stage changes in memory;
// Commit writes them, inserting the entry if it does not exist yet. Staged
// changes are tracked by diffing the working attributes against a shadow copy
// of what was last persisted, so HasUncommittedChanges can never drift from
// the actual field values.
//
// Records are owned by one caller at a time and are not safe for concurrent
// mutation. Every store call is synchronous and may block on an OS
// authorization prompt.
package credential

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/benaskins/credvault/internal/keychain"
)

// Credential is the capability shared by every record type.
type Credential interface {
	Class() keychain.Class
	Key() keychain.Key
	Exists() bool
	Handle() keychain.Handle
	PersistentRef() []byte
	HasUncommittedChanges() bool
	Commit(ctx context.Context) error
	Delete(ctx context.Context) error
	Reset()
}

var (
	_ Credential = (*ServiceCredential)(nil)
	_ Credential = (*NetworkCredential)(nil)
)

// Core holds the state shared by all record types: the store binding, the
// handles assigned on insert, the working attributes, the last-persisted
// shadow and the secret payload. It is embedded by value.
type Core struct {
	store     keychain.Store
	exists    bool
	handle    keychain.Handle
	ref       []byte
	persisted keychain.Attributes
	attrs     keychain.Attributes
	secret    secret
}

// newCore builds an unpersisted record. The shadow holds only the identity,
// so any attribute given at construction counts as an uncommitted change.
func newCore(store keychain.Store, attrs keychain.Attributes) Core {
	return Core{
		store:     store,
		persisted: attrs.Identity(),
		attrs:     attrs.Clone(),
	}
}

// boundCore builds a record for an entry read from the store.
func boundCore(store keychain.Store, e keychain.Entry) Core {
	return Core{
		store:     store,
		exists:    true,
		handle:    e.Handle,
		ref:       bytes.Clone(e.PersistentRef),
		persisted: e.Attributes.Clone(),
		attrs:     e.Attributes.Clone(),
	}
}

// Class reports whether the record is a generic or an internet password.
func (c *Core) Class() keychain.Class { return c.attrs.Class }

// Key returns the identity of the record.
func (c *Core) Key() keychain.Key { return c.attrs.Key() }

// Exists reports whether the record has a persisted counterpart.
func (c *Core) Exists() bool { return c.exists }

// Handle returns the store handle, or the zero Handle before the first commit.
func (c *Core) Handle() keychain.Handle { return c.handle }

// PersistentRef returns the cross-session reference, or nil before the first
// commit.
func (c *Core) PersistentRef() []byte { return bytes.Clone(c.ref) }

// AccessGroup returns the sharing scope the record was created in.
func (c *Core) AccessGroup() string { return c.attrs.AccessGroup }

// Accessible returns the accessibility policy.
func (c *Core) Accessible() keychain.Accessibility { return c.attrs.Accessible }

// SetAccessible stages a new accessibility policy.
func (c *Core) SetAccessible(a keychain.Accessibility) error {
	if !a.Valid() {
		return invalidField("set accessible", "accessible", "unknown policy "+a.String())
	}
	c.attrs.Accessible = a
	return nil
}

// changed returns the fields that differ from the last-persisted state.
func (c *Core) changed() keychain.Field {
	f := keychain.ChangedFields(c.persisted, c.attrs)
	if c.secret.staged {
		f |= keychain.FieldData
	}
	return f
}

// HasUncommittedChanges reports whether any staged value differs from the
// last-persisted state.
func (c *Core) HasUncommittedChanges() bool { return c.changed() != 0 }

// Commit writes staged changes to the store. An unpersisted record is
// inserted and receives its handles; a persisted one is updated with only the
// fields that changed. Required identity fields are checked before any store
// call.
func (c *Core) Commit(ctx context.Context) error {
	if err := c.attrs.Validate(); err != nil {
		return storeError("commit", err)
	}
	if !c.exists {
		return c.insert(ctx)
	}

	fields := c.changed()
	if fields == 0 {
		return nil
	}
	diff := keychain.Diff{Fields: fields, Attributes: c.attrs.Clone()}
	if fields.Has(keychain.FieldData) {
		diff.Data = c.secret.bytes()
	}

	e, err := c.store.Update(ctx, c.handle, diff)
	if err != nil {
		return storeError("commit", err)
	}
	c.attrs.ModificationDate = e.ModificationDate
	c.persisted = c.attrs.Clone()
	c.secret.clear()

	slog.Debug("credential updated", "key", c.Key().String(), "fields", fields.String())
	return nil
}

func (c *Core) insert(ctx context.Context) error {
	var data []byte
	if c.secret.staged {
		data = c.secret.bytes()
	}

	e, err := c.store.Add(ctx, c.attrs.Clone(), data)
	if err != nil {
		return storeError("commit", err)
	}
	c.exists = true
	c.handle = e.Handle
	c.ref = bytes.Clone(e.PersistentRef)
	c.attrs.CreationDate = e.CreationDate
	c.attrs.ModificationDate = e.ModificationDate
	c.persisted = c.attrs.Clone()
	c.secret.clear()

	slog.Debug("credential inserted", "key", c.Key().String())
	return nil
}

// Delete removes the entry from the store. The record keeps its field values
// but becomes an unpersisted value again: handles are cleared and a later
// Commit would insert a new entry.
func (c *Core) Delete(ctx context.Context) error {
	if !c.exists {
		return &StoreError{Op: "delete", Code: CodeNotFound, Err: keychain.ErrNotFound}
	}
	if err := c.store.Delete(ctx, c.handle); err != nil {
		return storeError("delete", err)
	}

	slog.Debug("credential deleted", "key", c.Key().String())
	c.exists = false
	c.handle = ""
	c.ref = nil
	c.attrs.CreationDate = time.Time{}
	c.attrs.ModificationDate = time.Time{}
	c.persisted = c.attrs.Identity()
	c.secret.clear()
	return nil
}

// Reset discards staged edits, restoring the last-persisted values, or the
// bare identity if the record was never persisted. It never touches the store.
func (c *Core) Reset() {
	c.attrs = c.persisted.Clone()
	c.secret.clear()
}

// apply stages every mutable attribute carried by o, plus its secret if one
// is set. Identity and access group are left alone.
func (c *Core) apply(o Options) {
	c.attrs.Description = o.Description
	c.attrs.Comment = o.Comment
	c.attrs.Creator = o.Creator
	c.attrs.Type = o.Type
	c.attrs.Label = o.Label
	c.attrs.Invisible = o.Invisible
	c.attrs.Negative = o.Negative
	c.attrs.Accessible = o.Accessible
	c.stageSecret(o)
}

func (c *Core) stageSecret(o Options) {
	switch {
	case o.PasswordData != nil:
		c.secret.setData(o.PasswordData)
	case o.Password != "":
		c.secret.setText(o.Password)
	}
}
