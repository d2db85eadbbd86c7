package credential

import (
	"bytes"
	"context"
	"errors"

	"github.com/benaskins/credvault/internal/keychain"
)

// ServiceIdentity names a generic password. Together with the access group
// it forms the entry's identity key.
type ServiceIdentity struct {
	Service string
	Account string
}

func (id ServiceIdentity) key(accessGroup string) keychain.Key {
	return keychain.Key{
		Class:       keychain.ClassGeneric,
		Service:     id.Service,
		Account:     id.Account,
		AccessGroup: accessGroup,
	}
}

// ServiceCredential is a generic password addressed by service and account.
type ServiceCredential struct {
	Core
}

// NewService builds an unpersisted service credential. Nothing is written
// until Commit.
func NewService(store keychain.Store, id ServiceIdentity, opts *Options) (*ServiceCredential, error) {
	o := opts.value()
	if err := o.validate("new service"); err != nil {
		return nil, err
	}

	attrs := o.attributes(keychain.Attributes{
		Class:   keychain.ClassGeneric,
		Service: id.Service,
		Account: id.Account,
	})
	attrs.Generic = bytes.Clone(o.Generic)

	s := &ServiceCredential{Core: newCore(store, attrs)}
	s.stageSecret(o)
	return s, nil
}

// LookupService binds a record to an existing generic password.
func LookupService(ctx context.Context, store keychain.Store, id ServiceIdentity, accessGroup string) (*ServiceCredential, bool, error) {
	e, found, err := query(ctx, store, id.key(accessGroup))
	if err != nil || !found {
		return nil, false, err
	}
	return &ServiceCredential{Core: boundCore(store, e)}, true, nil
}

// LookupOrCreateService returns the existing entry for id, or inserts a new
// one built from opts.
func LookupOrCreateService(ctx context.Context, store keychain.Store, id ServiceIdentity, opts *Options) (*ServiceCredential, error) {
	s, found, err := LookupService(ctx, store, id, opts.value().AccessGroup)
	if err != nil {
		return nil, err
	}
	if found {
		return s, nil
	}

	s, err = NewService(store, id, opts)
	if err != nil {
		return nil, err
	}
	if err := s.Commit(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateAndStoreService inserts a new entry. If the identity already exists
// it fails with CodeDuplicateItem, unless opts.Overwrite is set, in which
// case the existing entry is updated with opts instead.
func CreateAndStoreService(ctx context.Context, store keychain.Store, id ServiceIdentity, opts *Options) (*ServiceCredential, error) {
	o := opts.value()
	s, err := NewService(store, id, opts)
	if err != nil {
		return nil, err
	}

	err = s.Commit(ctx)
	switch {
	case err == nil:
		return s, nil
	case !errors.Is(err, ErrDuplicateItem) || !o.Overwrite:
		return nil, err
	}

	existing, found, lerr := LookupService(ctx, store, id, o.AccessGroup)
	if lerr != nil {
		return nil, lerr
	}
	if !found {
		// Removed between the insert and the lookup.
		return nil, err
	}
	existing.apply(o)
	existing.SetGeneric(o.Generic)
	if err := existing.Commit(ctx); err != nil {
		return nil, err
	}
	return existing, nil
}

// Service returns the service name the record is filed under.
func (s *ServiceCredential) Service() string { return s.attrs.Service }

// Generic returns the application-defined generic attribute.
func (s *ServiceCredential) Generic() []byte { return bytes.Clone(s.attrs.Generic) }

// SetGeneric stages a new generic attribute.
func (s *ServiceCredential) SetGeneric(v []byte) { s.attrs.Generic = bytes.Clone(v) }
