package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/benaskins/credvault/internal/keychain"
)

// query looks up an entry by identity. Absence is reported through found,
// not as an error.
func query(ctx context.Context, store keychain.Store, key keychain.Key) (keychain.Entry, bool, error) {
	if err := key.Validate(); err != nil {
		return keychain.Entry{}, false, storeError("lookup", err)
	}
	e, err := store.Query(ctx, key)
	if errors.Is(err, keychain.ErrNotFound) {
		return keychain.Entry{}, false, nil
	}
	if err != nil {
		return keychain.Entry{}, false, storeError("lookup", err)
	}
	return e, true, nil
}

// LookupByHandle binds a record to the entry behind h. The concrete type is
// *ServiceCredential or *NetworkCredential depending on the entry's class.
func LookupByHandle(ctx context.Context, store keychain.Store, h keychain.Handle) (Credential, bool, error) {
	if h.IsZero() {
		return nil, false, nil
	}
	e, err := store.QueryHandle(ctx, h)
	return fromQuery(store, e, err)
}

// LookupByPersistentRef binds a record to the entry behind a persistent
// reference obtained in an earlier session.
func LookupByPersistentRef(ctx context.Context, store keychain.Store, ref []byte) (Credential, bool, error) {
	if len(ref) == 0 {
		return nil, false, nil
	}
	e, err := store.QueryPersistent(ctx, ref)
	return fromQuery(store, e, err)
}

func fromQuery(store keychain.Store, e keychain.Entry, err error) (Credential, bool, error) {
	if errors.Is(err, keychain.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeError("lookup", err)
	}
	c, err := fromEntry(store, e)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func fromEntry(store keychain.Store, e keychain.Entry) (Credential, error) {
	switch e.Class {
	case keychain.ClassGeneric:
		return &ServiceCredential{Core: boundCore(store, e)}, nil
	case keychain.ClassInternet:
		return &NetworkCredential{Core: boundCore(store, e)}, nil
	default:
		return nil, storeError("lookup", &keychain.FieldError{Field: "class", Reason: fmt.Sprintf("unknown class %d", int(e.Class))})
	}
}

// List binds a record to every entry of class (or of every class when class
// is zero).
func List(ctx context.Context, store keychain.Store, class keychain.Class) ([]Credential, error) {
	entries, err := store.List(ctx, class)
	if err != nil {
		return nil, storeError("list", err)
	}
	out := make([]Credential, 0, len(entries))
	for _, e := range entries {
		c, err := fromEntry(store, e)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
