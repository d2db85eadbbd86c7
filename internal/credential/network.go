package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/benaskins/credvault/internal/keychain"
)

// NetworkIdentity names an internet password. Server, Protocol, Port, Path
// and Account, plus the access group, form the identity key;
// AuthenticationType and SecurityDomain are fixed at construction but do not
// take part in lookups.
type NetworkIdentity struct {
	Server             string
	Protocol           keychain.Protocol
	Port               int
	Path               string
	Account            string
	AuthenticationType keychain.AuthenticationType
	SecurityDomain     string
}

func (id NetworkIdentity) key(accessGroup string) keychain.Key {
	return keychain.Key{
		Class:       keychain.ClassInternet,
		Server:      id.Server,
		Protocol:    id.Protocol,
		Port:        id.Port,
		Path:        id.Path,
		Account:     id.Account,
		AccessGroup: accessGroup,
	}
}

func (id NetworkIdentity) validate(op string) error {
	if !id.Protocol.Valid() {
		return invalidField(op, "protocol", fmt.Sprintf("unknown protocol %q", string(id.Protocol)))
	}
	if !id.AuthenticationType.Valid() {
		return invalidField(op, "authentication_type", fmt.Sprintf("unknown authentication type %q", string(id.AuthenticationType)))
	}
	if id.Port < 0 || id.Port > 65535 {
		return invalidField(op, "port", fmt.Sprintf("%d out of range", id.Port))
	}
	return nil
}

// NetworkCredential is an internet password scoped to a server endpoint.
type NetworkCredential struct {
	Core
}

// NewNetwork builds an unpersisted network credential. Protocol,
// authentication type and port are validated here; server and account are
// checked on Commit.
func NewNetwork(store keychain.Store, id NetworkIdentity, opts *Options) (*NetworkCredential, error) {
	o := opts.value()
	if err := id.validate("new network"); err != nil {
		return nil, err
	}
	if err := o.validate("new network"); err != nil {
		return nil, err
	}

	attrs := o.attributes(keychain.Attributes{
		Class:              keychain.ClassInternet,
		Server:             id.Server,
		Protocol:           id.Protocol,
		Port:               id.Port,
		Path:               id.Path,
		AuthenticationType: id.AuthenticationType,
		SecurityDomain:     id.SecurityDomain,
		Account:            id.Account,
	})

	n := &NetworkCredential{Core: newCore(store, attrs)}
	n.stageSecret(o)
	return n, nil
}

// LookupNetwork binds a record to an existing internet password.
func LookupNetwork(ctx context.Context, store keychain.Store, id NetworkIdentity, accessGroup string) (*NetworkCredential, bool, error) {
	e, found, err := query(ctx, store, id.key(accessGroup))
	if err != nil || !found {
		return nil, false, err
	}
	return &NetworkCredential{Core: boundCore(store, e)}, true, nil
}

// LookupOrCreateNetwork returns the existing entry for id, or inserts a new
// one built from opts.
func LookupOrCreateNetwork(ctx context.Context, store keychain.Store, id NetworkIdentity, opts *Options) (*NetworkCredential, error) {
	n, found, err := LookupNetwork(ctx, store, id, opts.value().AccessGroup)
	if err != nil {
		return nil, err
	}
	if found {
		return n, nil
	}

	n, err = NewNetwork(store, id, opts)
	if err != nil {
		return nil, err
	}
	if err := n.Commit(ctx); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateAndStoreNetwork inserts a new entry. If the identity already exists
// it fails with CodeDuplicateItem, unless opts.Overwrite is set, in which
// case the existing entry is updated with opts instead.
func CreateAndStoreNetwork(ctx context.Context, store keychain.Store, id NetworkIdentity, opts *Options) (*NetworkCredential, error) {
	o := opts.value()
	n, err := NewNetwork(store, id, opts)
	if err != nil {
		return nil, err
	}

	err = n.Commit(ctx)
	switch {
	case err == nil:
		return n, nil
	case !errors.Is(err, ErrDuplicateItem) || !o.Overwrite:
		return nil, err
	}

	existing, found, lerr := LookupNetwork(ctx, store, id, o.AccessGroup)
	if lerr != nil {
		return nil, lerr
	}
	if !found {
		return nil, err
	}
	existing.apply(o)
	if err := existing.Commit(ctx); err != nil {
		return nil, err
	}
	return existing, nil
}

func (n *NetworkCredential) Server() string                                  { return n.attrs.Server }
func (n *NetworkCredential) Protocol() keychain.Protocol                     { return n.attrs.Protocol }
func (n *NetworkCredential) Port() int                                       { return n.attrs.Port }
func (n *NetworkCredential) Path() string                                    { return n.attrs.Path }
func (n *NetworkCredential) AuthenticationType() keychain.AuthenticationType { return n.attrs.AuthenticationType }
func (n *NetworkCredential) SecurityDomain() string                          { return n.attrs.SecurityDomain }
