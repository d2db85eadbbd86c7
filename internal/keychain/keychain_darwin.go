//go:build darwin

package keychain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	gokeychain "github.com/keybase/go-keychain"
)

// SystemStore is a Store backed by the macOS Keychain.
//
// The Keychain binding does not expose item references, so handles and
// persistent references are both the encoded identity key. Identity never
// changes after insert, which keeps them stable across sessions.
//
// The binding cannot read back accessibility, creator, type, invisible,
// negative, generic or security domain. Add and Update reject non-default
// values for them with a FieldError so a lookup always returns what was
// committed.
type SystemStore struct{}

// NewSystemStore creates a new Keychain-backed secret store.
func NewSystemStore() *SystemStore {
	return &SystemStore{}
}

func (s *SystemStore) Add(ctx context.Context, attrs Attributes, data []byte) (Entry, error) {
	if err := attrs.Validate(); err != nil {
		return Entry{}, err
	}
	if err := checkSupported(FieldAttributes, attrs); err != nil {
		return Entry{}, err
	}

	item := queryItem(attrs.Key())
	applyAttributes(&item, FieldAttributes, attrs)
	if attrs.AuthenticationType != "" {
		item.SetAuthenticationType(string(attrs.AuthenticationType))
	}
	item.SetData(data)
	item.SetSynchronizable(gokeychain.SynchronizableNo)

	if err := gokeychain.AddItem(item); err != nil {
		return Entry{}, fmt.Errorf("keychain add %s: %w", attrs.Key(), mapError(err))
	}
	slog.Debug("keychain item added", "key", attrs.Key().String())
	return s.Query(ctx, attrs.Key())
}

func (s *SystemStore) Update(ctx context.Context, h Handle, diff Diff) (Entry, error) {
	key, err := decodeKey([]byte(h))
	if err != nil {
		return Entry{}, err
	}
	if err := checkSupported(diff.Fields, diff.Attributes); err != nil {
		return Entry{}, err
	}

	update := gokeychain.NewItem()
	applyAttributes(&update, diff.Fields, diff.Attributes)
	if diff.Fields.Has(FieldData) {
		update.SetData(diff.Data)
	}
	if err := gokeychain.UpdateItem(queryItem(key), update); err != nil {
		return Entry{}, fmt.Errorf("keychain update %s: %w", key, mapError(err))
	}
	slog.Debug("keychain item updated", "key", key.String(), "fields", diff.Fields.String())
	return s.Query(ctx, key)
}

func (s *SystemStore) Delete(_ context.Context, h Handle) error {
	key, err := decodeKey([]byte(h))
	if err != nil {
		return err
	}
	if err := gokeychain.DeleteItem(queryItem(key)); err != nil {
		return fmt.Errorf("keychain delete %s: %w", key, mapError(err))
	}
	return nil
}

func (s *SystemStore) Query(_ context.Context, key Key) (Entry, error) {
	q := queryItem(key)
	q.SetMatchLimit(gokeychain.MatchLimitOne)
	q.SetReturnAttributes(true)

	results, err := gokeychain.QueryItem(q)
	if err != nil {
		return Entry{}, fmt.Errorf("keychain query %s: %w", key, mapError(err))
	}
	if len(results) == 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return toEntry(key.Class, results[0])
}

func (s *SystemStore) QueryHandle(ctx context.Context, h Handle) (Entry, error) {
	key, err := decodeKey([]byte(h))
	if err != nil {
		return Entry{}, err
	}
	return s.Query(ctx, key)
}

func (s *SystemStore) QueryPersistent(ctx context.Context, ref []byte) (Entry, error) {
	return s.QueryHandle(ctx, Handle(ref))
}

func (s *SystemStore) Secret(_ context.Context, h Handle) ([]byte, error) {
	key, err := decodeKey([]byte(h))
	if err != nil {
		return nil, err
	}
	q := queryItem(key)
	q.SetMatchLimit(gokeychain.MatchLimitOne)
	q.SetReturnData(true)

	results, err := gokeychain.QueryItem(q)
	if err != nil {
		return nil, fmt.Errorf("keychain secret %s: %w", key, mapError(err))
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return results[0].Data, nil
}

func (s *SystemStore) List(ctx context.Context, class Class) ([]Entry, error) {
	if class == 0 {
		generic, err := s.List(ctx, ClassGeneric)
		if err != nil {
			return nil, err
		}
		internet, err := s.List(ctx, ClassInternet)
		if err != nil {
			return nil, err
		}
		return append(generic, internet...), nil
	}

	q := gokeychain.NewItem()
	q.SetSecClass(secClass(class))
	q.SetMatchLimit(gokeychain.MatchLimitAll)
	q.SetReturnAttributes(true)

	results, err := gokeychain.QueryItem(q)
	if err != nil {
		if errors.Is(err, gokeychain.ErrorItemNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("keychain list %s: %w", class, mapError(err))
	}
	entries := make([]Entry, 0, len(results))
	for _, r := range results {
		e, err := toEntry(class, r)
		if err != nil {
			slog.Warn("skipping unreadable keychain item", "class", class.String(), "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func secClass(c Class) gokeychain.SecClass {
	if c == ClassInternet {
		return gokeychain.SecClassInternetPassword
	}
	return gokeychain.SecClassGenericPassword
}

func queryItem(key Key) gokeychain.Item {
	item := gokeychain.NewItem()
	item.SetSecClass(secClass(key.Class))
	switch key.Class {
	case ClassGeneric:
		item.SetService(key.Service)
	case ClassInternet:
		item.SetServer(key.Server)
		item.SetProtocol(string(key.Protocol))
		item.SetPort(int32(key.Port))
		item.SetPath(key.Path)
	}
	item.SetAccount(key.Account)
	if key.AccessGroup != "" {
		item.SetAccessGroup(key.AccessGroup)
	}
	return item
}

func applyAttributes(item *gokeychain.Item, fields Field, attrs Attributes) {
	if fields.Has(FieldLabel) {
		item.SetLabel(attrs.Label)
	}
	if fields.Has(FieldDescription) {
		item.SetDescription(attrs.Description)
	}
	if fields.Has(FieldComment) {
		item.SetComment(attrs.Comment)
	}
}

func checkSupported(fields Field, attrs Attributes) error {
	switch {
	case fields.Has(FieldAccessible) && attrs.Accessible != AccessibleDefault:
		return &FieldError{Field: "accessible", Reason: "not supported by the macOS Keychain binding"}
	case fields.Has(FieldCreator) && attrs.Creator != 0:
		return &FieldError{Field: "creator", Reason: "not supported by the macOS Keychain binding"}
	case fields.Has(FieldType) && attrs.Type != 0:
		return &FieldError{Field: "type", Reason: "not supported by the macOS Keychain binding"}
	case fields.Has(FieldInvisible) && attrs.Invisible:
		return &FieldError{Field: "invisible", Reason: "not supported by the macOS Keychain binding"}
	case fields.Has(FieldNegative) && attrs.Negative:
		return &FieldError{Field: "negative", Reason: "not supported by the macOS Keychain binding"}
	case fields.Has(FieldGeneric) && len(attrs.Generic) > 0:
		return &FieldError{Field: "generic", Reason: "not supported by the macOS Keychain binding"}
	case attrs.SecurityDomain != "":
		return &FieldError{Field: "security_domain", Reason: "not supported by the macOS Keychain binding"}
	}
	return nil
}

func toEntry(class Class, r gokeychain.QueryResult) (Entry, error) {
	attrs := Attributes{
		Class:              class,
		Service:            r.Service,
		Server:             r.Server,
		Protocol:           Protocol(r.Protocol),
		Port:               int(r.Port),
		Path:               r.Path,
		AuthenticationType: AuthenticationType(r.AuthenticationType),
		Account:            r.Account,
		AccessGroup:        r.AccessGroup,
		Label:              r.Label,
		Description:        r.Description,
		Comment:            r.Comment,
		CreationDate:       r.CreationDate.UTC(),
		ModificationDate:   r.ModificationDate.UTC(),
	}
	ref, err := encodeKey(attrs.Key())
	if err != nil {
		return Entry{}, err
	}
	return Entry{Attributes: attrs, Handle: Handle(ref), PersistentRef: ref}, nil
}

func encodeKey(k Key) ([]byte, error) {
	raw, err := json.Marshal(k)
	if err != nil {
		return nil, fmt.Errorf("encoding keychain reference: %w", err)
	}
	out := make([]byte, base64.RawURLEncoding.EncodedLen(len(raw)))
	base64.RawURLEncoding.Encode(out, raw)
	return out, nil
}

func decodeKey(ref []byte) (Key, error) {
	raw := make([]byte, base64.RawURLEncoding.DecodedLen(len(ref)))
	n, err := base64.RawURLEncoding.Decode(raw, ref)
	if err != nil {
		return Key{}, fmt.Errorf("%w: malformed keychain reference", ErrNotFound)
	}
	var k Key
	if err := json.Unmarshal(raw[:n], &k); err != nil {
		return Key{}, fmt.Errorf("%w: malformed keychain reference", ErrNotFound)
	}
	return k, nil
}

// mapError translates Security framework status codes into store sentinels,
// keeping the original error in the chain.
func mapError(err error) error {
	switch {
	case errors.Is(err, gokeychain.ErrorItemNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, gokeychain.ErrorDuplicateItem):
		return fmt.Errorf("%w: %w", ErrDuplicateItem, err)
	case errors.Is(err, gokeychain.ErrorAuthFailed):
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	case errors.Is(err, gokeychain.ErrorInteractionNotAllowed),
		errors.Is(err, gokeychain.ErrorNoSuchKeychain),
		errors.Is(err, gokeychain.ErrorNotAvailable):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		return err
	}
}
