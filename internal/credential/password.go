package credential

import (
	"context"
	"time"
)

// Account returns the account the record belongs to.
func (c *Core) Account() string { return c.attrs.Account }

// CreationDate is assigned by the store on insert.
func (c *Core) CreationDate() time.Time { return c.attrs.CreationDate }

// ModificationDate is assigned by the store on every successful commit.
func (c *Core) ModificationDate() time.Time { return c.attrs.ModificationDate }

// Description is the kind of item, such as "application password".
func (c *Core) Description() string     { return c.attrs.Description }
func (c *Core) SetDescription(v string) { c.attrs.Description = v }

// Comment is free-form text attached to the entry.
func (c *Core) Comment() string     { return c.attrs.Comment }
func (c *Core) SetComment(v string) { c.attrs.Comment = v }

// Creator is a four-character code identifying the creating application.
func (c *Core) Creator() uint32     { return c.attrs.Creator }
func (c *Core) SetCreator(v uint32) { c.attrs.Creator = v }

// Type is a four-character code describing the item's kind.
func (c *Core) Type() uint32     { return c.attrs.Type }
func (c *Core) SetType(v uint32) { c.attrs.Type = v }

// Label is the user-visible name of the entry.
func (c *Core) Label() string     { return c.attrs.Label }
func (c *Core) SetLabel(v string) { c.attrs.Label = v }

// Invisible hides the entry from keychain browsing tools.
func (c *Core) Invisible() bool     { return c.attrs.Invisible }
func (c *Core) SetInvisible(v bool) { c.attrs.Invisible = v }

// Negative marks an entry recording that the user declined to store a password.
func (c *Core) Negative() bool     { return c.attrs.Negative }
func (c *Core) SetNegative(v bool) { c.attrs.Negative = v }

// SetPassword stages a new secret in string form.
func (c *Core) SetPassword(v string) { c.secret.setText(v) }

// SetPasswordData stages a new secret in byte form.
func (c *Core) SetPasswordData(v []byte) { c.secret.setData(v) }

// Password returns the secret as a string, fetching it from the store on
// first read. It fails with CodeInvalidField if the stored bytes are not
// valid UTF-8.
func (c *Core) Password(ctx context.Context) (string, error) {
	if err := c.loadSecret(ctx); err != nil {
		return "", err
	}
	v, err := c.secret.string()
	if err != nil {
		return "", &StoreError{Op: "password", Code: CodeInvalidField, Field: "password", Err: err}
	}
	return v, nil
}

// PasswordData returns the secret as bytes, fetching it from the store on
// first read.
func (c *Core) PasswordData(ctx context.Context) ([]byte, error) {
	if err := c.loadSecret(ctx); err != nil {
		return nil, err
	}
	return c.secret.bytes(), nil
}

// loadSecret memoizes the persisted payload. Unpersisted records without a
// staged secret read as empty.
func (c *Core) loadSecret(ctx context.Context) error {
	if c.secret.held() || !c.exists {
		return nil
	}
	data, err := c.store.Secret(ctx, c.handle)
	if err != nil {
		return storeError("password", err)
	}
	c.secret.load(data)
	return nil
}
