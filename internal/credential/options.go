package credential

import (
	"bytes"

	"github.com/benaskins/credvault/internal/keychain"
)

// Options carries the optional attributes of a new record. The zero value
// (or a nil *Options) means empty metadata, no access group, the platform
// default accessibility and no secret.
type Options struct {
	Description string
	Comment     string
	Creator     uint32
	Type        uint32
	Label       string
	Invisible   bool
	Negative    bool
	AccessGroup string
	Accessible  keychain.Accessibility

	// Initial secret. If both are set they must hold the same content.
	Password     string
	PasswordData []byte

	// Generic is only used by service credentials.
	Generic []byte

	// Overwrite lets CreateAndStore update an entry that already exists
	// instead of failing with CodeDuplicateItem.
	Overwrite bool
}

func (o *Options) value() Options {
	if o == nil {
		return Options{}
	}
	return *o
}

func (o Options) validate(op string) error {
	if !o.Accessible.Valid() {
		return invalidField(op, "accessible", "unknown policy "+o.Accessible.String())
	}
	if o.Password != "" && o.PasswordData != nil && !bytes.Equal([]byte(o.Password), o.PasswordData) {
		return invalidField(op, "password", "string and byte forms disagree")
	}
	return nil
}

func (o Options) attributes(base keychain.Attributes) keychain.Attributes {
	base.Description = o.Description
	base.Comment = o.Comment
	base.Creator = o.Creator
	base.Type = o.Type
	base.Label = o.Label
	base.Invisible = o.Invisible
	base.Negative = o.Negative
	base.AccessGroup = o.AccessGroup
	base.Accessible = o.Accessible
	return base
}
