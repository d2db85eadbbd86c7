package keychain

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// Key is the identity of an entry within its class. Generic entries use
// Service; internet entries use Server, Protocol, Port and Path.
type Key struct {
	Class       Class
	Service     string
	Server      string
	Protocol    Protocol
	Port        int
	Path        string
	Account     string
	AccessGroup string
}

// Validate checks that the fields required by the key's class are present.
func (k Key) Validate() error {
	if !k.Class.Valid() {
		return &FieldError{Field: "class", Reason: fmt.Sprintf("unknown class %d", int(k.Class))}
	}
	if k.Account == "" {
		return &FieldError{Field: "account", Reason: "required"}
	}
	switch k.Class {
	case ClassGeneric:
		if k.Service == "" {
			return &FieldError{Field: "service", Reason: "required"}
		}
	case ClassInternet:
		if k.Server == "" {
			return &FieldError{Field: "server", Reason: "required"}
		}
		if !k.Protocol.Valid() {
			return &FieldError{Field: "protocol", Reason: fmt.Sprintf("unknown protocol %q", string(k.Protocol))}
		}
		if k.Port < 0 || k.Port > 65535 {
			return &FieldError{Field: "port", Reason: fmt.Sprintf("%d out of range", k.Port)}
		}
	}
	return nil
}

// String renders the key for logs and audit records, e.g.
// "generic:com.example/alice" or "internet:https://alice@example.com:443/api".
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Class.String())
	b.WriteByte(':')
	switch k.Class {
	case ClassInternet:
		fmt.Fprintf(&b, "%s://%s@%s", k.Protocol.Name(), k.Account, k.Server)
		if k.Port != 0 {
			fmt.Fprintf(&b, ":%d", k.Port)
		}
		b.WriteString(k.Path)
	default:
		b.WriteString(k.Service)
		b.WriteByte('/')
		b.WriteString(k.Account)
	}
	if k.AccessGroup != "" {
		fmt.Fprintf(&b, " [%s]", k.AccessGroup)
	}
	return b.String()
}

// Attributes holds every attribute of an entry except its secret payload.
type Attributes struct {
	Class Class

	Service string

	Server             string
	Protocol           Protocol
	Port               int
	Path               string
	AuthenticationType AuthenticationType
	SecurityDomain     string

	Account     string
	AccessGroup string
	Accessible  Accessibility

	Label       string
	Description string
	Comment     string
	Creator     uint32
	Type        uint32
	Invisible   bool
	Negative    bool
	Generic     []byte

	CreationDate     time.Time
	ModificationDate time.Time
}

// Key extracts the identity of a.
func (a Attributes) Key() Key {
	return Key{
		Class:       a.Class,
		Service:     a.Service,
		Server:      a.Server,
		Protocol:    a.Protocol,
		Port:        a.Port,
		Path:        a.Path,
		Account:     a.Account,
		AccessGroup: a.AccessGroup,
	}
}

// Validate checks the identity plus the enumerated attributes.
func (a Attributes) Validate() error {
	if err := a.Key().Validate(); err != nil {
		return err
	}
	if !a.Accessible.Valid() {
		return &FieldError{Field: "accessible", Reason: fmt.Sprintf("unknown policy %d", int(a.Accessible))}
	}
	if !a.AuthenticationType.Valid() {
		return &FieldError{Field: "authentication_type", Reason: fmt.Sprintf("unknown authentication type %q", string(a.AuthenticationType))}
	}
	return nil
}

// Identity returns a copy of a with only the construction-time attributes
// set; every mutable field and both dates are zeroed.
func (a Attributes) Identity() Attributes {
	return Attributes{
		Class:              a.Class,
		Service:            a.Service,
		Server:             a.Server,
		Protocol:           a.Protocol,
		Port:               a.Port,
		Path:               a.Path,
		AuthenticationType: a.AuthenticationType,
		SecurityDomain:     a.SecurityDomain,
		Account:            a.Account,
		AccessGroup:        a.AccessGroup,
	}
}

// Clone returns a deep copy of a.
func (a Attributes) Clone() Attributes {
	a.Generic = bytes.Clone(a.Generic)
	return a
}

// Matches reports whether a carries the identity k.
func (a Attributes) Matches(k Key) bool {
	return a.Key() == k
}

// Field is a set of mutable attributes, used to describe what changed.
type Field uint16

const (
	FieldLabel Field = 1 << iota
	FieldDescription
	FieldComment
	FieldCreator
	FieldType
	FieldInvisible
	FieldNegative
	FieldGeneric
	FieldAccessible
	FieldData

	// FieldAttributes covers every mutable attribute except the payload.
	FieldAttributes = FieldLabel | FieldDescription | FieldComment | FieldCreator |
		FieldType | FieldInvisible | FieldNegative | FieldGeneric | FieldAccessible
)

var fieldNames = []struct {
	f    Field
	name string
}{
	{FieldLabel, "label"},
	{FieldDescription, "description"},
	{FieldComment, "comment"},
	{FieldCreator, "creator"},
	{FieldType, "type"},
	{FieldInvisible, "invisible"},
	{FieldNegative, "negative"},
	{FieldGeneric, "generic"},
	{FieldAccessible, "accessible"},
	{FieldData, "data"},
}

// Has reports whether every field in x is in f.
func (f Field) Has(x Field) bool { return f&x == x }

// Names lists the fields in f.
func (f Field) Names() []string {
	var names []string
	for _, fn := range fieldNames {
		if f.Has(fn.f) {
			names = append(names, fn.name)
		}
	}
	return names
}

func (f Field) String() string {
	if f == 0 {
		return "none"
	}
	return strings.Join(f.Names(), "|")
}

// ChangedFields returns the mutable attributes that differ between old and cur.
func ChangedFields(old, cur Attributes) Field {
	var f Field
	if old.Label != cur.Label {
		f |= FieldLabel
	}
	if old.Description != cur.Description {
		f |= FieldDescription
	}
	if old.Comment != cur.Comment {
		f |= FieldComment
	}
	if old.Creator != cur.Creator {
		f |= FieldCreator
	}
	if old.Type != cur.Type {
		f |= FieldType
	}
	if old.Invisible != cur.Invisible {
		f |= FieldInvisible
	}
	if old.Negative != cur.Negative {
		f |= FieldNegative
	}
	if !bytes.Equal(old.Generic, cur.Generic) {
		f |= FieldGeneric
	}
	if old.Accessible != cur.Accessible {
		f |= FieldAccessible
	}
	return f
}

// Apply copies the attributes named by fields from src into a.
func (a *Attributes) Apply(fields Field, src Attributes) {
	if fields.Has(FieldLabel) {
		a.Label = src.Label
	}
	if fields.Has(FieldDescription) {
		a.Description = src.Description
	}
	if fields.Has(FieldComment) {
		a.Comment = src.Comment
	}
	if fields.Has(FieldCreator) {
		a.Creator = src.Creator
	}
	if fields.Has(FieldType) {
		a.Type = src.Type
	}
	if fields.Has(FieldInvisible) {
		a.Invisible = src.Invisible
	}
	if fields.Has(FieldNegative) {
		a.Negative = src.Negative
	}
	if fields.Has(FieldGeneric) {
		a.Generic = bytes.Clone(src.Generic)
	}
	if fields.Has(FieldAccessible) {
		a.Accessible = src.Accessible
	}
}
