package keychain

import (
	"fmt"
	"sort"
	"strings"
)

// Class is the store partition an entry lives in.
type Class int

const (
	ClassGeneric Class = iota + 1
	ClassInternet
)

func (c Class) String() string {
	switch c {
	case ClassGeneric:
		return "generic"
	case ClassInternet:
		return "internet"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Valid reports whether c is a known class.
func (c Class) Valid() bool { return c == ClassGeneric || c == ClassInternet }

// ParseClass parses "generic" or "internet".
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(s) {
	case "generic":
		return ClassGeneric, nil
	case "internet":
		return ClassInternet, nil
	}
	return 0, &FieldError{Field: "class", Reason: fmt.Sprintf("unknown class %q", s)}
}

// Accessibility controls when the OS releases a secret to the process.
// Values mirror the kSecAttrAccessible constants.
type Accessibility int

const (
	AccessibleDefault Accessibility = iota
	AccessibleWhenUnlocked
	AccessibleAfterFirstUnlock
	AccessibleAlways
	AccessibleWhenPasscodeSetThisDeviceOnly
	AccessibleWhenUnlockedThisDeviceOnly
	AccessibleAfterFirstUnlockThisDeviceOnly
	AccessibleAlwaysThisDeviceOnly
)

var accessibilityNames = [...]string{
	AccessibleDefault:                        "default",
	AccessibleWhenUnlocked:                   "when-unlocked",
	AccessibleAfterFirstUnlock:               "after-first-unlock",
	AccessibleAlways:                         "always",
	AccessibleWhenPasscodeSetThisDeviceOnly:  "when-passcode-set-this-device-only",
	AccessibleWhenUnlockedThisDeviceOnly:     "when-unlocked-this-device-only",
	AccessibleAfterFirstUnlockThisDeviceOnly: "after-first-unlock-this-device-only",
	AccessibleAlwaysThisDeviceOnly:           "always-this-device-only",
}

func (a Accessibility) String() string {
	if a.Valid() {
		return accessibilityNames[a]
	}
	return fmt.Sprintf("accessibility(%d)", int(a))
}

// Valid reports whether a is a known policy.
func (a Accessibility) Valid() bool {
	return a >= AccessibleDefault && int(a) < len(accessibilityNames)
}

// ParseAccessibility parses a policy name such as "when-unlocked".
// The empty string yields AccessibleDefault.
func ParseAccessibility(s string) (Accessibility, error) {
	if s == "" {
		return AccessibleDefault, nil
	}
	for i, name := range accessibilityNames {
		if name == s {
			return Accessibility(i), nil
		}
	}
	return 0, &FieldError{Field: "accessible", Reason: fmt.Sprintf("unknown policy %q", s)}
}

// Protocol is the four-character protocol code of an internet password.
type Protocol string

const (
	ProtocolFTP    Protocol = "ftp "
	ProtocolFTPS   Protocol = "ftps"
	ProtocolHTTP   Protocol = "http"
	ProtocolHTTPS  Protocol = "htps"
	ProtocolIMAP   Protocol = "imap"
	ProtocolIMAPS  Protocol = "imps"
	ProtocolIRC    Protocol = "irc "
	ProtocolLDAP   Protocol = "ldap"
	ProtocolLDAPS  Protocol = "ldps"
	ProtocolPOP3   Protocol = "pop3"
	ProtocolPOP3S  Protocol = "pops"
	ProtocolSMB    Protocol = "smb "
	ProtocolSMTP   Protocol = "smtp"
	ProtocolSOCKS  Protocol = "sox "
	ProtocolSSH    Protocol = "ssh "
	ProtocolTelnet Protocol = "teln"
	ProtocolSVN    Protocol = "svn "
)

var protocolNames = map[string]Protocol{
	"ftp":    ProtocolFTP,
	"ftps":   ProtocolFTPS,
	"http":   ProtocolHTTP,
	"https":  ProtocolHTTPS,
	"imap":   ProtocolIMAP,
	"imaps":  ProtocolIMAPS,
	"irc":    ProtocolIRC,
	"ldap":   ProtocolLDAP,
	"ldaps":  ProtocolLDAPS,
	"pop3":   ProtocolPOP3,
	"pop3s":  ProtocolPOP3S,
	"smb":    ProtocolSMB,
	"smtp":   ProtocolSMTP,
	"socks":  ProtocolSOCKS,
	"ssh":    ProtocolSSH,
	"telnet": ProtocolTelnet,
	"svn":    ProtocolSVN,
}

// Valid reports whether p is a known protocol code.
func (p Protocol) Valid() bool {
	for _, known := range protocolNames {
		if p == known {
			return true
		}
	}
	return false
}

// Name returns the scheme-like name of p ("https" for "htps").
func (p Protocol) Name() string {
	for name, code := range protocolNames {
		if code == p {
			return name
		}
	}
	return strings.TrimSpace(string(p))
}

// ParseProtocol accepts either a scheme name ("https") or a raw four-character
// code ("htps").
func ParseProtocol(s string) (Protocol, error) {
	if p, ok := protocolNames[strings.ToLower(s)]; ok {
		return p, nil
	}
	if p := Protocol(s); p.Valid() {
		return p, nil
	}
	return "", &FieldError{Field: "protocol", Reason: fmt.Sprintf("unknown protocol %q", s)}
}

// ProtocolNames returns the accepted scheme names, sorted.
func ProtocolNames() []string {
	names := make([]string, 0, len(protocolNames))
	for name := range protocolNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AuthenticationType is the four-character authentication scheme code of an
// internet password. The empty value means unspecified.
type AuthenticationType string

const (
	AuthenticationDefault    AuthenticationType = "dflt"
	AuthenticationNTLM       AuthenticationType = "ntlm"
	AuthenticationMSN        AuthenticationType = "msna"
	AuthenticationDPA        AuthenticationType = "dpaa"
	AuthenticationRPA        AuthenticationType = "rpaa"
	AuthenticationHTTPBasic  AuthenticationType = "http"
	AuthenticationHTTPDigest AuthenticationType = "httd"
	AuthenticationHTMLForm   AuthenticationType = "form"
)

var authenticationNames = map[string]AuthenticationType{
	"default":     AuthenticationDefault,
	"ntlm":        AuthenticationNTLM,
	"msn":         AuthenticationMSN,
	"dpa":         AuthenticationDPA,
	"rpa":         AuthenticationRPA,
	"http-basic":  AuthenticationHTTPBasic,
	"http-digest": AuthenticationHTTPDigest,
	"html-form":   AuthenticationHTMLForm,
}

// Valid reports whether t is unspecified or a known scheme code.
func (t AuthenticationType) Valid() bool {
	if t == "" {
		return true
	}
	for _, known := range authenticationNames {
		if t == known {
			return true
		}
	}
	return false
}

// ParseAuthenticationType accepts a scheme name ("http-basic"), a raw code
// ("http") or the empty string.
func ParseAuthenticationType(s string) (AuthenticationType, error) {
	if s == "" {
		return "", nil
	}
	if t, ok := authenticationNames[strings.ToLower(s)]; ok {
		return t, nil
	}
	if t := AuthenticationType(s); t.Valid() {
		return t, nil
	}
	return "", &FieldError{Field: "authentication_type", Reason: fmt.Sprintf("unknown authentication type %q", s)}
}

// FourCC packs a four-character code such as "aapl" into the integer form
// used for creator and type attributes.
func FourCC(s string) (uint32, error) {
	if len(s) != 4 {
		return 0, &FieldError{Field: "four_cc", Reason: fmt.Sprintf("%q is not four bytes", s)}
	}
	return uint32(s[0])<<24 | uint32(s[1])<<16 | uint32(s[2])<<8 | uint32(s[3]), nil
}

// FieldError reports an attribute that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Reason) }

func (e *FieldError) Unwrap() error { return ErrInvalidField }
