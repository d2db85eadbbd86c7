package credential

import (
	"bytes"
	"errors"
	"unicode/utf8"
)

var errNotUTF8 = errors.New("secret bytes are not valid UTF-8")

// secret holds the password payload. Exactly one form is authoritative; the
// other is derived on demand and cached until the next set.
//
// staged means the caller set the value and it has not been committed.
// loaded means the value was fetched from the store and mirrors it.
// Neither set means nothing is held and a read must fetch.
type secret struct {
	text    string
	data    []byte
	hasText bool
	hasData bool
	staged  bool
	loaded  bool
}

func (s *secret) held() bool { return s.staged || s.loaded }

func (s *secret) setText(v string) {
	*s = secret{text: v, hasText: true, staged: true}
}

func (s *secret) setData(v []byte) {
	if v == nil {
		v = []byte{}
	}
	*s = secret{data: bytes.Clone(v), hasData: true, staged: true}
}

func (s *secret) load(v []byte) {
	if v == nil {
		v = []byte{}
	}
	*s = secret{data: v, hasData: true, loaded: true}
}

func (s *secret) clear() { *s = secret{} }

func (s *secret) string() (string, error) {
	if !s.hasText {
		if !utf8.Valid(s.data) {
			return "", errNotUTF8
		}
		s.text = string(s.data)
		s.hasText = true
	}
	return s.text, nil
}

func (s *secret) bytes() []byte {
	if !s.hasData {
		s.data = []byte(s.text)
		s.hasData = true
	}
	return bytes.Clone(s.data)
}
