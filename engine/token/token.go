package token

import (
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/openmana/accountserver/engine/omlog"
)

const (
	// TOKEN_LENGTH is the length of a magic token
	TOKEN_LENGTH = 32
	// _TOKEN_RAW_BYTES is the number of random bytes behind one token
	_TOKEN_RAW_BYTES = 24

	encodeToken = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_."
)

var (
	_TokenEncoding = base64.NewEncoding(encodeToken).WithPadding(base64.NoPadding)
)

// A Dispenser generates unpredictable fixed-length opaque tokens.
type Dispenser interface {
	Next() string
}

type randomDispenser struct{}

// NewDispenser returns a Dispenser backed by the system CSPRNG.
func NewDispenser() Dispenser {
	return randomDispenser{}
}

func (randomDispenser) Next() string {
	var b [_TOKEN_RAW_BYTES]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		omlog.Panicf("token: read random failed: %v", err)
	}
	return _TokenEncoding.EncodeToString(b[:])
}

// IsValid reports whether s has the shape of a dispensed token.
func IsValid(s string) bool {
	if len(s) != TOKEN_LENGTH {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' || c == '.') {
			return false
		}
	}
	return true
}
