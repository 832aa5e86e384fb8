package cloud

import (
	nanoid "github.com/jaevor/go-nanoid"
)

const shareTokenLength = 32

// TokenIssuer mints unguessable share tokens. A fresh token is issued
// on every private-to-public transition, so a leaked token dies for
// good the moment the record goes private.
type TokenIssuer struct {
	generate func() string
}

func NewTokenIssuer() (*TokenIssuer, error) {
	gen, err := nanoid.Standard(shareTokenLength)
	if err != nil {
		return nil, err
	}
	return &TokenIssuer{generate: gen}, nil
}

func (t *TokenIssuer) NewToken() string {
	return t.generate()
}
