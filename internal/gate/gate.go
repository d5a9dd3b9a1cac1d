// Package gate implements the license-gate token contract. A token is
// {g, exp} where exp is a unix time 60 seconds after issue and g is the
// first byte of HMAC-SHA256(secret, id + ":" + exp). Gated artifacts fold g
// into their final decode keys, so they only decode after the endpoint has
// been asked for the same (id, exp) while the token is still valid.
package gate

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"strconv"
	"time"
)

// TTL is the validity window of an issued token.
const TTL = 60 * time.Second

var (
	// ErrExpired is returned when a token is requested for a past expiry.
	ErrExpired = errors.New("gate: token expired")
	// ErrNotIssued is returned for an expiry further out than any token
	// issued up to now could have.
	ErrNotIssued = errors.New("gate: expiry was never issued")
)

// Token is the endpoint's JSON response.
type Token struct {
	G   byte  `json:"g"`
	Exp int64 `json:"exp"`
}

// Derive computes g for an id and expiry.
func Derive(secret []byte, id string, exp int64) byte {
	m := hmac.New(sha256.New, secret)
	m.Write([]byte(id + ":" + strconv.FormatInt(exp, 10)))
	return m.Sum(nil)[0]
}

// Source hands out tokens to the generator.
type Source interface {
	Token(ctx context.Context, id string) (Token, error)
}

// Issuer mints tokens in process with the endpoint's secret.
type Issuer struct {
	Secret []byte
	// Now defaults to time.Now.
	Now func() time.Time
}

func (i Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

// Issue mints a token expiring TTL from now.
func (i Issuer) Issue(id string) Token {
	exp := i.now().Unix() + int64(TTL/time.Second)
	return Token{G: Derive(i.Secret, id, exp), Exp: exp}
}

// Redeem re-derives the token for a previously issued expiry. It fails
// once the expiry has passed.
func (i Issuer) Redeem(id string, exp int64) (Token, error) {
	now := i.now().Unix()
	if exp <= now {
		return Token{}, ErrExpired
	}
	if exp > now+int64(TTL/time.Second) {
		return Token{}, ErrNotIssued
	}
	return Token{G: Derive(i.Secret, id, exp), Exp: exp}, nil
}

// Token implements Source.
func (i Issuer) Token(_ context.Context, id string) (Token, error) {
	return i.Issue(id), nil
}
