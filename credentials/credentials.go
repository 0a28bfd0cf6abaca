package credentials

import (
	"context"
	"errors"
	"net/url"

	"github.com/gofrs/uuid"
)

// ErrInvalidCredential is returned when any part of a presented
// credential does not match an issued, unrevoked pairing. Callers are
// told nothing about which part was wrong.
var ErrInvalidCredential = errors.New("invalid credential")

// ErrDuplicateNickname is returned when registering a nickname that
// already holds a credential
var ErrDuplicateNickname = errors.New("nickname already registered")

// ErrUnknownToken is returned when revoking a token that was never
// issued or is already revoked
var ErrUnknownToken = errors.New("unknown token")

// Credential is the four-part tuple presented with a signed request.
// The parts are opaque here; the signing scheme that carries them over
// the wire is someone else's problem.
type Credential struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

// Actor is the authenticated identity a valid credential resolves to.
// The zero Actor is the anonymous identity.
type Actor struct {
	ID          string
	Nickname    string
	DisplayName string
}

// Anonymous is the identity of a request that carried no credential at
// all. It is a valid identity for read decisions, not an error.
var Anonymous = Actor{}

// IsAnonymous reports whether a is the anonymous identity.
func (a Actor) IsAnonymous() bool {
	return a.ID == ""
}

// Store issues and verifies credentials. Validate is a pure lookup with
// no side effects.
type Store interface {
	Register(ctx context.Context, nickname, displayName string) (Credential, error)
	Validate(ctx context.Context, cred Credential) (Actor, error)
	Revoke(ctx context.Context, token string) error
}

// ActorID is the canonical identity URL for a registered nickname.
func ActorID(scheme, domain, nickname string) string {
	u := url.URL{
		Scheme: scheme,
		Host:   domain,
		Path:   "/api/user/" + nickname,
	}
	return u.String()
}

func newPart() (string, error) {
	part, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return part.String(), nil
}

func newCredential() (Credential, error) {
	var cred Credential
	var err error

	if cred.ConsumerKey, err = newPart(); err != nil {
		return Credential{}, err
	}
	if cred.ConsumerSecret, err = newPart(); err != nil {
		return Credential{}, err
	}
	if cred.Token, err = newPart(); err != nil {
		return Credential{}, err
	}
	if cred.TokenSecret, err = newPart(); err != nil {
		return Credential{}, err
	}
	return cred, nil
}

// matches reports whether presented matches issued in all four parts.
func matches(issued, presented Credential) bool {
	return issued.ConsumerKey == presented.ConsumerKey &&
		issued.ConsumerSecret == presented.ConsumerSecret &&
		issued.Token == presented.Token &&
		issued.TokenSecret == presented.TokenSecret
}
