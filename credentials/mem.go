package credentials

import (
	"context"
	"sync"
)

type issued struct {
	cred  Credential
	actor Actor
}

// MemStore holds issued credentials in memory
type MemStore struct {
	scheme, domain string

	byToken    map[string]issued
	byNickname map[string]string

	sync.RWMutex
}

// NewMemStore instantiates a new in-memory credential store. Actor ids
// are minted under the given scheme and domain.
func NewMemStore(scheme, domain string) *MemStore {
	return &MemStore{
		scheme:     scheme,
		domain:     domain,
		byToken:    make(map[string]issued),
		byNickname: make(map[string]string),
	}
}

// Register issues a fresh four-part credential bound to nickname.
func (s *MemStore) Register(ctx context.Context, nickname, displayName string) (Credential, error) {
	cred, err := newCredential()
	if err != nil {
		return Credential{}, err
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.byNickname[nickname]; ok {
		return Credential{}, ErrDuplicateNickname
	}

	s.byToken[cred.Token] = issued{
		cred: cred,
		actor: Actor{
			ID:          ActorID(s.scheme, s.domain, nickname),
			Nickname:    nickname,
			DisplayName: displayName,
		},
	}
	s.byNickname[nickname] = cred.Token
	return cred, nil
}

// Validate resolves a presented credential to the actor it was issued
// to. Any single mismatched part fails the whole credential.
func (s *MemStore) Validate(ctx context.Context, cred Credential) (Actor, error) {
	s.RLock()
	defer s.RUnlock()

	record, ok := s.byToken[cred.Token]
	if !ok {
		return Anonymous, ErrInvalidCredential
	}
	if !matches(record.cred, cred) {
		return Anonymous, ErrInvalidCredential
	}
	return record.actor, nil
}

// Revoke removes an issued pairing by token.
func (s *MemStore) Revoke(ctx context.Context, token string) error {
	s.Lock()
	defer s.Unlock()

	record, ok := s.byToken[token]
	if !ok {
		return ErrUnknownToken
	}
	delete(s.byToken, token)
	delete(s.byNickname, record.actor.Nickname)
	return nil
}
