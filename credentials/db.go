package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

type credentialRow struct {
	bun.BaseModel `bun:"table:credentials"`

	Token          string `bun:"token,pk"`
	TokenSecret    string `bun:"token_secret,notnull"`
	ConsumerKey    string `bun:"consumer_key,notnull"`
	ConsumerSecret string `bun:"consumer_secret,notnull"`
	ActorID        string `bun:"actor_id,notnull"`
	Nickname       string `bun:"nickname,notnull,unique"`
	DisplayName    string `bun:"display_name"`
}

// DBStore holds issued credentials in a bun-managed table
type DBStore struct {
	scheme, domain string
	db             *bun.DB
}

// NewDBStore instantiates a credential store backed by db. Actor ids are
// minted under the given scheme and domain.
func NewDBStore(scheme, domain string, db *bun.DB) *DBStore {
	return &DBStore{
		scheme: scheme,
		domain: domain,
		db:     db,
	}
}

// Init creates the credentials table if it does not exist yet.
func (s *DBStore) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*credentialRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("could not create credentials table: %w", err)
	}
	return nil
}

// Register issues a fresh four-part credential bound to nickname.
func (s *DBStore) Register(ctx context.Context, nickname, displayName string) (Credential, error) {
	exists, err := s.db.NewSelect().
		Model((*credentialRow)(nil)).
		Where("nickname = ?", nickname).
		Exists(ctx)
	if err != nil {
		return Credential{}, fmt.Errorf("could not check nickname: %w", err)
	}
	if exists {
		return Credential{}, ErrDuplicateNickname
	}

	cred, err := newCredential()
	if err != nil {
		return Credential{}, err
	}

	row := &credentialRow{
		Token:          cred.Token,
		TokenSecret:    cred.TokenSecret,
		ConsumerKey:    cred.ConsumerKey,
		ConsumerSecret: cred.ConsumerSecret,
		ActorID:        ActorID(s.scheme, s.domain, nickname),
		Nickname:       nickname,
		DisplayName:    displayName,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return Credential{}, fmt.Errorf("could not store credential: %w", err)
	}
	return cred, nil
}

// Validate resolves a presented credential to the actor it was issued
// to. Any single mismatched part fails the whole credential.
func (s *DBStore) Validate(ctx context.Context, cred Credential) (Actor, error) {
	row := new(credentialRow)
	err := s.db.NewSelect().
		Model(row).
		Where("token = ?", cred.Token).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Anonymous, ErrInvalidCredential
	}
	if err != nil {
		return Anonymous, fmt.Errorf("could not look up credential: %w", err)
	}

	stored := Credential{
		ConsumerKey:    row.ConsumerKey,
		ConsumerSecret: row.ConsumerSecret,
		Token:          row.Token,
		TokenSecret:    row.TokenSecret,
	}
	if !matches(stored, cred) {
		return Anonymous, ErrInvalidCredential
	}
	return Actor{
		ID:          row.ActorID,
		Nickname:    row.Nickname,
		DisplayName: row.DisplayName,
	}, nil
}

// Revoke removes an issued pairing by token.
func (s *DBStore) Revoke(ctx context.Context, token string) error {
	res, err := s.db.NewDelete().
		Model((*credentialRow)(nil)).
		Where("token = ?", token).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("could not revoke credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not revoke credential: %w", err)
	}
	if affected == 0 {
		return ErrUnknownToken
	}
	return nil
}
