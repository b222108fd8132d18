package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"clubsite/internal/db"
	"clubsite/internal/security"
)

// ErrNoAccount is returned when the user has no linked account.
var ErrNoAccount = errors.New("no linked account")

// LinkedAccount associates a local user with a Discord identity. At most one
// row exists per user_id (unique constraint); discord_id is deliberately not
// unique. AccessToken is plaintext in memory and AES-GCM encrypted at rest
// when the store has a key.
type LinkedAccount struct {
	ID            int64
	UserID        string
	DiscordID     string
	Username      string
	Discriminator string
	Avatar        string // avatar hash, empty when the account has none
	AccessToken   string
	ExpiresAt     time.Time
	UpdatedAt     time.Time
}

type Store struct {
	db  *db.DB
	key []byte // optional; empty disables at-rest encryption
}

func NewStore(dbConn *db.DB, encryptionKey []byte) *Store {
	return &Store{db: dbConn, key: encryptionKey}
}

// FindByUser returns the user's linked account or ErrNoAccount.
func (s *Store) FindByUser(ctx context.Context, userID string) (*LinkedAccount, error) {
	var acct LinkedAccount
	var avatar *string
	var storedToken string

	err := s.db.Pool.QueryRow(ctx,
		`SELECT id, user_id, discord_id, username, discriminator, avatar, access_token, expires_at, updated_at
		 FROM discord_accounts
		 WHERE user_id = $1`,
		userID,
	).Scan(&acct.ID, &acct.UserID, &acct.DiscordID, &acct.Username, &acct.Discriminator, &avatar, &storedToken, &acct.ExpiresAt, &acct.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoAccount
		}
		return nil, fmt.Errorf("find account: %w", err)
	}

	if avatar != nil {
		acct.Avatar = *avatar
	}

	acct.AccessToken, err = s.decodeToken(storedToken)
	if err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}

	return &acct, nil
}

// Upsert creates the account or overwrites all mutable fields in place,
// keyed by user_id. The ON CONFLICT clause is the serialization point for
// concurrent link attempts on the same user.
func (s *Store) Upsert(ctx context.Context, acct *LinkedAccount) (*LinkedAccount, error) {
	storedToken, err := s.encodeToken(acct.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("encode access token: %w", err)
	}

	var avatar *string
	if acct.Avatar != "" {
		avatar = &acct.Avatar
	}

	out := *acct
	err = s.db.Pool.QueryRow(ctx,
		`INSERT INTO discord_accounts (user_id, discord_id, username, discriminator, avatar, access_token, expires_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
			discord_id    = EXCLUDED.discord_id,
			username      = EXCLUDED.username,
			discriminator = EXCLUDED.discriminator,
			avatar        = EXCLUDED.avatar,
			access_token  = EXCLUDED.access_token,
			expires_at    = EXCLUDED.expires_at,
			updated_at    = NOW()
		 RETURNING id, updated_at`,
		acct.UserID, acct.DiscordID, acct.Username, acct.Discriminator, avatar, storedToken, acct.ExpiresAt,
	).Scan(&out.ID, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert account: %w", err)
	}

	return &out, nil
}

// UpdateProfile overwrites the cached profile fields and bumps updated_at.
// Used by the lazy refresher; token and expiry are untouched.
func (s *Store) UpdateProfile(ctx context.Context, id int64, username, discriminator, avatarHash string) error {
	var avatar *string
	if avatarHash != "" {
		avatar = &avatarHash
	}

	_, err := s.db.Pool.Exec(ctx,
		`UPDATE discord_accounts
		 SET username = $1, discriminator = $2, avatar = $3, updated_at = NOW()
		 WHERE id = $4`,
		username, discriminator, avatar, id,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// Delete removes the account. Deleting an already-absent row is a no-op.
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.Pool.Exec(ctx, `DELETE FROM discord_accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

func (s *Store) encodeToken(plaintext string) (string, error) {
	if len(s.key) != 32 {
		return plaintext, nil
	}
	return security.EncryptToken(plaintext, s.key)
}

func (s *Store) decodeToken(stored string) (string, error) {
	if len(s.key) != 32 {
		return stored, nil
	}
	return security.DecryptToken(stored, s.key)
}
