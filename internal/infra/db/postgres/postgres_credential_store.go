package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"whatsapp-course-delivery/internal/domain"
	"whatsapp-course-delivery/internal/domain/model"
	"whatsapp-course-delivery/internal/domain/ports/repository"
)

var _ repository.CredentialStore = (*credentialStore)(nil)

// credentialStore holds rotated provider tokens. The newest usable one wins;
// expired and blacklisted rows are removed by the retention sweeper.
type credentialStore struct {
	pool *pgxpool.Pool
}

func NewCredentialStore(pool *pgxpool.Pool) *credentialStore {
	return &credentialStore{pool: pool}
}

func (r *credentialStore) Active(ctx context.Context) (*model.ProviderCredential, error) {
	const q = `
SELECT id, access_token, phone_id, expires_at, blacklisted, created_at
FROM provider_credentials
WHERE NOT blacklisted AND expires_at > $1
ORDER BY created_at DESC
LIMIT 1;`

	row, err := pickRow(ctx, r.pool, nil, q, time.Now())
	if err != nil {
		return nil, err
	}
	var c model.ProviderCredential
	err = row.Scan(&c.ID, &c.AccessToken, &c.PhoneID, &c.ExpiresAt, &c.Blacklisted, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &c, nil
}

func (r *credentialStore) DeleteExpired(ctx context.Context) (int, error) {
	const q = `
DELETE FROM provider_credentials WHERE expires_at <= $1 OR blacklisted;`
	tag, err := execSQL(ctx, r.pool, nil, q, time.Now())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
