package revocation

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresTRL(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("revoke upserts expiry", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO revoked_tokens (jti, expires_at)")).
			WithArgs("jti-1", now.Add(time.Hour)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewPostgresTRL(db, clock).RevokeToken(context.Background(), "jti-1", time.Hour))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is not revoked", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT expires_at FROM revoked_tokens WHERE jti = $1")).
			WithArgs("jti-2").
			WillReturnError(sql.ErrNoRows)

		revoked, err := NewPostgresTRL(db, clock).IsTokenRevoked(context.Background(), "jti-2")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("live row is revoked", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT expires_at FROM revoked_tokens WHERE jti = $1")).
			WithArgs("jti-1").
			WillReturnRows(sqlmock.NewRows([]string{"expires_at"}).AddRow(now.Add(time.Minute)))

		revoked, err := NewPostgresTRL(db, clock).IsTokenRevoked(context.Background(), "jti-1")
		require.NoError(t, err)
		assert.True(t, revoked)
	})
}
