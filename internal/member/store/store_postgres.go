package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"unionvote/internal/member/models"
	"unionvote/pkg/platform/sentinel"
)

// PostgresRegistry reads members from the members table.
type PostgresRegistry struct {
	db *sql.DB
}

func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) FindMember(ctx context.Context, memberID string) (*models.Member, error) {
	var m models.Member
	var role string
	err := r.db.QueryRowContext(ctx, `
		SELECT member_id, national_id, branch, role, active, email, phone
		FROM members WHERE member_id = $1`, memberID,
	).Scan(&m.ID, &m.NationalID, &m.Branch, &role, &m.Active, &m.Email, &m.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find member: %w: %w", sentinel.ErrUnavailable, err)
	}
	m.Role = models.Role(role)
	return &m, nil
}

func (r *PostgresRegistry) GetContact(ctx context.Context, memberID string) (models.Contact, error) {
	m, err := r.FindMember(ctx, memberID)
	if err != nil {
		return models.Contact{}, err
	}
	c, ok := m.PreferredContact()
	if !ok {
		return models.Contact{}, sentinel.ErrNotFound
	}
	return c, nil
}
