package memberships

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/donets/jtrack/internal/common"
	"github.com/donets/jtrack/internal/dbx"
	"github.com/donets/jtrack/internal/domain"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Role(ctx context.Context, userID, locationID string) (domain.Role, error) {
	query := `SELECT role FROM location_memberships
		WHERE user_id = $1 AND location_id = $2 AND active`

	var role string
	err := r.db.QueryRowContext(ctx, query, userID, locationID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return domain.ParseRole(role)
}

func (r *PostgresRepository) Grant(ctx context.Context, m Membership) error {
	query := `INSERT INTO location_memberships (user_id, location_id, role, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, location_id) DO UPDATE SET role = EXCLUDED.role, active = EXCLUDED.active`

	if _, err := r.db.ExecContext(ctx, query, m.UserID, m.LocationID, string(m.Role), m.Active); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
