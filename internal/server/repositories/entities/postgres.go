package entities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/donets/jtrack/internal/common"
	"github.com/donets/jtrack/internal/dbx"
	"github.com/donets/jtrack/internal/domain"
)

var baseColumns = []string{"id", "location_id", "created_at", "updated_at", "deleted_at"}

// table describes how one family maps onto its SQL table.
type table[E domain.Entity] struct {
	name    string
	columns []string
	alloc   func() E
	// dest returns scan destinations for columns, in order.
	dest func(e E) []any
	// args returns insert arguments for columns, in order.
	args func(e E) []any
}

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository[E domain.Entity] struct {
	db dbx.DBTX
	t  table[E]

	selectSQL  string
	getSQL     string
	upsertSQL  string
	changedSQL string
}

func newPostgresRepository[E domain.Entity](db dbx.DBTX, t table[E]) *PostgresRepository[E] {
	cols := append(append([]string{}, baseColumns...), t.columns...)
	list := strings.Join(cols, ", ")

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	// id, location_id and created_at never change after the first write.
	sets := make([]string, 0, len(cols))
	for _, c := range cols[3:] {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}

	r := &PostgresRepository[E]{db: db, t: t}
	r.selectSQL = fmt.Sprintf("SELECT %s FROM %s", list, t.name)
	r.getSQL = r.selectSQL + " WHERE id = $1 FOR UPDATE"
	r.upsertSQL = fmt.Sprintf(`INSERT INTO %[1]s (%[2]s) VALUES (%[3]s)
		ON CONFLICT (id) DO UPDATE SET %[4]s
		WHERE %[1]s.location_id = EXCLUDED.location_id`,
		t.name, list, strings.Join(placeholders, ", "), strings.Join(sets, ", "))
	r.changedSQL = r.selectSQL + `
		WHERE location_id = $1 AND created_at <= $2
		  AND (($3::bigint IS NULL AND (deleted_at IS NULL OR deleted_at > $2)) OR updated_at > $3)
		ORDER BY created_at, id
		LIMIT $4 OFFSET $5`
	return r
}

func (r *PostgresRepository[E]) scanDest(e E) []any {
	m := e.Meta()
	base := []any{&m.ID, &m.LocationID, &m.CreatedAt, &m.UpdatedAt, &m.DeletedAt}
	return append(base, r.t.dest(e)...)
}

func (r *PostgresRepository[E]) Get(ctx context.Context, id string) (E, error) {
	e := r.t.alloc()
	err := r.db.QueryRowContext(ctx, r.getSQL, id).Scan(r.scanDest(e)...)
	if err != nil {
		var zero E
		if errors.Is(err, sql.ErrNoRows) {
			return zero, common.ErrorNotFound
		}
		return zero, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository[E]) Upsert(ctx context.Context, e E) error {
	m := e.Meta()
	args := append([]any{m.ID, m.LocationID, m.CreatedAt, m.UpdatedAt, dbx.NullInt64(m.DeletedAt)}, r.t.args(e)...)

	res, err := r.db.ExecContext(ctx, r.upsertSQL, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrForbidden
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository[E]) Changed(ctx context.Context, q ChangeQuery) ([]E, error) {
	var limit any
	if q.Limit > 0 {
		limit = q.Limit
	}
	rows, err := r.db.QueryContext(ctx, r.changedSQL, q.LocationID, q.SnapshotAt, dbx.NullInt64(q.Since), limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", r.t.name, err)
	}
	defer rows.Close()

	var result []E
	for rows.Next() {
		e := r.t.alloc()
		if err := rows.Scan(r.scanDest(e)...); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
