package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"accessdesk.org/internal/catalog"
	"accessdesk.org/internal/ids"
)

type CatalogStore struct {
	db *sql.DB
}

var _ catalog.Store = (*CatalogStore)(nil)

const softwareColumns = `id, name, description, access_levels, created_at`

func (s *CatalogStore) Create(ctx context.Context, sw *catalog.Software) error {
	if sw.ID == "" {
		sw.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into software (id, name, description, access_levels)
		values ($1, $2, $3, $4)
		returning created_at
	`, sw.ID, sw.Name, sw.Description, catalog.JoinLevels(sw.AccessLevels)).Scan(&sw.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return catalog.ErrConflict
		}
		return err
	}
	return nil
}

func (s *CatalogStore) Find(ctx context.Context, id string) (catalog.Software, error) {
	row := s.db.QueryRowContext(ctx, `select `+softwareColumns+` from software where id = $1`, id)
	return scanSoftware(row)
}

func (s *CatalogStore) FindByName(ctx context.Context, name string) (catalog.Software, error) {
	row := s.db.QueryRowContext(ctx, `select `+softwareColumns+` from software where name = $1`, name)
	return scanSoftware(row)
}

func (s *CatalogStore) List(ctx context.Context) ([]catalog.Software, error) {
	rows, err := s.db.QueryContext(ctx, `select `+softwareColumns+` from software order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []catalog.Software
	for rows.Next() {
		sw, err := scanSoftwareRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *CatalogStore) Update(ctx context.Context, id string, upd catalog.SoftwareUpdate) (catalog.Software, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", idx))
		args = append(args, *upd.Description)
		idx++
	}
	if upd.AccessLevels != nil {
		sets = append(sets, fmt.Sprintf("access_levels = $%d", idx))
		args = append(args, catalog.JoinLevels(upd.AccessLevels))
		idx++
	}
	if len(sets) > 0 {
		query := fmt.Sprintf(`update software set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return catalog.Software{}, catalog.ErrConflict
			}
			return catalog.Software{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return catalog.Software{}, err
		}
		if aff == 0 {
			return catalog.Software{}, catalog.ErrNotFound
		}
	}
	return s.Find(ctx, id)
}

func (s *CatalogStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from software where id = $1`, id)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return catalog.ErrConflict
		}
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func scanSoftware(row *sql.Row) (catalog.Software, error) {
	sw, err := scanSoftwareRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Software{}, catalog.ErrNotFound
	}
	return sw, err
}

func scanSoftwareRow(row rowScanner) (catalog.Software, error) {
	var (
		sw     catalog.Software
		levels string
	)
	if err := row.Scan(&sw.ID, &sw.Name, &sw.Description, &levels, &sw.CreatedAt); err != nil {
		return catalog.Software{}, err
	}
	sw.AccessLevels = splitLevels(levels)
	return sw, nil
}

// splitLevels decodes the comma-joined access_levels column. Unknown values
// are dropped rather than failing the read: the write path guarantees the
// closed set, so anything else is manual edits to the table.
func splitLevels(raw string) []catalog.AccessLevel {
	var out []catalog.AccessLevel
	for _, part := range strings.Split(raw, ",") {
		level, err := catalog.ParseAccessLevel(part)
		if err != nil {
			continue
		}
		out = append(out, level)
	}
	return out
}
