package pg

import (
	"context"
	"database/sql"
	"errors"

	"accessdesk.org/internal/auth"
	"accessdesk.org/internal/catalog"
	"accessdesk.org/internal/ids"
	"accessdesk.org/internal/request"
)

type RequestStore struct {
	db *sql.DB
}

var _ request.Store = (*RequestStore)(nil)

func (s *RequestStore) Create(ctx context.Context, r *request.AccessRequest) error {
	if r.ID == "" {
		r.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into requests (id, user_id, software_id, access_type, reason, status)
		values ($1, $2, $3, $4, $5, $6)
		returning created_at
	`, r.ID, r.UserID, r.SoftwareID, string(r.AccessType), r.Reason, string(r.Status)).Scan(&r.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return request.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *RequestStore) Find(ctx context.Context, id string) (request.AccessRequest, error) {
	var (
		r       request.AccessRequest
		access  string
		status  string
		updated sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, software_id, access_type, reason, status, created_at, updated_at
		from requests where id = $1
	`, id).Scan(&r.ID, &r.UserID, &r.SoftwareID, &access, &r.Reason, &status, &r.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return request.AccessRequest{}, request.ErrNotFound
	}
	if err != nil {
		return request.AccessRequest{}, err
	}
	r.AccessType = catalog.AccessLevel(access)
	r.Status = request.Status(status)
	if updated.Valid {
		r.UpdatedAt = &updated.Time
	}
	return r, nil
}

func (s *RequestStore) ListByUser(ctx context.Context, userID string) ([]request.AccessRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.user_id, r.software_id, r.access_type, r.reason, r.status, r.created_at, r.updated_at,
		       s.id, s.name, s.description, s.access_levels, s.created_at
		from requests r
		join software s on s.id = r.software_id
		where r.user_id = $1
		order by r.created_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []request.AccessRequest
	for rows.Next() {
		var (
			r       request.AccessRequest
			access  string
			status  string
			updated sql.NullTime
			sw      catalog.Software
			levels  string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.SoftwareID, &access, &r.Reason, &status, &r.CreatedAt, &updated,
			&sw.ID, &sw.Name, &sw.Description, &levels, &sw.CreatedAt); err != nil {
			return nil, err
		}
		r.AccessType = catalog.AccessLevel(access)
		r.Status = request.Status(status)
		if updated.Valid {
			r.UpdatedAt = &updated.Time
		}
		sw.AccessLevels = splitLevels(levels)
		r.Software = &sw
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *RequestStore) ListPending(ctx context.Context) ([]request.AccessRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.user_id, r.software_id, r.access_type, r.reason, r.status, r.created_at, r.updated_at,
		       u.id, u.username, u.email, u.role, u.is_active, u.created_at,
		       s.id, s.name, s.description, s.access_levels, s.created_at
		from requests r
		join users u on u.id = r.user_id
		join software s on s.id = r.software_id
		where r.status = $1
		order by r.created_at asc
	`, string(request.StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []request.AccessRequest
	for rows.Next() {
		var (
			r       request.AccessRequest
			access  string
			status  string
			updated sql.NullTime
			u       auth.User
			role    string
			sw      catalog.Software
			levels  string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.SoftwareID, &access, &r.Reason, &status, &r.CreatedAt, &updated,
			&u.ID, &u.Username, &u.Email, &role, &u.IsActive, &u.CreatedAt,
			&sw.ID, &sw.Name, &sw.Description, &levels, &sw.CreatedAt); err != nil {
			return nil, err
		}
		r.AccessType = catalog.AccessLevel(access)
		r.Status = request.Status(status)
		if updated.Valid {
			r.UpdatedAt = &updated.Time
		}
		u.Role = auth.Role(role)
		r.User = &u
		sw.AccessLevels = splitLevels(levels)
		r.Software = &sw
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Transition decides a Pending request. The row is locked for the duration
// of the transaction so concurrent deciders serialize: the first one wins,
// the rest observe a terminal status and fail with ErrAlreadyDecided. The
// status update and the history insert commit together or not at all.
func (s *RequestStore) Transition(ctx context.Context, requestID, actorID string, newStatus request.Status, comment *string) (request.Decision, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return request.Decision{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		r      request.AccessRequest
		access string
		status string
	)
	err = tx.QueryRowContext(ctx, `
		select id, user_id, software_id, access_type, reason, status, created_at
		from requests where id = $1 for update
	`, requestID).Scan(&r.ID, &r.UserID, &r.SoftwareID, &access, &r.Reason, &status, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return request.Decision{}, request.ErrNotFound
	}
	if err != nil {
		return request.Decision{}, err
	}
	r.AccessType = catalog.AccessLevel(access)
	r.Status = request.Status(status)
	if r.Status.Terminal() {
		return request.Decision{}, request.ErrAlreadyDecided
	}
	old := r.Status

	var updated sql.NullTime
	if err := tx.QueryRowContext(ctx, `
		update requests set status = $2, updated_at = now() where id = $1
		returning updated_at
	`, requestID, string(newStatus)).Scan(&updated); err != nil {
		return request.Decision{}, err
	}
	r.Status = newStatus
	if updated.Valid {
		r.UpdatedAt = &updated.Time
	}

	rec := request.HistoryRecord{
		ID:          ids.New(),
		RequestID:   requestID,
		ChangedByID: actorID,
		OldStatus:   old,
		NewStatus:   newStatus,
		Comment:     comment,
	}
	if err := tx.QueryRowContext(ctx, `
		insert into request_history (id, request_id, changed_by_id, old_status, new_status, comment)
		values ($1, $2, $3, $4, $5, $6)
		returning changed_at
	`, rec.ID, rec.RequestID, rec.ChangedByID, string(rec.OldStatus), string(rec.NewStatus), rec.Comment).Scan(&rec.ChangedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return request.Decision{}, request.ErrNotFound
		}
		return request.Decision{}, err
	}

	if err := tx.Commit(); err != nil {
		return request.Decision{}, err
	}
	return request.Decision{Request: r, History: rec}, nil
}

func (s *RequestStore) History(ctx context.Context, requestID string) ([]request.HistoryRecord, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `select 1 from requests where id = $1`, requestID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, request.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select h.id, h.request_id, h.changed_by_id, h.old_status, h.new_status, h.comment, h.changed_at,
		       u.id, u.username, u.email, u.role, u.is_active, u.created_at
		from request_history h
		join users u on u.id = h.changed_by_id
		where h.request_id = $1
		order by h.changed_at desc
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []request.HistoryRecord
	for rows.Next() {
		var (
			rec       request.HistoryRecord
			oldStatus string
			newStatus string
			comment   sql.NullString
			u         auth.User
			role      string
		)
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.ChangedByID, &oldStatus, &newStatus, &comment, &rec.ChangedAt,
			&u.ID, &u.Username, &u.Email, &role, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, err
		}
		rec.OldStatus = request.Status(oldStatus)
		rec.NewStatus = request.Status(newStatus)
		if comment.Valid {
			rec.Comment = &comment.String
		}
		u.Role = auth.Role(role)
		rec.ChangedBy = &u
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
