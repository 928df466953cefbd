package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/communityhub/events/internal/domain/event"
	"github.com/communityhub/events/internal/observability"
	"github.com/communityhub/events/internal/query"
	"github.com/communityhub/events/internal/registration"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `id, title, description, location, date, category, capacity, is_active, created_by, attendees, created_at, updated_at`

type EventsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewEventsRepo(pool *pgxpool.Pool, prom *observability.Prom) *EventsRepo {
	return &EventsRepo{pool: pool, prom: prom}
}

func (r *EventsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (event.Event, error) {
	var e event.Event
	var attendeesRaw []byte

	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Location, &e.Date,
		&e.Category, &e.Capacity, &e.IsActive, &e.CreatedBy,
		&attendeesRaw, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return event.Event{}, err
	}

	e.Attendees = []event.Attendee{}
	if len(attendeesRaw) > 0 {
		if err := json.Unmarshal(attendeesRaw, &e.Attendees); err != nil {
			return event.Event{}, fmt.Errorf("decode attendees: %w", err)
		}
	}

	return e, nil
}

func (r *EventsRepo) Create(ctx context.Context, req event.CreateEventRequest, createdBy string) (event.Event, error) {
	if err := event.ValidateCreateRequest(req); err != nil {
		return event.Event{}, err
	}

	e := event.NewFromCreateRequest(req, createdBy)

	attendees, err := json.Marshal(e.Attendees)
	if err != nil {
		return event.Event{}, err
	}

	err = r.observe("events.create", func() error {
		_, execErr := r.pool.Exec(ctx, `
			INSERT INTO events (id, title, description, location, date, category, capacity, is_active, created_by, attendees, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, e.ID, e.Title, e.Description, e.Location, e.Date, e.Category, e.Capacity, e.IsActive, e.CreatedBy, attendees, e.CreatedAt, e.UpdatedAt)
		return execErr
	})
	if err != nil {
		return event.Event{}, err
	}

	return e, nil
}

func (r *EventsRepo) GetByID(ctx context.Context, id string) (event.Event, error) {
	var e event.Event
	err := r.observe("events.get_by_id", func() error {
		var scanErr error
		e, scanErr = scanEvent(r.pool.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	return e, nil
}

// Update merges the provided fields into the record; absent fields keep
// their stored values and the attendees column is never written here.
func (r *EventsRepo) Update(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error) {
	if req.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	sets := make([]string, 0, 8)
	args := []any{id}
	pos := 2

	appendSet := func(col string, val any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, pos))
		args = append(args, val)
		pos++
	}

	if req.Title != nil {
		appendSet("title", *req.Title)
	}
	if req.Description != nil {
		appendSet("description", *req.Description)
	}
	if req.Location != nil {
		appendSet("location", *req.Location)
	}
	if req.Date != nil {
		appendSet("date", *req.Date)
	}
	if req.Category != nil {
		appendSet("category", *req.Category)
	}
	if req.Capacity != nil {
		appendSet("capacity", *req.Capacity)
	}
	if req.IsActive != nil {
		appendSet("is_active", *req.IsActive)
	}

	sets = append(sets, "updated_at = NOW()")

	q := `UPDATE events SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING ` + eventColumns

	var e event.Event
	err := r.observe("events.update", func() error {
		var scanErr error
		e, scanErr = scanEvent(r.pool.QueryRow(ctx, q, args...))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	return e, nil
}

// ToggleActive flips the public visibility flag.
func (r *EventsRepo) ToggleActive(ctx context.Context, id string) (event.Event, error) {
	var e event.Event
	err := r.observe("events.toggle_active", func() error {
		var scanErr error
		e, scanErr = scanEvent(r.pool.QueryRow(ctx, `
			UPDATE events
			SET is_active = NOT is_active,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING `+eventColumns, id))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	return e, nil
}

// Delete removes the record. Deleting an id that is already gone reports
// ErrNotFound rather than succeeding silently.
func (r *EventsRepo) Delete(ctx context.Context, id string) error {
	var affected int64
	err := r.observe("events.delete", func() error {
		tag, execErr := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
		if execErr != nil {
			return execErr
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}

	if affected == 0 {
		return event.ErrNotFound
	}
	return nil
}

func sortClause(s query.Sort) string {
	col := "date"
	if s.Field == query.SortByTitle {
		col = "title"
	}

	dir := "ASC"
	if s.Direction == query.Desc {
		dir = "DESC"
	}

	// id tiebreak keeps the order stable across reads
	return fmt.Sprintf(" ORDER BY %s %s, id ASC", col, dir)
}

func (r *EventsRepo) List(ctx context.Context, s query.Sort) ([]event.Event, error) {
	return r.selectEvents(ctx, "events.list",
		`SELECT `+eventColumns+` FROM events`+sortClause(s))
}

// ListFiltered applies the pipeline's predicates with AND semantics and the
// order-by in a single query.
func (r *EventsRepo) ListFiltered(ctx context.Context, f query.Filter, s query.Sort) ([]event.Event, error) {
	var conds []string
	var args []any
	pos := 1

	if f.CategorySet() {
		conds = append(conds, fmt.Sprintf("category = $%d", pos))
		args = append(args, f.Category)
		pos++
	}
	if b := f.StartBound(); b != nil {
		conds = append(conds, fmt.Sprintf("date >= $%d", pos))
		args = append(args, *b)
		pos++
	}
	if b := f.EndBound(); b != nil {
		conds = append(conds, fmt.Sprintf("date <= $%d", pos))
		args = append(args, *b)
	}
	if f.OnlyActive {
		conds = append(conds, "is_active = TRUE")
	}

	q := `SELECT ` + eventColumns + ` FROM events`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += sortClause(s)

	return r.selectEvents(ctx, "events.list_filtered", q, args...)
}

// ListByCreator returns the organizer's own events, newest first.
func (r *EventsRepo) ListByCreator(ctx context.Context, createdBy string) ([]event.Event, error) {
	return r.selectEvents(ctx, "events.list_by_creator",
		`SELECT `+eventColumns+` FROM events WHERE created_by = $1 ORDER BY date DESC, id ASC`,
		createdBy)
}

func (r *EventsRepo) selectEvents(ctx context.Context, op, q string, args ...any) ([]event.Event, error) {
	var rows pgx.Rows
	err := r.observe(op, func() error {
		var qErr error
		rows, qErr = r.pool.Query(ctx, q, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]event.Event, 0)
	for rows.Next() {
		e, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, e)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return out, nil
}

// AppendAttendee adds one registration to the event's attendee list. The
// read, the duplicate/capacity checks and the append run in one transaction
// with the event row locked, so concurrent register calls serialize and the
// capacity invariant holds even under racing writers. followUp, when non-nil,
// runs inside the same transaction (confirmation job enqueue).
func (r *EventsRepo) AppendAttendee(ctx context.Context, eventID string, att event.Attendee, followUp func(ctx context.Context, tx pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var capacity *int
	var attendeesRaw []byte

	err = r.observe("events.append_attendee.lock", func() error {
		return tx.QueryRow(ctx, `
			SELECT capacity, attendees
			FROM events
			WHERE id = $1
			FOR UPDATE
		`, eventID).Scan(&capacity, &attendeesRaw)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.ErrNotFound
		}
		return err
	}

	var attendees []event.Attendee
	if len(attendeesRaw) > 0 {
		if err = json.Unmarshal(attendeesRaw, &attendees); err != nil {
			return fmt.Errorf("decode attendees: %w", err)
		}
	}

	for _, existing := range attendees {
		if existing.UserID == att.UserID {
			return registration.ErrAlreadyRegistered
		}
	}

	if capacity != nil && len(attendees) >= *capacity {
		return registration.ErrEventFull
	}

	entry, err := json.Marshal([]event.Attendee{att})
	if err != nil {
		return err
	}

	err = r.observe("events.append_attendee.write", func() error {
		_, execErr := tx.Exec(ctx, `
			UPDATE events
			SET attendees = attendees || $2::jsonb,
			    updated_at = NOW()
			WHERE id = $1
		`, eventID, entry)
		return execErr
	})
	if err != nil {
		return err
	}

	if followUp != nil {
		if err = followUp(ctx, tx); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// RemoveAttendee drops the registration whose userId matches, by value.
// Locking the row keeps a concurrent append from being lost by the rewrite.
func (r *EventsRepo) RemoveAttendee(ctx context.Context, eventID, userID string) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var attendeesRaw []byte
	err = r.observe("events.remove_attendee.lock", func() error {
		return tx.QueryRow(ctx, `
			SELECT attendees
			FROM events
			WHERE id = $1
			FOR UPDATE
		`, eventID).Scan(&attendeesRaw)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.ErrNotFound
		}
		return err
	}

	var attendees []event.Attendee
	if len(attendeesRaw) > 0 {
		if err = json.Unmarshal(attendeesRaw, &attendees); err != nil {
			return fmt.Errorf("decode attendees: %w", err)
		}
	}

	found := false
	for _, existing := range attendees {
		if existing.UserID == userID {
			found = true
			break
		}
	}
	if !found {
		return registration.ErrNotRegistered
	}

	err = r.observe("events.remove_attendee.write", func() error {
		_, execErr := tx.Exec(ctx, `
			UPDATE events
			SET attendees = (
			        SELECT COALESCE(jsonb_agg(elem), '[]'::jsonb)
			        FROM jsonb_array_elements(attendees) AS elem
			        WHERE elem->>'userId' <> $2
			    ),
			    updated_at = NOW()
			WHERE id = $1
		`, eventID, userID)
		return execErr
	})
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
