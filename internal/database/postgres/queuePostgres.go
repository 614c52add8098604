package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/SnowyCoder/queuify/internal/entity"
	"github.com/google/uuid"
)

type queueRepository struct {
	db *sql.DB
}

func NewQueueRepository(db *sql.DB) QueueRepository {
	return &queueRepository{db: db}
}

const queueColumns = `
	id, name, description, timezone, is_privacy_hidden, join_mode,
	expected_time_per_ticket, ticket_stats_count, fixed_ticket_time_minutes,
	created_at, updated_at`

func scanQueue(row interface{ Scan(...interface{}) error }) (*entity.Queue, error) {
	var queue entity.Queue
	err := row.Scan(
		&queue.ID,
		&queue.Name,
		&queue.Description,
		&queue.Timezone,
		&queue.IsPrivacyHidden,
		&queue.JoinMode,
		&queue.ExpectedTimePerTicket,
		&queue.TicketStatsCount,
		&queue.FixedTicketTimeMinutes,
		&queue.CreatedAt,
		&queue.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &queue, nil
}

// Create inserts a new queue, generating its id when empty
func (r *queueRepository) Create(ctx context.Context, queue *entity.Queue) error {
	if queue.ID == uuid.Nil {
		queue.ID = uuid.New()
	}

	query := `
		INSERT INTO queues (
			id, name, description, timezone, is_privacy_hidden, join_mode,
			expected_time_per_ticket, ticket_stats_count, fixed_ticket_time_minutes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		queue.ID,
		queue.Name,
		queue.Description,
		queue.Timezone,
		queue.IsPrivacyHidden,
		queue.JoinMode,
		queue.ExpectedTimePerTicket,
		queue.TicketStatsCount,
		queue.FixedTicketTimeMinutes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create queue: %w", err)
	}

	queue.CreatedAt = now
	queue.UpdatedAt = now
	return nil
}

// GetByID retrieves a queue by its ID
func (r *queueRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Queue, error) {
	query := `SELECT` + queueColumns + ` FROM queues WHERE id = $1`

	queue, err := scanQueue(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrQueueNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue: %w", err)
	}
	return queue, nil
}

func (r *queueRepository) GetAll(ctx context.Context) ([]*entity.Queue, error) {
	query := `SELECT` + queueColumns + ` FROM queues ORDER BY created_at DESC`
	return r.queryQueues(ctx, query)
}

// SearchByName finds queues whose name contains the given fragment,
// skipping URL-only queues like the public search does
func (r *queueRepository) SearchByName(ctx context.Context, name string) ([]*entity.Queue, error) {
	query := `SELECT` + queueColumns + `
		FROM queues
		WHERE name ILIKE '%' || $1 || '%' AND join_mode != $2
		ORDER BY name`
	return r.queryQueues(ctx, query, name, entity.JoinModeURLOnly)
}

func (r *queueRepository) queryQueues(ctx context.Context, query string, args ...interface{}) ([]*entity.Queue, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query queues: %w", err)
	}
	defer rows.Close()

	var queues []*entity.Queue
	for rows.Next() {
		queue, err := scanQueue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue: %w", err)
		}
		queues = append(queues, queue)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queues: %w", err)
	}
	return queues, nil
}

func (r *queueRepository) Update(ctx context.Context, queue *entity.Queue) error {
	query := `
		UPDATE queues
		SET name = $1, description = $2, timezone = $3, is_privacy_hidden = $4,
		    join_mode = $5, fixed_ticket_time_minutes = $6, updated_at = $7
		WHERE id = $8
	`

	result, err := r.db.ExecContext(ctx, query,
		queue.Name,
		queue.Description,
		queue.Timezone,
		queue.IsPrivacyHidden,
		queue.JoinMode,
		queue.FixedTicketTimeMinutes,
		time.Now(),
		queue.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update queue: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrQueueNotFound
	}
	return nil
}

// Delete removes the queue; schedule, exceptions, members and tickets go
// with it through ON DELETE CASCADE
func (r *queueRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM queues WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete queue: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrQueueNotFound
	}
	return nil
}

// GetWeeklyRanges returns the weekly schedule ordered by day of week
func (r *queueRepository) GetWeeklyRanges(ctx context.Context, queueID uuid.UUID) ([]entity.WeeklyOpenRange, error) {
	query := `
		SELECT id, queue_id, day, from_time, to_time
		FROM queue_schedule
		WHERE queue_id = $1
		ORDER BY day ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, queueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly ranges: %w", err)
	}
	defer rows.Close()

	var ranges []entity.WeeklyOpenRange
	for rows.Next() {
		var wr entity.WeeklyOpenRange
		if err := rows.Scan(&wr.ID, &wr.QueueID, &wr.Day, &wr.FromTime, &wr.ToTime); err != nil {
			return nil, fmt.Errorf("failed to scan weekly range: %w", err)
		}
		ranges = append(ranges, wr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating weekly ranges: %w", err)
	}
	return ranges, nil
}

// SetWeeklyRange upserts the schedule entry for one day of week
func (r *queueRepository) SetWeeklyRange(ctx context.Context, queueID uuid.UUID, day int, from, to entity.TimeOfDay) error {
	query := `
		INSERT INTO queue_schedule (queue_id, day, from_time, to_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (queue_id, day) DO UPDATE SET from_time = $3, to_time = $4
	`
	if _, err := r.db.ExecContext(ctx, query, queueID, day, from, to); err != nil {
		return fmt.Errorf("failed to set weekly range: %w", err)
	}
	return nil
}

func (r *queueRepository) ClearWeeklyDay(ctx context.Context, queueID uuid.UUID, day int) error {
	query := `DELETE FROM queue_schedule WHERE queue_id = $1 AND day = $2`
	if _, err := r.db.ExecContext(ctx, query, queueID, day); err != nil {
		return fmt.Errorf("failed to clear weekly day: %w", err)
	}
	return nil
}

// GetException returns the schedule exception for the date, nil when none
func (r *queueRepository) GetException(ctx context.Context, queueID uuid.UUID, day time.Time) (*entity.OpenException, error) {
	query := `
		SELECT id, queue_id, day, from_time, to_time
		FROM queue_exceptions
		WHERE queue_id = $1 AND day = $2::date
	`

	var exc entity.OpenException
	err := r.db.QueryRowContext(ctx, query, queueID, day.Format("2006-01-02")).Scan(
		&exc.ID,
		&exc.QueueID,
		&exc.Day,
		&exc.FromTime,
		&exc.ToTime,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule exception: %w", err)
	}
	return &exc, nil
}

// UpsertException replaces the exception for the date (at most one per date)
func (r *queueRepository) UpsertException(ctx context.Context, exc *entity.OpenException) error {
	query := `
		INSERT INTO queue_exceptions (queue_id, day, from_time, to_time)
		VALUES ($1, $2::date, $3, $4)
		ON CONFLICT (queue_id, day) DO UPDATE SET from_time = $3, to_time = $4
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		exc.QueueID,
		exc.Day.Format("2006-01-02"),
		exc.FromTime,
		exc.ToTime,
	).Scan(&exc.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert schedule exception: %w", err)
	}
	return nil
}

// GetMemberRole returns RoleNone when the user is not a member
func (r *queueRepository) GetMemberRole(ctx context.Context, queueID uuid.UUID, userID int64) (entity.QueueRole, error) {
	query := `SELECT role FROM queue_members WHERE queue_id = $1 AND user_id = $2`

	var role entity.QueueRole
	err := r.db.QueryRowContext(ctx, query, queueID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return entity.RoleNone, nil
	}
	if err != nil {
		return entity.RoleNone, fmt.Errorf("failed to get member role: %w", err)
	}
	return role, nil
}

func (r *queueRepository) SetMemberRole(ctx context.Context, member *entity.QueueMember) error {
	query := `
		INSERT INTO queue_members (queue_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (queue_id, user_id) DO UPDATE SET role = $3
	`
	if _, err := r.db.ExecContext(ctx, query, member.QueueID, member.UserID, member.Role); err != nil {
		return fmt.Errorf("failed to set member role: %w", err)
	}
	return nil
}

func (r *queueRepository) RemoveMember(ctx context.Context, queueID uuid.UUID, userID int64) error {
	query := `DELETE FROM queue_members WHERE queue_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, queueID, userID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

func (r *queueRepository) GetMembers(ctx context.Context, queueID uuid.UUID) ([]*entity.QueueMember, error) {
	query := `
		SELECT queue_id, user_id, role
		FROM queue_members
		WHERE queue_id = $1
		ORDER BY user_id
	`

	rows, err := r.db.QueryContext(ctx, query, queueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []*entity.QueueMember
	for rows.Next() {
		var m entity.QueueMember
		if err := rows.Scan(&m.QueueID, &m.UserID, &m.Role); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}
