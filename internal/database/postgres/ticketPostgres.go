package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/SnowyCoder/queuify/internal/entity"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type ticketRepository struct {
	db *sql.DB
}

func NewTicketRepository(db *sql.DB) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `
	id, queue_id, user_id, creation_time, requested_time, state,
	closure_time, wait_time_secs, cancel_message`

func scanTicket(row interface{ Scan(...interface{}) error }) (*entity.Ticket, error) {
	var ticket entity.Ticket
	err := row.Scan(
		&ticket.ID,
		&ticket.QueueID,
		&ticket.UserID,
		&ticket.CreationTime,
		&ticket.RequestedTime,
		&ticket.State,
		&ticket.ClosureTime,
		&ticket.WaitTimeSecs,
		&ticket.CancelMessage,
	)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// isSlotConflict reports whether err is the unique violation raised by
// uq_tickets_open_slot when another open ticket holds the same instant.
func isSlotConflict(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505" && pqErr.Constraint == "uq_tickets_open_slot"
}

// Create inserts the ticket. The occupancy pre-check gives a friendly error
// for the common case; the uq_tickets_open_slot index is what actually
// serializes two concurrent requests for the same slot.
// slotMinutes is nil for continuous-mode queues, which skips the pre-check.
func (r *ticketRepository) Create(ctx context.Context, ticket *entity.Ticket, slotMinutes *int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if slotMinutes != nil {
		slotEnd := ticket.RequestedTime.Add(time.Duration(*slotMinutes) * time.Minute)

		var taken int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM tickets
			WHERE queue_id = $1 AND state = $2
			  AND requested_time >= $3 AND requested_time < $4
		`, ticket.QueueID, entity.TicketStateOpen, ticket.RequestedTime, slotEnd).Scan(&taken)
		if err != nil {
			return fmt.Errorf("failed to check slot occupancy: %w", err)
		}
		if taken > 0 {
			return entity.ErrSlotTaken
		}
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO tickets (queue_id, user_id, creation_time, requested_time, state)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, ticket.QueueID, ticket.UserID, ticket.CreationTime, ticket.RequestedTime, ticket.State).Scan(&ticket.ID)
	if err != nil {
		if isSlotConflict(err) {
			return entity.ErrSlotTaken
		}
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a ticket by its ID
func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*entity.Ticket, error) {
	query := `SELECT` + ticketColumns + ` FROM tickets WHERE id = $1`

	ticket, err := scanTicket(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return ticket, nil
}

// ListOpenBetween returns the queue's open tickets with requested_time in
// [from, to), ordered by requested_time ascending. The availability scan
// relies on that ordering.
func (r *ticketRepository) ListOpenBetween(ctx context.Context, queueID uuid.UUID, from, to time.Time) ([]*entity.Ticket, error) {
	query := `SELECT` + ticketColumns + `
		FROM tickets
		WHERE queue_id = $1 AND state = $2
		  AND requested_time >= $3 AND requested_time < $4
		ORDER BY requested_time ASC`
	return r.queryTickets(ctx, query, queueID, entity.TicketStateOpen, from, to)
}

func (r *ticketRepository) ListByUser(ctx context.Context, userID int64) ([]*entity.Ticket, error) {
	query := `SELECT` + ticketColumns + `
		FROM tickets
		WHERE user_id = $1
		ORDER BY requested_time DESC`
	return r.queryTickets(ctx, query, userID)
}

// ListOpenBefore returns open tickets requested strictly before the given
// instant, across all queues. Used by the stale ticket worker.
func (r *ticketRepository) ListOpenBefore(ctx context.Context, before time.Time) ([]*entity.Ticket, error) {
	query := `SELECT` + ticketColumns + `
		FROM tickets
		WHERE state = $1 AND requested_time < $2
		ORDER BY requested_time ASC`
	return r.queryTickets(ctx, query, entity.TicketStateOpen, before)
}

func (r *ticketRepository) queryTickets(ctx context.Context, query string, args ...interface{}) ([]*entity.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*entity.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}
	return tickets, nil
}

// Close writes the ticket's terminal state and, when stats is not nil, the
// queue's updated wait time estimate in the same transaction. The ticket
// row is guarded by state = 'open', so a ticket already closed by a
// concurrent request fails with ErrInvalidTicketState.
func (r *ticketRepository) Close(ctx context.Context, ticket *entity.Ticket, stats *QueueStatsUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE tickets
		SET state = $1, closure_time = $2, wait_time_secs = $3, cancel_message = $4
		WHERE id = $5 AND state = $6
	`, ticket.State, ticket.ClosureTime, ticket.WaitTimeSecs, ticket.CancelMessage,
		ticket.ID, entity.TicketStateOpen)
	if err != nil {
		return fmt.Errorf("failed to close ticket: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrInvalidTicketState
	}

	if stats != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE queues
			SET expected_time_per_ticket = $1, ticket_stats_count = $2, updated_at = $3
			WHERE id = $4
		`, stats.ExpectedTimePerTicket, stats.TicketStatsCount, time.Now(), stats.QueueID)
		if err != nil {
			return fmt.Errorf("failed to update queue stats: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
