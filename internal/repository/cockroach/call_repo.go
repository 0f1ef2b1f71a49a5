package cockroach

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nutritrack-signaling/internal/domain"
)

const callColumns = `call_id, caller_id, receiver_id, call_type, status, room_reference,
		       started_at, ended_at, duration_seconds`

// CallRepository handles call data operations
type CallRepository struct {
	pool *pgxpool.Pool
}

// NewCallRepository creates a new call repository
func NewCallRepository(pool *pgxpool.Pool) *CallRepository {
	return &CallRepository{pool: pool}
}

// Create inserts a new call record and returns its id
func (r *CallRepository) Create(ctx context.Context, call *domain.Call) (uuid.UUID, error) {
	if call.CallID == uuid.Nil {
		call.CallID = uuid.New()
	}

	query := `
		INSERT INTO calls (
			call_id, caller_id, receiver_id, call_type, status, room_reference,
			started_at, ended_at, duration_seconds
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		call.CallID,
		call.CallerID,
		call.ReceiverID,
		call.CallType,
		call.Status,
		call.RoomReference,
		call.StartedAt,
		call.EndedAt,
		call.DurationSeconds,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create call: %w", err)
	}

	return call.CallID, nil
}

// FindLatest returns the most recent call from callerID to receiverID whose
// status is one of statuses, or nil if there is none.
func (r *CallRepository) FindLatest(ctx context.Context, callerID, receiverID uuid.UUID, statuses []domain.CallStatus) (*domain.Call, error) {
	query := `
		SELECT ` + callColumns + `
		FROM calls
		WHERE caller_id = $1 AND receiver_id = $2 AND status = ANY($3)
		ORDER BY started_at DESC
		LIMIT 1
	`

	call, err := scanCall(r.pool.QueryRow(ctx, query, callerID, receiverID, statusStrings(statuses)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find call: %w", err)
	}

	return call, nil
}

// Update applies upd to the call only while its status is one of upd.From.
// It reports whether a row changed.
func (r *CallRepository) Update(ctx context.Context, callID uuid.UUID, upd *domain.CallUpdate) (bool, error) {
	if len(upd.From) == 0 {
		return false, fmt.Errorf("call update requires at least one expected status")
	}

	query := `
		UPDATE calls
		SET status = $2,
		    ended_at = COALESCE($3, ended_at),
		    duration_seconds = COALESCE($4, duration_seconds)
		WHERE call_id = $1 AND status = ANY($5)
	`

	result, err := r.pool.Exec(ctx, query,
		callID,
		upd.Status,
		upd.EndedAt,
		upd.DurationSeconds,
		statusStrings(upd.From),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update call: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// GetByID retrieves a call by ID
func (r *CallRepository) GetByID(ctx context.Context, callID uuid.UUID) (*domain.Call, error) {
	query := `
		SELECT ` + callColumns + `
		FROM calls
		WHERE call_id = $1
	`

	call, err := scanCall(r.pool.QueryRow(ctx, query, callID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("failed to get call: %w", err)
	}

	return call, nil
}

// GetUserCalls retrieves calls the user placed or received, newest first,
// plus the total count
func (r *CallRepository) GetUserCalls(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Call, int, error) {
	query := `
		SELECT ` + callColumns + `
		FROM calls
		WHERE caller_id = $1 OR receiver_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get user calls: %w", err)
	}
	defer rows.Close()

	calls := make([]*domain.Call, 0, limit)
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan call: %w", err)
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate calls: %w", err)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM calls WHERE caller_id = $1 OR receiver_id = $1`
	if err := r.pool.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count calls: %w", err)
	}

	return calls, total, nil
}

func scanCall(row pgx.Row) (*domain.Call, error) {
	call := &domain.Call{}
	err := row.Scan(
		&call.CallID,
		&call.CallerID,
		&call.ReceiverID,
		&call.CallType,
		&call.Status,
		&call.RoomReference,
		&call.StartedAt,
		&call.EndedAt,
		&call.DurationSeconds,
	)
	if err != nil {
		return nil, err
	}
	return call, nil
}

func statusStrings(statuses []domain.CallStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
