// Package call implements the call session state machine:
//
//	calling -> accepted -> ended
//	calling -> missed            receiver unreachable at initiation
//	calling -> declined
//	calling -> ended             caller hangs up before pickup
//
// Signaling always takes priority over bookkeeping: a failed record or
// notification write is logged and the signal is still sent.
package call

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutritrack-signaling/internal/domain"
	"nutritrack-signaling/internal/repository/cockroach"
	"nutritrack-signaling/internal/service/notification"
	"nutritrack-signaling/pkg/constants"
	apperrors "nutritrack-signaling/pkg/errors"
	"nutritrack-signaling/pkg/logger"
	"nutritrack-signaling/pkg/metrics"
)

// Repository is the CallRecord store
type Repository interface {
	Create(ctx context.Context, call *domain.Call) (uuid.UUID, error)
	FindLatest(ctx context.Context, callerID, receiverID uuid.UUID, statuses []domain.CallStatus) (*domain.Call, error)
	Update(ctx context.Context, callID uuid.UUID, upd *domain.CallUpdate) (bool, error)
	GetByID(ctx context.Context, callID uuid.UUID) (*domain.Call, error)
	GetUserCalls(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Call, int, error)
}

// NotificationSink stores missed-call alerts
type NotificationSink interface {
	CreateMissedCall(ctx context.Context, input *notification.MissedCallInput) (*domain.Notification, error)
}

// IdentityResolver returns display information for a user
type IdentityResolver interface {
	GetIdentity(ctx context.Context, userID uuid.UUID) (*domain.Identity, error)
}

// Signaler pushes an event to a user's live connection. It returns false
// when the user has no registered connection.
type Signaler interface {
	Send(ctx context.Context, userID uuid.UUID, event string, data interface{}) bool
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics attaches call metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLockStripes sets the number of pair lock stripes
func WithLockStripes(n int) Option {
	return func(s *Service) { s.locks = newPairLocks(n) }
}

// Service coordinates call lifecycle events
type Service struct {
	calls         Repository
	notifications NotificationSink
	identities    IdentityResolver
	signaler      Signaler
	metrics       *metrics.Metrics
	locks         *pairLocks
	now           func() time.Time
}

// NewService creates a new call coordinator
func NewService(calls Repository, notifications NotificationSink, identities IdentityResolver, signaler Signaler, opts ...Option) *Service {
	s := &Service{
		calls:         calls,
		notifications: notifications,
		identities:    identities,
		signaler:      signaler,
		locks:         newPairLocks(64),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitiateInput contains call initiation data
type InitiateInput struct {
	CallerID   uuid.UUID
	ReceiverID uuid.UUID
	CallType   domain.CallType
}

// InitiateOutput describes the call that was created
type InitiateOutput struct {
	Call      *domain.Call
	Delivered bool
}

// PairInput identifies the call pair of an accept, decline or end event
type PairInput struct {
	CallerID   uuid.UUID
	ReceiverID uuid.UUID
}

// TransitionOutput reports what an accept, decline or end did.
// Call is nil when no record matched.
type TransitionOutput struct {
	Call      *domain.Call
	Updated   bool
	Delivered bool
}

// Initiate creates a call record and rings the receiver. If the receiver
// is unreachable the call is marked missed and a notification is stored.
// Only invalid input or an unresolvable caller returns an error.
func (s *Service) Initiate(ctx context.Context, input *InitiateInput) (*InitiateOutput, error) {
	if err := validatePair(input.CallerID, input.ReceiverID); err != nil {
		return nil, err
	}
	if !input.CallType.Valid() {
		return nil, apperrors.ValidationError("callType must be audio or video")
	}

	caller, err := s.identities.GetIdentity(ctx, input.CallerID)
	if err != nil {
		logger.Warn("Call initiation dropped: caller identity unresolved",
			zap.String("caller_id", input.CallerID.String()),
			zap.Error(err))
		if errors.Is(err, cockroach.ErrUserNotFound) {
			return nil, apperrors.UserNotFoundError()
		}
		return nil, apperrors.ServiceUnavailableError("identity lookup failed")
	}

	unlock := s.locks.lock(input.CallerID, input.ReceiverID)
	defer unlock()

	call := &domain.Call{
		CallID:        uuid.New(),
		CallerID:      input.CallerID,
		ReceiverID:    input.ReceiverID,
		CallType:      input.CallType,
		Status:        domain.CallStatusCalling,
		RoomReference: uuid.NewString(),
		StartedAt:     s.now().UTC(),
	}

	persisted := s.createRecord(ctx, call)

	delivered := s.signaler.Send(ctx, input.ReceiverID, domain.EventIncomingCall, &domain.IncomingCallPayload{
		CallerID:      call.CallerID,
		CallerName:    caller.DisplayName,
		CallType:      call.CallType,
		CallID:        call.CallID,
		RoomReference: call.RoomReference,
	})

	if delivered {
		s.metrics.RecordCall(string(call.CallType), string(domain.CallStatusCalling))
		logger.Info("Call ringing",
			zap.String("call_id", call.CallID.String()),
			zap.String("caller_id", call.CallerID.String()),
			zap.String("receiver_id", call.ReceiverID.String()),
			zap.String("call_type", string(call.CallType)))
		return &InitiateOutput{Call: call, Delivered: true}, nil
	}

	call.Status = domain.CallStatusMissed
	if persisted {
		s.applyUpdate(ctx, domain.EventCallUser, call.CallID, &domain.CallUpdate{
			From:   []domain.CallStatus{domain.CallStatusCalling},
			Status: domain.CallStatusMissed,
		})
	}

	s.storeMissedCall(ctx, call, caller.DisplayName)
	s.metrics.RecordCall(string(call.CallType), string(domain.CallStatusMissed))
	logger.Info("Call missed: receiver unreachable",
		zap.String("call_id", call.CallID.String()),
		zap.String("caller_id", call.CallerID.String()),
		zap.String("receiver_id", call.ReceiverID.String()))

	return &InitiateOutput{Call: call, Delivered: false}, nil
}

// Accept moves the latest calling record of the pair to accepted and tells
// the caller. The signal is sent even when no record matches.
func (s *Service) Accept(ctx context.Context, input *PairInput) (*TransitionOutput, error) {
	return s.answer(ctx, input, domain.EventAcceptCall, domain.CallStatusAccepted, domain.EventCallAccepted)
}

// Decline moves the latest calling record of the pair to declined and tells
// the caller. The signal is sent even when no record matches.
func (s *Service) Decline(ctx context.Context, input *PairInput) (*TransitionOutput, error) {
	return s.answer(ctx, input, domain.EventDeclineCall, domain.CallStatusDeclined, domain.EventCallDeclined)
}

func (s *Service) answer(ctx context.Context, input *PairInput, event string, to domain.CallStatus, signal string) (*TransitionOutput, error) {
	if err := validatePair(input.CallerID, input.ReceiverID); err != nil {
		return nil, err
	}

	out := &TransitionOutput{}

	unlock := s.locks.lock(input.CallerID, input.ReceiverID)
	call := s.findLatest(ctx, event, input, domain.CallStatusCalling)
	if call != nil {
		out.Call = call
		out.Updated = s.applyUpdate(ctx, event, call.CallID, &domain.CallUpdate{
			From:   []domain.CallStatus{domain.CallStatusCalling},
			Status: to,
		})
		if out.Updated {
			call.Status = to
		}
	}
	unlock()

	payload := &domain.CallStatusPayload{CallerID: input.CallerID, ReceiverID: input.ReceiverID}
	if call != nil {
		payload.CallID = &call.CallID
	}
	out.Delivered = s.signaler.Send(ctx, input.CallerID, signal, payload)

	return out, nil
}

// End moves the latest accepted or calling record of the pair to ended,
// stamps endedAt and the whole-second duration since startedAt, and sends
// call-ended to both parties. A repeated End finds no matching record and
// only re-sends the signal.
func (s *Service) End(ctx context.Context, input *PairInput) (*TransitionOutput, error) {
	if err := validatePair(input.CallerID, input.ReceiverID); err != nil {
		return nil, err
	}

	out := &TransitionOutput{}
	payload := &domain.CallStatusPayload{CallerID: input.CallerID, ReceiverID: input.ReceiverID}

	unlock := s.locks.lock(input.CallerID, input.ReceiverID)
	call := s.findLatest(ctx, domain.EventEndCall, input, domain.CallStatusAccepted, domain.CallStatusCalling)
	if call != nil {
		out.Call = call
		payload.CallID = &call.CallID

		endedAt := s.now().UTC()
		duration := domain.DurationSeconds(call.StartedAt, endedAt)
		out.Updated = s.applyUpdate(ctx, domain.EventEndCall, call.CallID, &domain.CallUpdate{
			From:            []domain.CallStatus{domain.CallStatusAccepted, domain.CallStatusCalling},
			Status:          domain.CallStatusEnded,
			EndedAt:         &endedAt,
			DurationSeconds: &duration,
		})
		if out.Updated {
			call.Status = domain.CallStatusEnded
			call.EndedAt = &endedAt
			call.DurationSeconds = duration
			payload.DurationSeconds = &duration
			s.metrics.RecordCallDuration(string(call.CallType), time.Duration(duration)*time.Second)
		}
	}
	unlock()

	toCaller := s.signaler.Send(ctx, input.CallerID, domain.EventCallEnded, payload)
	toReceiver := s.signaler.Send(ctx, input.ReceiverID, domain.EventCallEnded, payload)
	out.Delivered = toCaller || toReceiver

	return out, nil
}

// GetCall returns a call the user took part in
func (s *Service) GetCall(ctx context.Context, userID, callID uuid.UUID) (*domain.Call, error) {
	call, err := s.calls.GetByID(ctx, callID)
	if err != nil {
		if errors.Is(err, cockroach.ErrCallNotFound) {
			return nil, apperrors.CallNotFoundError()
		}
		return nil, apperrors.DatabaseError(err)
	}
	if call.CallerID != userID && call.ReceiverID != userID {
		// Hide calls of other users.
		return nil, apperrors.CallNotFoundError()
	}
	return call, nil
}

// HistoryOutput is one page of a user's call history
type HistoryOutput struct {
	Calls      []*domain.Call `json:"calls"`
	TotalCount int            `json:"total_count"`
	HasMore    bool           `json:"has_more"`
}

// GetHistory lists calls the user placed or received, newest first
func (s *Service) GetHistory(ctx context.Context, userID uuid.UUID, limit, offset int) (*HistoryOutput, error) {
	calls, total, err := s.calls.GetUserCalls(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return &HistoryOutput{
		Calls:      calls,
		TotalCount: total,
		HasMore:    offset+len(calls) < total,
	}, nil
}

func (s *Service) createRecord(ctx context.Context, call *domain.Call) bool {
	pctx, cancel := persistContext(ctx)
	defer cancel()

	if _, err := s.calls.Create(pctx, call); err != nil {
		s.metrics.RecordPersistenceError("create_call")
		logger.Error("Failed to persist call record",
			zap.String("call_id", call.CallID.String()),
			zap.Error(err))
		return false
	}
	s.metrics.RecordCallTransition(string(call.Status))
	return true
}

func (s *Service) findLatest(ctx context.Context, event string, input *PairInput, statuses ...domain.CallStatus) *domain.Call {
	pctx, cancel := persistContext(ctx)
	defer cancel()

	call, err := s.calls.FindLatest(pctx, input.CallerID, input.ReceiverID, statuses)
	if err != nil {
		s.metrics.RecordPersistenceError("find_call")
		logger.Error("Failed to look up call record",
			zap.String("event", event),
			zap.String("caller_id", input.CallerID.String()),
			zap.String("receiver_id", input.ReceiverID.String()),
			zap.Error(err))
		return nil
	}
	if call == nil {
		s.metrics.RecordStateMismatch(event)
		logger.Warn("No matching call record",
			zap.String("event", event),
			zap.String("caller_id", input.CallerID.String()),
			zap.String("receiver_id", input.ReceiverID.String()))
	}
	return call
}

func (s *Service) applyUpdate(ctx context.Context, event string, callID uuid.UUID, upd *domain.CallUpdate) bool {
	pctx, cancel := persistContext(ctx)
	defer cancel()

	updated, err := s.calls.Update(pctx, callID, upd)
	if err != nil {
		s.metrics.RecordPersistenceError("update_call")
		logger.Error("Failed to update call record",
			zap.String("event", event),
			zap.String("call_id", callID.String()),
			zap.String("status", string(upd.Status)),
			zap.Error(err))
		return false
	}
	if !updated {
		s.metrics.RecordStateMismatch(event)
		logger.Warn("Call record changed concurrently",
			zap.String("event", event),
			zap.String("call_id", callID.String()))
		return false
	}
	s.metrics.RecordCallTransition(string(upd.Status))
	return true
}

func (s *Service) storeMissedCall(ctx context.Context, call *domain.Call, callerName string) {
	pctx, cancel := persistContext(ctx)
	defer cancel()

	_, err := s.notifications.CreateMissedCall(pctx, &notification.MissedCallInput{
		CallID:     call.CallID,
		CallerID:   call.CallerID,
		CallerName: callerName,
		ReceiverID: call.ReceiverID,
		CallType:   call.CallType,
		At:         call.StartedAt,
	})
	if err != nil {
		s.metrics.RecordPersistenceError("create_notification")
		logger.Error("Failed to store missed call notification",
			zap.String("call_id", call.CallID.String()),
			zap.String("receiver_id", call.ReceiverID.String()),
			zap.Error(err))
	}
}

// persistContext detaches bookkeeping writes from the inbound event so a
// dropped connection does not cancel them.
func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), constants.PersistenceTimeout)
}

func validatePair(callerID, receiverID uuid.UUID) error {
	if callerID == uuid.Nil {
		return apperrors.MissingFieldError("callerId")
	}
	if receiverID == uuid.Nil {
		return apperrors.MissingFieldError("receiverId")
	}
	if callerID == receiverID {
		return apperrors.ValidationError("callerId and receiverId must differ")
	}
	return nil
}
