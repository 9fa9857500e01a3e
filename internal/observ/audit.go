package observ

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ronittamrakar/xordon/internal/models"
)

// SecurityEventStore persists audit rows. The pgx implementation lives in
// repository/postgres; tests use an in-memory fake.
type SecurityEventStore interface {
	Insert(ctx context.Context, event models.SecurityEvent) error
}

// Security event kinds. Distinct from ordinary request logs so that they
// can be alerted on separately.
const (
	EventCompanyDenied = "tenant.company_denied"
	EventRateLimited   = "ratelimit.exceeded"
	EventLockFailure   = "lock.failure"
	EventDevBypass     = "auth.dev_bypass"
)

// AuditSink writes security-relevant events to the structured log and,
// best effort, to the append-only security_events table. A storage failure
// downgrades to log-only; an audit write must never take a request down.
type AuditSink struct {
	log   *zap.Logger
	store SecurityEventStore
}

// NewAuditSink creates a sink. store may be nil (log-only), which is how
// unit tests and early startup run.
func NewAuditSink(log *zap.Logger, store SecurityEventStore) *AuditSink {
	return &AuditSink{log: log.Named("audit"), store: store}
}

// Record emits one event. details must be json-marshalable.
func (s *AuditSink) Record(ctx context.Context, kind string, userID, workspaceID int64, details map[string]any) {
	payload, err := json.Marshal(details)
	if err != nil {
		payload = []byte(`{}`)
	}

	s.log.Warn("security event",
		zap.String("kind", kind),
		zap.Int64("user_id", userID),
		zap.Int64("workspace_id", workspaceID),
		zap.Any("details", details),
	)

	if s.store == nil {
		return
	}
	event := models.SecurityEvent{
		ID:          uuid.NewString(),
		Kind:        kind,
		UserID:      userID,
		WorkspaceID: workspaceID,
		Details:     payload,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, event); err != nil {
		s.log.Error("failed to persist security event",
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
}

// CompanyDenied records a company-id header that named a company outside
// the caller's allowed set, a potential cross-tenant access attempt.
func (s *AuditSink) CompanyDenied(ctx context.Context, userID, workspaceID, requested int64, allowed []int64) {
	s.Record(ctx, EventCompanyDenied, userID, workspaceID, map[string]any{
		"requested_company_id": requested,
		"allowed_company_ids":  allowed,
	})
}

// RateLimited records an exhausted request budget.
func (s *AuditSink) RateLimited(ctx context.Context, identifier, scope string, limit int) {
	s.Record(ctx, EventRateLimited, 0, 0, map[string]any{
		"identifier": identifier,
		"scope":      scope,
		"limit":      limit,
	})
}

// LockFailure records a lock that could not be acquired or released.
func (s *AuditSink) LockFailure(ctx context.Context, key, op string, err error) {
	details := map[string]any{"key": key, "op": op}
	if err != nil {
		details["error"] = err.Error()
	}
	s.Record(ctx, EventLockFailure, 0, 0, details)
}

// DevBypass records every firing of the development identity override.
// This path is an intentional weakening of the auth contract, so it is
// always loud.
func (s *AuditSink) DevBypass(ctx context.Context, fallbackUserID int64, reason string) {
	s.Record(ctx, EventDevBypass, fallbackUserID, 0, map[string]any{
		"reason": reason,
	})
}
