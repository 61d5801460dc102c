package audit

import (
	"time"

	id "custodia/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention (e.g., 7 years).
	// Examples: erasure lifecycle transitions, subject anonymisation.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and forensics.
	// These feed into SIEM systems and alerting pipelines.
	// Examples: denied admin access, admin mutations, token rejections.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational visibility.
	// These can be sampled or aggregated with shorter retention.
	// Examples: relay drops, ingest skips, backfill runs.
	CategoryOperations EventCategory = "operations"
)

// Event is the stored audit record. Keep it transport-agnostic so stores and
// sinks can fan out. It lives exclusively in the audit store; nothing in it
// may be used as a foreign key into primary-store rows.
type Event struct {
	ID        id.EventID
	Category  EventCategory
	Timestamp time.Time
	Action    string
	// SubjectID is the data subject concerned, as a string: the row must
	// survive even after the subject itself is erased from the primary store.
	SubjectID string
	// ErasureRequestID is the erasure request this event belongs to, when
	// request-scoped.
	ErasureRequestID string
	// Code is the durable erasure code (e.g. ER-2024-017) when one exists at
	// emit time. Recorded so the trail stays searchable by the reference
	// regulators quote.
	Code     string
	Tier     string
	Decision string
	Reason   string
	// ActorID is the operator or system principal that performed the action.
	ActorID string
	IP      string
	// RequestID is the HTTP correlation ID from request context, not the
	// erasure request.
	RequestID string
	Detail    string
}

type AuditAction string

const (
	// Erasure lifecycle events
	EventErasureRequested   AuditAction = "erasure_requested"
	EventErasureTierChanged AuditAction = "erasure_tier_changed"
	EventErasureAnonymised  AuditAction = "erasure_anonymised"
	EventErasureApproved    AuditAction = "erasure_approved"
	EventErasureRejected    AuditAction = "erasure_rejected"
	EventErasureCancelled   AuditAction = "erasure_cancelled"
	EventErasureBackfilled  AuditAction = "erasure_backfilled"

	// Subject side effects
	EventSubjectAnonymised  AuditAction = "subject_anonymised"
	EventSubjectNotesPurged AuditAction = "subject_notes_purged"
	EventSubjectErased      AuditAction = "subject_erased"

	// Security events
	EventAccessDenied  AuditAction = "access_denied"
	EventAdminMutation AuditAction = "admin_mutation"

	// Operations events
	EventRelayDropped  AuditAction = "relay_dropped"
	EventIngestSkipped AuditAction = "ingest_skipped"
	EventBackfillRun   AuditAction = "backfill_run"
)

// actionCategories maps each audit action to its category.
// Compliance: legal/regulatory significance, long retention required.
// Security: security monitoring, SIEM integration, alerting.
// Operations: debugging, operational visibility, can be sampled.
var actionCategories = map[AuditAction]EventCategory{
	// Compliance events - require tamper-proof storage
	EventErasureRequested:   CategoryCompliance,
	EventErasureTierChanged: CategoryCompliance,
	EventErasureAnonymised:  CategoryCompliance,
	EventErasureApproved:    CategoryCompliance,
	EventErasureRejected:    CategoryCompliance,
	EventErasureCancelled:   CategoryCompliance,
	EventErasureBackfilled:  CategoryCompliance,
	EventSubjectAnonymised:  CategoryCompliance,
	EventSubjectNotesPurged: CategoryCompliance,
	EventSubjectErased:      CategoryCompliance,

	// Security events - feed into SIEM and alerting
	EventAccessDenied:  CategorySecurity,
	EventAdminMutation: CategorySecurity,

	// Operations events - routine activity, can be sampled
	EventRelayDropped:  CategoryOperations,
	EventIngestSkipped: CategoryOperations,
	EventBackfillRun:   CategoryOperations,
}

// Category returns the EventCategory for this audit action.
// Unknown actions default to CategoryOperations.
func (a AuditAction) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// -----------------------------------------------------------------------------
// Right-sized event types for the recorder / relay split
// -----------------------------------------------------------------------------

// ComplianceEvent captures regulatory-significant actions requiring guaranteed
// persistence. Use with the fail-closed Recorder: if the write fails, the
// business operation must fail with it.
type ComplianceEvent struct {
	Timestamp        time.Time // When the event occurred (set automatically if zero)
	SubjectID        string    // The data subject affected
	ErasureRequestID string    // The erasure request concerned (required)
	Action           AuditAction
	Code             string // Erasure code if assigned
	Tier             string // Tier at the time of the event
	Decision         string // Outcome of the action (e.g., "approved", "rejected")
	Reason           string
	RequestID        string // Correlation ID for request tracing
	ActorID          string // Operator who performed the action
	Detail           string // Free-form context (e.g. "tier changed from X to Y")
}

// Category returns CategoryCompliance (always).
func (e ComplianceEvent) Category() EventCategory { return CategoryCompliance }

// ToEvent converts to the stored Event shape.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:         CategoryCompliance,
		Timestamp:        e.Timestamp,
		Action:           string(e.Action),
		SubjectID:        e.SubjectID,
		ErasureRequestID: e.ErasureRequestID,
		Code:             e.Code,
		Tier:             e.Tier,
		Decision:         e.Decision,
		Reason:           e.Reason,
		RequestID:        e.RequestID,
		ActorID:          e.ActorID,
		Detail:           e.Detail,
	}
}

// SecurityEvent captures security-relevant actions for SIEM and alerting.
// Recorded best-effort and relayed asynchronously; persistence failure never
// fails the guarded operation.
type SecurityEvent struct {
	Timestamp time.Time // When the event occurred (set automatically if zero)
	Subject   string    // Entity involved (actor id, IP, route)
	Action    AuditAction
	Reason    string   // Why this happened (e.g., "missing_role", "bad_token")
	IP        string   // Client IP address (critical for security forensics)
	RequestID string   // Correlation ID
	ActorID   string   // Actor if different from subject
	Severity  Severity // "info", "warning", "critical" for SIEM routing
}

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Category returns CategorySecurity (always).
func (e SecurityEvent) Category() EventCategory { return CategorySecurity }

// ToEvent converts to the stored Event shape. Severity travels in Detail so
// the store schema stays category-agnostic.
func (e SecurityEvent) ToEvent() Event {
	return Event{
		Category:  CategorySecurity,
		Timestamp: e.Timestamp,
		Action:    string(e.Action),
		SubjectID: e.Subject,
		Reason:    e.Reason,
		IP:        e.IP,
		RequestID: e.RequestID,
		ActorID:   e.ActorID,
		Detail:    string(e.Severity),
	}
}
