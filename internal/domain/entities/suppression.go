package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// SuppressionReason classifies why a listing was, or may be, suppressed.
type SuppressionReason string

const (
	// Public intake reasons, derived from the requester's stated relationship.
	ReasonFamilyRequest SuppressionReason = "family_request"
	ReasonFuneralHome   SuppressionReason = "funeral_home_request"

	// Privileged reasons, only reachable through the admin gateway.
	ReasonAdminAction SuppressionReason = "admin_action"
	ReasonLegalNotice SuppressionReason = "legal_notice"
	ReasonPrivacy     SuppressionReason = "privacy"
)

// Valid reports whether the reason is one of the known values.
func (r SuppressionReason) Valid() bool {
	switch r {
	case ReasonFamilyRequest, ReasonFuneralHome, ReasonAdminAction, ReasonLegalNotice, ReasonPrivacy:
		return true
	}
	return false
}

// Privileged reports whether the reason may only be recorded by an operator.
func (r SuppressionReason) Privileged() bool {
	switch r {
	case ReasonAdminAction, ReasonLegalNotice, ReasonPrivacy:
		return true
	}
	return false
}

// ReasonFromRelationship maps a requester's self-declared relationship onto
// an intake reason. Unknown relationships map to the empty reason.
func ReasonFromRelationship(relationship string) SuppressionReason {
	switch relationship {
	case "immediate_family", "extended_family", "family":
		return ReasonFamilyRequest
	case "funeral_home", "funeral_director":
		return ReasonFuneralHome
	}
	return ""
}

// RecordState is the derived lifecycle state of a suppression record.
type RecordState string

const (
	StatePending            RecordState = "pending"
	StateVerifiedSuppressed RecordState = "verified_suppressed"
	StateAdminSuppressed    RecordState = "admin_suppressed"
	StateUnsuppressed       RecordState = "unsuppressed"
)

// SuppressionRecord is one row of the suppression ledger. Rows are append
// mostly: verification and review mutate a row in place, unsuppression
// clears the republish block but keeps the audit timestamps.
type SuppressionRecord struct {
	ID                 uuid.UUID
	SubjectID          string
	ContentFingerprint string

	// Snapshot of the listing at request time. The ledger must stay
	// meaningful even if the listing is later edited or deleted.
	SubjectName string
	DateOfDeath null.Time

	RequesterName         string
	RequesterEmail        string
	RequesterRelationship string
	RequesterOrigin       string

	Reason            SuppressionReason
	VerificationToken null.String
	TokenCreatedAt    null.Time
	VerifiedAt        null.Time
	SuppressedAt      null.Time
	DoNotRepublish    bool
	ReviewedAt        null.Time
	ReviewedBy        null.String
	Notes             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// State derives the lifecycle state from the record's timestamps.
func (r *SuppressionRecord) State() RecordState {
	if !r.SuppressedAt.Valid {
		return StatePending
	}
	if !r.DoNotRepublish {
		return StateUnsuppressed
	}
	if r.VerifiedAt.Valid && !r.Reason.Privileged() {
		return StateVerifiedSuppressed
	}
	return StateAdminSuppressed
}

// TokenExpired reports whether the record's verification token is past the
// given time-to-live at the instant now. Records without an issued token
// are never considered expired.
func (r *SuppressionRecord) TokenExpired(ttl time.Duration, now time.Time) bool {
	if !r.VerificationToken.Valid {
		return false
	}
	issued := r.CreatedAt
	if r.TokenCreatedAt.Valid {
		issued = r.TokenCreatedAt.Time
	}
	return now.Sub(issued) > ttl
}

// RemovalRequestInput is the public intake payload after transport binding.
type RemovalRequestInput struct {
	SubjectID      string
	RequesterName  string
	RequesterEmail string
	Relationship   string
	Origin         string
	Notes          string
}

// RemovalRequestResult is returned to the public requester. The token is
// only ever delivered out of band; it is carried here so the notifier can
// embed it in the verification link.
type RemovalRequestResult struct {
	RequestID         uuid.UUID
	VerificationToken string
}

// AdminSuppressInput is the privileged suppression payload. The requester
// fields identify who asked for the takedown when that is someone other
// than the operator performing it.
type AdminSuppressInput struct {
	SubjectID          string
	ContentFingerprint string
	Reason             SuppressionReason
	RequesterName      string
	RequesterEmail     string
	Actor              string
	Notes              string
}
