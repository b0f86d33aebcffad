package models

import "time"

// ApprovalType classifies why a human is being asked to intervene.
type ApprovalType string

const (
	ApprovalTypeManualReview   ApprovalType = "manual_review"
	ApprovalTypeConfirmation   ApprovalType = "confirmation"
	ApprovalTypeDecisionMaking ApprovalType = "decision_making"
	ApprovalTypeQualityCheck   ApprovalType = "quality_check"
)

// ValidApprovalType reports whether t is one of the four enumerated types.
func ValidApprovalType(t ApprovalType) bool {
	switch t {
	case ApprovalTypeManualReview, ApprovalTypeConfirmation,
		ApprovalTypeDecisionMaking, ApprovalTypeQualityCheck:
		return true
	default:
		return false
	}
}

// ApprovalStatus is the approval request state machine:
// pending -> {approved, rejected, expired}, exactly once.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
	ApprovalStatusExpired  ApprovalStatus = "expired"
)

// ApprovalFieldType is the type of a structured field a reviewer fills in.
type ApprovalFieldType string

const (
	ApprovalFieldText    ApprovalFieldType = "text"
	ApprovalFieldNumber  ApprovalFieldType = "number"
	ApprovalFieldBoolean ApprovalFieldType = "boolean"
	ApprovalFieldJSON    ApprovalFieldType = "json"
)

// ValidApprovalFieldType reports whether t is a supported field type.
func ValidApprovalFieldType(t ApprovalFieldType) bool {
	switch t {
	case ApprovalFieldText, ApprovalFieldNumber, ApprovalFieldBoolean, ApprovalFieldJSON:
		return true
	default:
		return false
	}
}

// ApprovalField describes one structured input the reviewer must provide.
type ApprovalField struct {
	FieldName string            `json:"field_name" validate:"required" bson:"field_name"`
	FieldType ApprovalFieldType `json:"field_type" validate:"required" bson:"field_type"`
	Label     string            `json:"label,omitempty" bson:"label,omitempty"`
	Required  bool              `json:"required,omitempty" bson:"required,omitempty"`
}

// ApprovalRequest suspends a human-approval node until a reviewer responds
// or a timeout elapses. Terminal once resolved; no further writes after
// leaving pending.
type ApprovalRequest struct {
	ID           string          `json:"id" bson:"_id"`
	ExecutionID  string          `json:"execution_id" bson:"execution_id"`
	NodeID       string          `json:"node_id" bson:"node_id"`
	ApprovalType ApprovalType    `json:"approval_type" bson:"approval_type"`
	Status       ApprovalStatus  `json:"status" bson:"status"`
	Message      string          `json:"message,omitempty" bson:"message,omitempty"`
	RequestedBy  string          `json:"requested_by,omitempty" bson:"requested_by,omitempty"`
	ApprovalData map[string]any  `json:"approval_data,omitempty" bson:"approval_data,omitempty"`
	Fields       []ApprovalField `json:"fields,omitempty" bson:"fields,omitempty"`
	CreatedAt    time.Time       `json:"created_at" bson:"created_at"`
	TimeoutAt    time.Time       `json:"timeout_at" bson:"timeout_at"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
}

// ValidationReport is returned by configuration-time validation of a
// human-approval node. Configuration errors never reach dispatch.
type ValidationReport struct {
	Valid  bool     `json:"valid" bson:"valid"`
	Errors []string `json:"errors,omitempty" bson:"errors,omitempty"`
}
