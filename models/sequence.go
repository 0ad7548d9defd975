package models

import (
	"time"

	"gorm.io/gorm"
)

// Communication tones, least to most aggressive.
const (
	ToneGentle       = "GENTLE"
	ToneFriendly     = "FRIENDLY"
	ToneBusiness     = "BUSINESS"
	ToneProfessional = "PROFESSIONAL"
	ToneFormal       = "FORMAL"
	ToneVeryFormal   = "VERY_FORMAL"
	ToneFirm         = "FIRM"
	ToneUrgent       = "URGENT"
)

// Stop conditions evaluated before every continuation.
const (
	StopOnPayment  = "payment_received"
	StopOnResponse = "customer_responded"
)

// Execution statuses. COMPLETED and STOPPED are terminal; ERROR is resumable.
const (
	ExecutionPending   = "PENDING"
	ExecutionActive    = "ACTIVE"
	ExecutionCompleted = "COMPLETED"
	ExecutionStopped   = "STOPPED"
	ExecutionError     = "ERROR"
)

// ReminderSequence is a tenant-owned, ordered escalation plan. Read-only to
// the executor.
type ReminderSequence struct {
	gorm.Model
	CompanyID uint `gorm:"not null;index" json:"company_id"`

	Name             string `gorm:"not null" json:"name"`
	Description      string `json:"description"`
	TriggerCondition string `gorm:"default:'invoice_overdue'" json:"trigger_condition"`
	IsActive         bool   `gorm:"default:true" json:"is_active"`

	// Relations
	Steps      []SequenceStep      `gorm:"foreignKey:SequenceID" json:"steps,omitempty"`
	Executions []SequenceExecution `gorm:"foreignKey:SequenceID" json:"executions,omitempty"`
}

// SequenceStep is one reminder in the escalation ladder. DelayDays is counted
// from the previous step (from the start trigger for step 1).
type SequenceStep struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`

	StepNumber      int    `gorm:"not null" json:"step_number"`
	DelayDays       int    `gorm:"not null" json:"delay_days"`
	Tone            string `gorm:"not null" json:"tone"`
	SubjectTemplate string `gorm:"not null" json:"subject_template"`
	ContentTemplate string `gorm:"not null" json:"content_template"`

	// Subset of the stop-condition constants
	StopConditions []string `gorm:"type:jsonb;serializer:json" json:"stop_conditions"`

	// Tracking (denormalized)
	SentCount int `gorm:"default:0" json:"sent_count"`
}

// StepCompletion is appended to the execution history after a confirmed dispatch.
type StepCompletion struct {
	StepNumber int       `json:"step_number"`
	SentAt     time.Time `json:"sent_at"`
	DispatchID string    `json:"dispatch_id"`
}

// SequenceExecution is the resumable state record for one (sequence, invoice)
// pair. At most one non-terminal execution may exist per pair; the executor
// rejects duplicate starts.
type SequenceExecution struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index:idx_exec_pair" json:"sequence_id"`
	InvoiceID  uint `gorm:"not null;index:idx_exec_pair" json:"invoice_id"`

	Status           string     `gorm:"default:'PENDING';index" json:"status"`
	CurrentStepIndex int        `gorm:"default:0" json:"current_step_index"`
	NextExecutionAt  *time.Time `gorm:"index" json:"next_execution_at"`
	TriggerCondition string     `json:"trigger_condition"`
	StoppedReason    string     `json:"stopped_reason"`
	LastError        string     `json:"last_error"`

	History []StepCompletion `gorm:"type:jsonb;serializer:json" json:"history"`

	// Relations
	Sequence ReminderSequence `json:"-"`
	Invoice  Invoice          `json:"-"`
}

// IsTerminal reports whether the execution can never advance again.
func (e *SequenceExecution) IsTerminal() bool {
	return e.Status == ExecutionCompleted || e.Status == ExecutionStopped
}
