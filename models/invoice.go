package models

import (
	"time"

	"gorm.io/gorm"
)

// Invoice statuses
const (
	InvoiceDraft     = "draft"
	InvoiceSent      = "sent"
	InvoiceOverdue   = "overdue"
	InvoicePaid      = "paid"
	InvoiceCancelled = "cancelled"
)

// Invoice is the target of a reminder sequence.
type Invoice struct {
	gorm.Model
	CompanyID  uint `gorm:"not null;index" json:"company_id"`
	CustomerID uint `gorm:"not null;index" json:"customer_id"`

	Number   string    `gorm:"not null;index" json:"number"`
	Amount   float64   `gorm:"not null" json:"amount"`
	Currency string    `gorm:"default:'AED'" json:"currency"`
	IssuedAt time.Time `json:"issued_at"`
	DueDate  time.Time `gorm:"not null;index" json:"due_date"`

	Status string     `gorm:"default:'sent';index" json:"status"`
	PaidAt *time.Time `json:"paid_at"`

	// Denormalized so stop-condition checks are a single row read
	AmountPaid float64 `gorm:"default:0" json:"amount_paid"`

	// Stripe linkage for online payment
	StripePaymentIntentID string `json:"-"`

	// Relations
	Customer Customer  `json:"-"`
	Company  Company   `json:"-"`
	Payments []Payment `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`
}

// DaysOverdue returns how many days past due the invoice is at the given instant.
func (i *Invoice) DaysOverdue(now time.Time) int {
	if !now.After(i.DueDate) {
		return 0
	}
	return int(now.Sub(i.DueDate).Hours() / 24)
}

// IsSettled reports whether recorded payments fully cover the amount.
func (i *Invoice) IsSettled() bool {
	return i.Status == InvoicePaid || i.AmountPaid >= i.Amount
}

// Payment records money received against an invoice, whether from a Stripe
// webhook or manual entry.
type Payment struct {
	gorm.Model
	InvoiceID uint `gorm:"not null;index" json:"invoice_id"`

	Amount     float64   `gorm:"not null" json:"amount"`
	Currency   string    `gorm:"default:'AED'" json:"currency"`
	ReceivedAt time.Time `gorm:"not null" json:"received_at"`
	Method     string    `json:"method"` // stripe, bank_transfer, cash, cheque
	Reference  string    `gorm:"index" json:"reference"`

	Invoice Invoice `json:"-"`
}
