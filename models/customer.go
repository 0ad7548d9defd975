package models

import (
	"time"

	"gorm.io/gorm"
)

// Relationship tiers. The tier drives tone ceilings and recommended
// escalation progressions.
const (
	TierGovernment = "GOVERNMENT"
	TierVIP        = "VIP"
	TierRegular    = "REGULAR"
	TierNew        = "NEW"
)

// Payment history grades, maintained from settled invoices.
const (
	HistoryExcellent = "excellent"
	HistoryGood      = "good"
	HistoryAverage   = "average"
	HistoryPoor      = "poor"
)

// Customer is the reminder recipient (a debtor relationship, not a login).
type Customer struct {
	gorm.Model
	CompanyID uint `gorm:"not null;index" json:"company_id"`

	Name       string `gorm:"not null" json:"name"`
	NameArabic string `json:"name_arabic"`
	Email      string `gorm:"not null;index" json:"email"`
	Phone      string `json:"phone"`

	// Relationship profile
	Tier                string     `gorm:"default:'REGULAR'" json:"tier"` // GOVERNMENT, VIP, REGULAR, NEW
	Segment             string     `json:"segment"`                       // retail, trading, construction, ...
	Language            string     `gorm:"default:'en'" json:"language"`  // en, ar
	PaymentHistoryGrade string     `gorm:"default:'average'" json:"payment_history_grade"`
	RelationshipSince   *time.Time `json:"relationship_since"`

	// Contact controls
	IsDoNotContact bool       `gorm:"default:false" json:"is_do_not_contact"`
	EmailVerified  bool       `gorm:"default:false" json:"email_verified"`
	LastRepliedAt  *time.Time `json:"last_replied_at"` // stamped by the reply worker

	// Relations
	Invoices []Invoice `gorm:"foreignKey:CustomerID" json:"invoices,omitempty"`
}

// RelationshipMonths returns the age of the relationship at the given instant.
func (c *Customer) RelationshipMonths(now time.Time) int {
	if c.RelationshipSince == nil {
		return 0
	}
	months := int(now.Sub(*c.RelationshipSince).Hours() / 24 / 30)
	if months < 0 {
		return 0
	}
	return months
}
