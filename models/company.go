package models

import "gorm.io/gorm"

// Company is the business sending reminders. TRN and business hours are
// required content for formal UAE correspondence, so they feed template
// variables and the compliance scorer.
type Company struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name       string `gorm:"not null" json:"name"`
	NameArabic string `json:"name_arabic"`
	TRN        string `gorm:"column:trn" json:"trn"` // UAE Tax Registration Number
	Emirate    string `json:"emirate"`               // Dubai, Abu Dhabi, Sharjah, ...

	// Disclosed in message footers, e.g. "Sunday to Thursday, 9:00 AM - 6:00 PM"
	BusinessHours string `json:"business_hours"`

	// Outbound mailbox for reminders
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"`

	// SMTP/IMAP credentials for the collection mailbox (AES encrypted at rest)
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"-"`
	IMAPHost     string `json:"imap_host"`
	IMAPPort     int    `json:"imap_port"`
	IMAPUsername string `json:"imap_username"`
	IMAPPassword string `json:"-"`
	IMAPMailbox  string `json:"imap_mailbox"`

	// Relations
	Customers []Customer `gorm:"foreignKey:CompanyID" json:"customers,omitempty"`
	Invoices  []Invoice  `gorm:"foreignKey:CompanyID" json:"invoices,omitempty"`
}
