package utils

import (
	"net"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/likexian/whois"
)

// VerificationResult summarizes a customer email check before reminders may
// be sent to it.
type VerificationResult struct {
	Email        string `json:"email"`
	Status       string `json:"status"` // valid, invalid, unknown
	Details      string `json:"details"`
	IsBounceRisk bool   `json:"is_bounce_risk"`
	WHOIS        string `json:"whois,omitempty"`
}

// disposable domains occasionally show up in imported customer books; a
// reminder sent there never reaches anyone.
var disposableDomains = map[string]bool{
	"mailinator.com":   true,
	"guerrillamail.com": true,
	"10minutemail.com": true,
	"tempmail.com":     true,
	"trashmail.com":    true,
	"yopmail.com":      true,
	"sharklasers.com":  true,
	"getnada.com":      true,
}

// VerifyCustomerEmail checks syntax, disposable domains and MX records, then
// attaches WHOIS data for the domain when available. It never dials SMTP:
// collection mailboxes must not probe customer servers.
func VerifyCustomerEmail(email string) *VerificationResult {
	email = strings.ToLower(strings.TrimSpace(email))
	result := &VerificationResult{Email: email, Status: "unknown", IsBounceRisk: true}

	if err := checkmail.ValidateFormat(email); err != nil {
		result.Status = "invalid"
		result.Details = "invalid email format: " + err.Error()
		return result
	}

	domain := ExtractDomain(email)
	if domain == "" {
		result.Status = "invalid"
		result.Details = "invalid email format"
		return result
	}

	if disposableDomains[domain] {
		result.Status = "invalid"
		result.Details = "disposable email domain"
		return result
	}

	mxRecords, err := net.LookupMX(domain)
	if err != nil || len(mxRecords) == 0 {
		result.Status = "invalid"
		result.Details = "domain has no MX records"
		return result
	}

	result.Status = "valid"
	result.IsBounceRisk = false
	result.Details = "deliverable domain"

	if info, err := whois.Whois(domain); err == nil {
		result.WHOIS = info
	}
	return result
}

// ExtractDomain returns the domain part of an email address.
func ExtractDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) == 2 {
		return parts[1]
	}
	return ""
}
