package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tahseel/models"
)

func fixtureParties() (*models.Invoice, *models.Customer, *models.Company) {
	invoice := &models.Invoice{
		Number:   "INV-2026-041",
		Amount:   12500.5,
		Currency: "AED",
		DueDate:  time.Date(2026, time.January, 5, 0, 0, 0, 0, gst),
	}
	customer := &models.Customer{
		Name:       "Ahmed Al Mansouri",
		NameArabic: "أحمد المنصوري",
		Language:   "en",
	}
	company := &models.Company{
		Name:          "Al Noor Trading LLC",
		NameArabic:    "شركة النور للتجارة",
		TRN:           "100234567890003",
		Emirate:       "Dubai",
		BusinessHours: "Sunday to Thursday, 9:00 AM - 6:00 PM",
	}
	return invoice, customer, company
}

func TestTemplateVars(t *testing.T) {
	invoice, customer, company := fixtureParties()
	now := time.Date(2026, time.January, 15, 12, 0, 0, 0, gst)

	vars := TemplateVars(invoice, customer, company, now)

	assert.Equal(t, "Ahmed Al Mansouri", vars["customer_name"])
	assert.Equal(t, "INV-2026-041", vars["invoice_number"])
	assert.Equal(t, "12500.50", vars["invoice_amount"])
	assert.Equal(t, "AED", vars["currency"])
	assert.Equal(t, "05 Jan 2026", vars["due_date"])
	assert.Equal(t, "10", vars["days_overdue"])
	assert.Equal(t, "Al Noor Trading LLC", vars["company_name"])
	assert.Equal(t, "100234567890003", vars["company_trn"])
	assert.Equal(t, "Dubai", vars["emirate"])
}

func TestTemplateVarsArabicNames(t *testing.T) {
	invoice, customer, company := fixtureParties()
	customer.Language = "ar"
	now := time.Date(2026, time.January, 15, 12, 0, 0, 0, gst)

	vars := TemplateVars(invoice, customer, company, now)

	assert.Equal(t, "أحمد المنصوري", vars["customer_name"])
	assert.Equal(t, "شركة النور للتجارة", vars["company_name"])

	// Arabic language without an Arabic name keeps the Latin one
	customer.NameArabic = ""
	vars = TemplateVars(invoice, customer, company, now)
	assert.Equal(t, "Ahmed Al Mansouri", vars["customer_name"])
}

func TestRenderTemplate(t *testing.T) {
	rendered, err := RenderTemplate(
		"Dear {{customer_name}}, invoice {{ invoice_number }} for {{currency}} {{invoice_amount}} is due.",
		map[string]string{
			"customer_name":  "Ahmed",
			"invoice_number": "INV-1",
			"currency":       "AED",
			"invoice_amount": "100.00",
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "Dear Ahmed, invoice INV-1 for AED 100.00 is due.", rendered)
}

func TestRenderTemplateRejectsUnresolvedPlaceholder(t *testing.T) {
	_, err := RenderTemplate("Hello {{customer_name}}, see {{payment_link}}", map[string]string{
		"customer_name": "Ahmed",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved placeholder")
	assert.Contains(t, err.Error(), "payment_link")
}
