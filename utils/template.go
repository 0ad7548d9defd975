package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"tahseel/models"
)

var (
	placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)
	residualPattern    = regexp.MustCompile(`\{\{[^}]*\}\}`)
)

// TemplateVars builds the substitution map for one reminder from the invoice,
// customer and company on file.
func TemplateVars(invoice *models.Invoice, customer *models.Customer, company *models.Company, now time.Time) map[string]string {
	vars := map[string]string{
		"customer_name":  customer.Name,
		"invoice_number": invoice.Number,
		"invoice_amount": fmt.Sprintf("%.2f", invoice.Amount),
		"currency":       invoice.Currency,
		"due_date":       invoice.DueDate.Format("02 Jan 2006"),
		"days_overdue":   fmt.Sprintf("%d", invoice.DaysOverdue(now)),
		"company_name":   company.Name,
		"company_trn":    company.TRN,
		"business_hours": company.BusinessHours,
		"emirate":        company.Emirate,
	}
	if customer.Language == "ar" && customer.NameArabic != "" {
		vars["customer_name"] = customer.NameArabic
	}
	if customer.Language == "ar" && company.NameArabic != "" {
		vars["company_name"] = company.NameArabic
	}
	return vars
}

// RenderTemplate substitutes {{variable}} placeholders. A placeholder left
// unresolved is a defect in the step definition: the rendered message must
// never leak template syntax to a customer.
func RenderTemplate(tpl string, vars map[string]string) (string, error) {
	rendered := placeholderPattern.ReplaceAllStringFunc(tpl, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})

	if leftover := residualPattern.FindString(rendered); leftover != "" {
		return "", fmt.Errorf("unresolved placeholder %s", strings.TrimSpace(leftover))
	}
	return rendered, nil
}
