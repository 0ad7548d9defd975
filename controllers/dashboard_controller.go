package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"tahseel/models"
	"tahseel/utils"
)

type DashboardController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDashboardController(db *gorm.DB, logger *log.Logger) *DashboardController {
	return &DashboardController{DB: db, Logger: logger}
}

type dashboardSummary struct {
	Customers          int64            `json:"customers"`
	Invoices           int64            `json:"invoices"`
	OverdueInvoices    int64            `json:"overdue_invoices"`
	OutstandingTotal   float64          `json:"outstanding_total"`
	CollectedTotal     float64          `json:"collected_total"`
	ExecutionsByStatus map[string]int64 `json:"executions_by_status"`
}

func (dc *DashboardController) customerScope(userID uint) *gorm.DB {
	return dc.DB.Model(&models.Customer{}).
		Joins("JOIN companies ON companies.id = customers.company_id").
		Where("companies.user_id = ?", userID)
}

func (dc *DashboardController) invoiceScope(userID uint) *gorm.DB {
	return dc.DB.Model(&models.Invoice{}).
		Joins("JOIN companies ON companies.id = invoices.company_id").
		Where("companies.user_id = ?", userID)
}

func (dc *DashboardController) executionScope(userID uint) *gorm.DB {
	return dc.DB.Model(&models.SequenceExecution{}).
		Joins("JOIN reminder_sequences ON reminder_sequences.id = sequence_executions.sequence_id").
		Joins("JOIN companies ON companies.id = reminder_sequences.company_id").
		Where("companies.user_id = ?", userID)
}

// GetSummary aggregates the user's collection position: customer and invoice
// counts, money outstanding and collected, and execution counts per status.
func (dc *DashboardController) GetSummary(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	now := time.Now()

	summary := dashboardSummary{ExecutionsByStatus: make(map[string]int64)}

	if err := dc.customerScope(user.ID).Count(&summary.Customers).Error; err != nil {
		dc.Logger.Printf("Failed to count customers: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to build dashboard", nil)
	}
	if err := dc.invoiceScope(user.ID).Count(&summary.Invoices).Error; err != nil {
		dc.Logger.Printf("Failed to count invoices: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to build dashboard", nil)
	}

	openStatuses := []string{models.InvoiceSent, models.InvoiceOverdue}
	if err := dc.invoiceScope(user.ID).
		Where("invoices.due_date < ? AND invoices.status IN ?", now, openStatuses).
		Count(&summary.OverdueInvoices).Error; err != nil {
		dc.Logger.Printf("Failed to count overdue invoices: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to build dashboard", nil)
	}

	if err := dc.invoiceScope(user.ID).
		Where("invoices.status IN ?", openStatuses).
		Select("COALESCE(SUM(invoices.amount - invoices.amount_paid), 0)").
		Scan(&summary.OutstandingTotal).Error; err != nil {
		dc.Logger.Printf("Failed to sum outstanding amounts: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to build dashboard", nil)
	}
	if err := dc.invoiceScope(user.ID).
		Select("COALESCE(SUM(invoices.amount_paid), 0)").
		Scan(&summary.CollectedTotal).Error; err != nil {
		dc.Logger.Printf("Failed to sum collected amounts: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to build dashboard", nil)
	}

	var rows []struct {
		Status string
		Count  int64
	}
	if err := dc.executionScope(user.ID).
		Select("sequence_executions.status AS status, COUNT(*) AS count").
		Group("sequence_executions.status").
		Scan(&rows).Error; err != nil {
		dc.Logger.Printf("Failed to count executions: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to build dashboard", nil)
	}
	for _, row := range rows {
		summary.ExecutionsByStatus[row.Status] = row.Count
	}

	return c.JSON(utils.SuccessResponse(summary))
}
