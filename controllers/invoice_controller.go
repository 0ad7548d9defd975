package controller

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"gorm.io/gorm"

	"tahseel/config"
	"tahseel/models"
	"tahseel/utils"
)

type InvoiceController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewInvoiceController(db *gorm.DB, logger *log.Logger) *InvoiceController {
	return &InvoiceController{DB: db, Logger: logger}
}

// InitStripe sets the global API key.
func InitStripe() {
	stripe.Key = config.AppConfig.StripeSecretKey
}

type invoiceInput struct {
	CompanyID  uint      `json:"company_id" validate:"required"`
	CustomerID uint      `json:"customer_id" validate:"required"`
	Number     string    `json:"number" validate:"required"`
	Amount     float64   `json:"amount" validate:"required,gt=0"`
	Currency   string    `json:"currency"`
	IssuedAt   time.Time `json:"issued_at"`
	DueDate    time.Time `json:"due_date" validate:"required"`
}

type paymentInput struct {
	Amount     float64    `json:"amount" validate:"required,gt=0"`
	Method     string     `json:"method" validate:"required,oneof=stripe bank_transfer cash cheque"`
	Reference  string     `json:"reference"`
	ReceivedAt *time.Time `json:"received_at"`
}

// ownedInvoice loads an invoice only when the requesting user owns its company.
func (ic *InvoiceController) ownedInvoice(userID uint, invoiceID string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := ic.DB.
		Joins("JOIN companies ON companies.id = invoices.company_id").
		Where("invoices.id = ? AND companies.user_id = ?", invoiceID, userID).
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (ic *InvoiceController) CreateInvoice(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input invoiceInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var company models.Company
	if err := ic.DB.Where("id = ? AND user_id = ?", input.CompanyID, user.ID).First(&company).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Company not found", nil)
	}

	var customer models.Customer
	if err := ic.DB.Where("id = ? AND company_id = ?", input.CustomerID, input.CompanyID).First(&customer).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", nil)
	}

	invoice := models.Invoice{
		CompanyID:  input.CompanyID,
		CustomerID: input.CustomerID,
		Number:     input.Number,
		Amount:     input.Amount,
		IssuedAt:   input.IssuedAt,
		DueDate:    input.DueDate,
		Status:     models.InvoiceSent,
	}
	if input.Currency != "" {
		invoice.Currency = input.Currency
	}

	if err := ic.DB.Create(&invoice).Error; err != nil {
		ic.Logger.Printf("Failed to create invoice: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create invoice", nil)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(invoice))
}

func (ic *InvoiceController) ListInvoices(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query := ic.DB.
		Joins("JOIN companies ON companies.id = invoices.company_id").
		Where("companies.user_id = ?", user.ID)

	if status := c.Query("status"); status != "" {
		query = query.Where("invoices.status = ?", status)
	}
	if customerID := c.Query("customer_id"); customerID != "" {
		query = query.Where("invoices.customer_id = ?", customerID)
	}
	if c.QueryBool("overdue") {
		query = query.Where("invoices.due_date < ? AND invoices.status NOT IN ?",
			time.Now(), []string{models.InvoicePaid, models.InvoiceCancelled})
	}

	var invoices []models.Invoice
	if err := query.Order("invoices.due_date ASC").Find(&invoices).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list invoices", nil)
	}
	return c.JSON(utils.SuccessResponse(invoices))
}

func (ic *InvoiceController) GetInvoice(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	invoice, err := ic.ownedInvoice(user.ID, c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Invoice not found", nil)
	}
	if err := ic.DB.Preload("Payments").First(invoice, invoice.ID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load invoice", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"invoice":      invoice,
		"days_overdue": invoice.DaysOverdue(time.Now()),
		"settled":      invoice.IsSettled(),
	}))
}

func (ic *InvoiceController) UpdateInvoice(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	invoice, err := ic.ownedInvoice(user.ID, c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Invoice not found", nil)
	}
	if invoice.Status == models.InvoicePaid {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Paid invoices cannot be edited", nil)
	}

	var input invoiceInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if input.Number != "" {
		invoice.Number = input.Number
	}
	if input.Amount > 0 {
		invoice.Amount = input.Amount
	}
	if input.Currency != "" {
		invoice.Currency = input.Currency
	}
	if !input.IssuedAt.IsZero() {
		invoice.IssuedAt = input.IssuedAt
	}
	if !input.DueDate.IsZero() {
		invoice.DueDate = input.DueDate
	}

	if err := ic.DB.Save(invoice).Error; err != nil {
		ic.Logger.Printf("Failed to update invoice: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update invoice", nil)
	}
	return c.JSON(utils.SuccessResponse(invoice))
}

// DeleteInvoice cancels rather than removes: executions reference the invoice
// and a cancelled invoice stops qualifying for reminders on its own.
func (ic *InvoiceController) DeleteInvoice(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	invoice, err := ic.ownedInvoice(user.ID, c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Invoice not found", nil)
	}
	if invoice.Status == models.InvoicePaid {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Paid invoices cannot be cancelled", nil)
	}

	invoice.Status = models.InvoiceCancelled
	if err := ic.DB.Save(invoice).Error; err != nil {
		ic.Logger.Printf("Failed to cancel invoice: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to cancel invoice", nil)
	}
	return c.JSON(fiber.Map{"message": "Invoice cancelled successfully"})
}

// RecordPayment registers a manual payment (bank transfer, cash, cheque)
// against the invoice. Stripe payments arrive via the webhook instead.
func (ic *InvoiceController) RecordPayment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	invoice, err := ic.ownedInvoice(user.ID, c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Invoice not found", nil)
	}

	var input paymentInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	receivedAt := time.Now()
	if input.ReceivedAt != nil {
		receivedAt = *input.ReceivedAt
	}

	payment := models.Payment{
		InvoiceID:  invoice.ID,
		Amount:     input.Amount,
		Currency:   invoice.Currency,
		ReceivedAt: receivedAt,
		Method:     input.Method,
		Reference:  input.Reference,
	}

	err = ic.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		invoice.AmountPaid += input.Amount
		if invoice.AmountPaid >= invoice.Amount {
			invoice.Status = models.InvoicePaid
			invoice.PaidAt = utils.Pointer(receivedAt)
		}
		return tx.Save(invoice).Error
	})
	if err != nil {
		ic.Logger.Printf("Failed to record payment: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record payment", nil)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"payment": payment,
		"invoice": invoice,
	}))
}

// CreatePaymentIntent creates a Stripe Payment Intent for the open balance so
// the reminder email can carry a pay-now link.
func (ic *InvoiceController) CreatePaymentIntent(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	invoice, err := ic.ownedInvoice(user.ID, c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Invoice not found", nil)
	}
	if invoice.IsSettled() {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invoice is already settled", nil)
	}

	outstanding := invoice.Amount - invoice.AmountPaid
	params := &stripe.PaymentIntentParams{
		// Stripe amounts are in fils for AED
		Amount:   stripe.Int64(int64(outstanding * 100)),
		Currency: stripe.String(invoice.Currency),
		Metadata: map[string]string{
			"invoice_id":     strconv.Itoa(int(invoice.ID)),
			"invoice_number": invoice.Number,
		},
		Description: stripe.String("Settlement of invoice " + invoice.Number),
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		ic.Logger.Printf("Failed to create payment intent: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create payment intent", nil)
	}

	invoice.StripePaymentIntentID = pi.ID
	if err := ic.DB.Save(invoice).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to link payment intent", nil)
	}

	return c.JSON(fiber.Map{
		"clientSecret": pi.ClientSecret,
		"amount":       outstanding,
		"currency":     invoice.Currency,
	})
}

// HandleStripeWebhook settles invoices from payment_intent.succeeded events.
// A settled invoice satisfies the payment_received stop condition, so running
// sequences stop at their next continuation.
func (ic *InvoiceController) HandleStripeWebhook(c *fiber.Ctx) error {
	event, err := utils.ConstructStripeEvent(c)
	if err != nil {
		ic.Logger.Printf("Failed to construct Stripe event: %v", err)
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid webhook payload", nil)
	}

	if event.Type != "payment_intent.succeeded" {
		return c.SendStatus(fiber.StatusOK)
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		ic.Logger.Printf("Failed to parse payment intent: %v", err)
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Error parsing payment intent", nil)
	}

	var invoice models.Invoice
	if err := ic.DB.Where("stripe_payment_intent_id = ?", pi.ID).First(&invoice).Error; err != nil {
		ic.Logger.Printf("No invoice for payment intent %s", pi.ID)
		return c.SendStatus(fiber.StatusOK)
	}

	now := time.Now()
	payment := models.Payment{
		InvoiceID:  invoice.ID,
		Amount:     float64(pi.Amount) / 100,
		Currency:   invoice.Currency,
		ReceivedAt: now,
		Method:     "stripe",
		Reference:  pi.ID,
	}

	err = ic.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		invoice.AmountPaid += payment.Amount
		if invoice.AmountPaid >= invoice.Amount {
			invoice.Status = models.InvoicePaid
			invoice.PaidAt = &now
		}
		return tx.Save(&invoice).Error
	})
	if err != nil {
		ic.Logger.Printf("Failed to settle invoice %d: %v", invoice.ID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to settle invoice", nil)
	}

	ic.Logger.Printf("Invoice %s settled via Stripe (%s)", invoice.Number, pi.ID)
	return c.SendStatus(fiber.StatusOK)
}
