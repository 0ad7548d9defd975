package controller

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	"tahseel/models"
	"tahseel/utils"
)

type ExecutionController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Executor *utils.SequenceExecutor
}

func NewExecutionController(db *gorm.DB, logger *log.Logger, executor *utils.SequenceExecutor) *ExecutionController {
	return &ExecutionController{DB: db, Logger: logger, Executor: executor}
}

type startExecutionInput struct {
	InvoiceID        uint       `json:"invoice_id" validate:"required"`
	TriggerCondition string     `json:"trigger_condition"`
	StartImmediately bool       `json:"start_immediately"`
	CustomStartTime  *time.Time `json:"custom_start_time"`
}

// ownedSequenceID verifies the sequence belongs to one of the user's companies.
func (ec *ExecutionController) ownedSequenceID(userID uint, sequenceID string) (uint, error) {
	var sequence models.ReminderSequence
	err := ec.DB.
		Joins("JOIN companies ON companies.id = reminder_sequences.company_id").
		Where("reminder_sequences.id = ? AND companies.user_id = ?", sequenceID, userID).
		First(&sequence).Error
	if err != nil {
		return 0, err
	}
	return sequence.ID, nil
}

// StartExecution begins a sequence against an invoice. Duplicate open
// executions for the same pair are rejected with 409.
func (ec *ExecutionController) StartExecution(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	sequenceID, err := ec.ownedSequenceID(user.ID, c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}

	var input startExecutionInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var invoice models.Invoice
	err = ec.DB.
		Joins("JOIN companies ON companies.id = invoices.company_id").
		Where("invoices.id = ? AND companies.user_id = ?", input.InvoiceID, user.ID).
		First(&invoice).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Invoice not found", nil)
	}

	trigger := input.TriggerCondition
	if trigger == "" {
		trigger = "invoice_overdue"
	}

	result, err := ec.Executor.StartSequenceExecution(c.Context(), sequenceID, invoice.ID, trigger, &utils.StartOptions{
		StartImmediately: input.StartImmediately,
		CustomStartTime:  input.CustomStartTime,
	})
	if err != nil {
		var dup *utils.DuplicateExecutionError
		var verr *utils.ValidationError
		switch {
		case errors.As(err, &dup):
			return c.Status(fiber.StatusConflict).JSON(result)
		case errors.As(err, &verr):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(result)
		default:
			ec.Logger.Printf("Failed to start execution: %v", err)
			if result != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(result)
			}
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to start execution", nil)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// ContinueExecution drives one step. Normally invoked by the scheduler; the
// endpoint exists for manual retries of ERROR executions.
func (ec *ExecutionController) ContinueExecution(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	executionID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid execution id", nil)
	}

	var execution models.SequenceExecution
	dbErr := ec.DB.
		Joins("JOIN reminder_sequences ON reminder_sequences.id = sequence_executions.sequence_id").
		Joins("JOIN companies ON companies.id = reminder_sequences.company_id").
		Where("sequence_executions.id = ? AND companies.user_id = ?", executionID, user.ID).
		First(&execution).Error
	if dbErr != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Execution not found", nil)
	}

	result, err := ec.Executor.ContinueSequenceExecution(c.Context(), uint(executionID))
	if err != nil {
		var verr *utils.ValidationError
		var derr *utils.DispatchError
		switch {
		case errors.As(err, &verr):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(result)
		case errors.As(err, &derr):
			return c.Status(fiber.StatusBadGateway).JSON(result)
		default:
			ec.Logger.Printf("Failed to continue execution %d: %v", executionID, err)
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to continue execution", nil)
		}
	}

	return c.JSON(result)
}

// GetExecutionStatus reads the latest execution state for a (sequence, invoice) pair.
func (ec *ExecutionController) GetExecutionStatus(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	sequenceID, err := ec.ownedSequenceID(user.ID, c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}

	invoiceID, err := strconv.Atoi(c.Query("invoice_id"))
	if err != nil || invoiceID <= 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "invoice_id query parameter is required", nil)
	}

	status, err := ec.Executor.GetSequenceExecutionStatus(c.Context(), sequenceID, uint(invoiceID))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read execution status", nil)
	}
	return c.JSON(utils.SuccessResponse(status))
}

// ListExecutions returns all executions of a sequence, newest first.
func (ec *ExecutionController) ListExecutions(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	sequenceID, err := ec.ownedSequenceID(user.ID, c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}

	var executions []models.SequenceExecution
	if err := ec.DB.Where("sequence_id = ?", sequenceID).Order("id DESC").Find(&executions).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list executions", nil)
	}
	return c.JSON(utils.SuccessResponse(executions))
}

// GetSequenceAnalytics aggregates per-step send/response counts and the
// conversion rate across all executions of the sequence.
func (ec *ExecutionController) GetSequenceAnalytics(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	sequenceID, err := ec.ownedSequenceID(user.ID, c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}

	analytics, err := ec.Executor.GetSequenceAnalytics(c.Context(), sequenceID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute analytics", nil)
	}
	return c.JSON(utils.SuccessResponse(analytics))
}

// HandleExecutionProgressWS streams execution state changes to the client
// until the execution reaches a terminal status or the socket closes.
func (ec *ExecutionController) HandleExecutionProgressWS(c *websocket.Conn) {
	defer c.Close()

	var input struct {
		ExecutionID uint `json:"execution_id"`
	}
	if err := c.ReadJSON(&input); err != nil {
		ec.Logger.Printf("Error reading WS request: %v", err)
		return
	}

	type progress struct {
		Status      string     `json:"status"`
		CurrentStep int        `json:"current_step"`
		StepsSent   int        `json:"steps_sent"`
		NextAt      *time.Time `json:"next_execution_at,omitempty"`
	}

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	var lastStatus string
	var lastStep int
	for range ticker.C {
		var execution models.SequenceExecution
		if err := ec.DB.First(&execution, input.ExecutionID).Error; err != nil {
			ec.Logger.Printf("WS execution %d lookup failed: %v", input.ExecutionID, err)
			return
		}

		if execution.Status != lastStatus || execution.CurrentStepIndex != lastStep {
			lastStatus = execution.Status
			lastStep = execution.CurrentStepIndex
			if err := c.WriteJSON(progress{
				Status:      execution.Status,
				CurrentStep: execution.CurrentStepIndex,
				StepsSent:   len(execution.History),
				NextAt:      execution.NextExecutionAt,
			}); err != nil {
				return
			}
		}

		if execution.IsTerminal() {
			return
		}
	}
}
