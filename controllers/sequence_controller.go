package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"tahseel/models"
	"tahseel/utils"
)

type SequenceController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewSequenceController(db *gorm.DB, logger *log.Logger) *SequenceController {
	return &SequenceController{DB: db, Logger: logger}
}

type stepInput struct {
	StepNumber      int      `json:"step_number" validate:"required,min=1"`
	DelayDays       int      `json:"delay_days" validate:"min=0"`
	Tone            string   `json:"tone" validate:"required,tone"`
	SubjectTemplate string   `json:"subject_template" validate:"required"`
	ContentTemplate string   `json:"content_template" validate:"required"`
	StopConditions  []string `json:"stop_conditions" validate:"dive,oneof=payment_received customer_responded"`
}

type sequenceInput struct {
	CompanyID        uint        `json:"company_id" validate:"required"`
	Name             string      `json:"name" validate:"required,max=200"`
	Description      string      `json:"description"`
	TriggerCondition string      `json:"trigger_condition"`
	IsActive         *bool       `json:"is_active"`
	Steps            []stepInput `json:"steps" validate:"required,min=1,dive"`
}

type validateEscalationInput struct {
	Tier  string                 `json:"tier" validate:"required,tier"`
	Steps []utils.EscalationStep `json:"steps" validate:"required,min=1"`
}

type recommendToneInput struct {
	CustomerID    uint `json:"customer_id" validate:"required"`
	InvoiceID     uint `json:"invoice_id" validate:"required"`
	AttemptNumber int  `json:"attempt_number" validate:"required,min=1"`
}

// ownedSequence loads a sequence only when the requesting user owns its company.
func (sc *SequenceController) ownedSequence(userID uint, sequenceID string) (*models.ReminderSequence, error) {
	var sequence models.ReminderSequence
	err := sc.DB.
		Joins("JOIN companies ON companies.id = reminder_sequences.company_id").
		Where("reminder_sequences.id = ? AND companies.user_id = ?", sequenceID, userID).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number ASC")
		}).
		First(&sequence).Error
	if err != nil {
		return nil, err
	}
	return &sequence, nil
}

func (sc *SequenceController) CreateSequence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input sequenceInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var company models.Company
	if err := sc.DB.Where("id = ? AND user_id = ?", input.CompanyID, user.ID).First(&company).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Company not found", nil)
	}

	sequence := models.ReminderSequence{
		CompanyID:   input.CompanyID,
		Name:        input.Name,
		Description: input.Description,
		IsActive:    true,
	}
	if input.TriggerCondition != "" {
		sequence.TriggerCondition = input.TriggerCondition
	}
	if input.IsActive != nil {
		sequence.IsActive = *input.IsActive
	}

	tx := sc.DB.Begin()
	if err := tx.Create(&sequence).Error; err != nil {
		tx.Rollback()
		sc.Logger.Printf("Failed to create sequence: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create sequence", nil)
	}

	for _, step := range input.Steps {
		if err := tx.Create(&models.SequenceStep{
			SequenceID:      sequence.ID,
			StepNumber:      step.StepNumber,
			DelayDays:       step.DelayDays,
			Tone:            step.Tone,
			SubjectTemplate: step.SubjectTemplate,
			ContentTemplate: step.ContentTemplate,
			StopConditions:  step.StopConditions,
		}).Error; err != nil {
			tx.Rollback()
			sc.Logger.Printf("Failed to create sequence step: %v", err)
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create sequence steps", nil)
		}
	}
	tx.Commit()

	if err := sc.DB.Preload("Steps").First(&sequence, sequence.ID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reload sequence", nil)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(sequence))
}

func (sc *SequenceController) ListSequences(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query := sc.DB.
		Joins("JOIN companies ON companies.id = reminder_sequences.company_id").
		Where("companies.user_id = ?", user.ID).
		Preload("Steps")

	if companyID := c.Query("company_id"); companyID != "" {
		query = query.Where("reminder_sequences.company_id = ?", companyID)
	}

	var sequences []models.ReminderSequence
	if err := query.Find(&sequences).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list sequences", nil)
	}
	return c.JSON(utils.SuccessResponse(sequences))
}

func (sc *SequenceController) GetSequence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	sequence, err := sc.ownedSequence(user.ID, c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}
	return c.JSON(utils.SuccessResponse(sequence))
}

// UpdateSequence replaces the step set wholesale. Running executions keep
// going against the sequence definition as reloaded at each dispatch.
func (sc *SequenceController) UpdateSequence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	sequence, err := sc.ownedSequence(user.ID, c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}

	var input sequenceInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if input.Name != "" {
		sequence.Name = input.Name
	}
	if input.Description != "" {
		sequence.Description = input.Description
	}
	if input.TriggerCondition != "" {
		sequence.TriggerCondition = input.TriggerCondition
	}
	if input.IsActive != nil {
		sequence.IsActive = *input.IsActive
	}

	tx := sc.DB.Begin()
	if err := tx.Save(sequence).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update sequence", nil)
	}

	if len(input.Steps) > 0 {
		for _, step := range input.Steps {
			if err := utils.ValidateStruct(step); err != nil {
				tx.Rollback()
				return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
			}
		}
		if err := tx.Where("sequence_id = ?", sequence.ID).Delete(&models.SequenceStep{}).Error; err != nil {
			tx.Rollback()
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to replace steps", nil)
		}
		for _, step := range input.Steps {
			if err := tx.Create(&models.SequenceStep{
				SequenceID:      sequence.ID,
				StepNumber:      step.StepNumber,
				DelayDays:       step.DelayDays,
				Tone:            step.Tone,
				SubjectTemplate: step.SubjectTemplate,
				ContentTemplate: step.ContentTemplate,
				StopConditions:  step.StopConditions,
			}).Error; err != nil {
				tx.Rollback()
				return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to replace steps", nil)
			}
		}
	}
	tx.Commit()

	sequence, err = sc.ownedSequence(user.ID, c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reload sequence", nil)
	}
	return c.JSON(utils.SuccessResponse(sequence))
}

func (sc *SequenceController) DeleteSequence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	sequence, err := sc.ownedSequence(user.ID, c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}

	var open int64
	sc.DB.Model(&models.SequenceExecution{}).
		Where("sequence_id = ? AND status IN ?", sequence.ID,
			[]string{models.ExecutionPending, models.ExecutionActive, models.ExecutionError}).
		Count(&open)
	if open > 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Sequence has open executions", nil)
	}

	tx := sc.DB.Begin()
	if err := tx.Where("sequence_id = ?", sequence.ID).Delete(&models.SequenceStep{}).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete sequence", nil)
	}
	if err := tx.Delete(sequence).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete sequence", nil)
	}
	tx.Commit()

	return c.JSON(fiber.Map{"message": "Sequence deleted successfully"})
}

// ValidateSequenceEscalation checks a proposed tone ladder against cooldown
// and tier-ceiling rules without persisting anything.
func (sc *SequenceController) ValidateSequenceEscalation(c *fiber.Ctx) error {
	var input validateEscalationInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	report := utils.ValidateEscalation(input.Steps, input.Tier)
	return c.JSON(utils.SuccessResponse(report))
}

// GetToneGuidelines returns the static tone reference data.
func (sc *SequenceController) GetToneGuidelines(c *fiber.Ctx) error {
	return c.JSON(utils.SuccessResponse(utils.ToneGuidelines))
}

// GetTierProgression returns the recommended tone ladder for a tier.
func (sc *SequenceController) GetTierProgression(c *fiber.Ctx) error {
	tier := c.Params("tier")
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"tier":        tier,
		"progression": utils.RecommendedProgression(tier),
	}))
}

// RecommendTone derives the per-attempt tone from the customer relationship
// and how overdue the invoice is.
func (sc *SequenceController) RecommendTone(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input recommendToneInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var customer models.Customer
	err := sc.DB.
		Joins("JOIN companies ON companies.id = customers.company_id").
		Where("customers.id = ? AND companies.user_id = ?", input.CustomerID, user.ID).
		First(&customer).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", nil)
	}

	var invoice models.Invoice
	if err := sc.DB.Where("id = ? AND customer_id = ?", input.InvoiceID, customer.ID).First(&invoice).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Invoice not found", nil)
	}

	now := time.Now()
	tone := utils.RecommendedTone(utils.ToneContext{
		AttemptNumber:      input.AttemptNumber,
		DaysOverdue:        invoice.DaysOverdue(now),
		Segment:            customer.Segment,
		PaymentHistory:     customer.PaymentHistoryGrade,
		RelationshipMonths: customer.RelationshipMonths(now),
	})

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"tone":         tone,
		"days_overdue": invoice.DaysOverdue(now),
	}))
}
