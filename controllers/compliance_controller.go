package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"tahseel/utils"
)

type ComplianceController struct {
	Oracle *utils.CalendarOracle
	Logger *log.Logger
}

func NewComplianceController(oracle *utils.CalendarOracle, logger *log.Logger) *ComplianceController {
	return &ComplianceController{Oracle: oracle, Logger: logger}
}

type scoreInput struct {
	Text             string `json:"text" validate:"required"`
	Language         string `json:"language" validate:"omitempty,oneof=en ar"`
	StepType         string `json:"step_type" validate:"omitempty,tone"`
	RelationshipTier string `json:"relationship_tier" validate:"omitempty,tier"`
}

// ScoreMessage previews the cultural-appropriateness breakdown for a draft
// reminder before it goes into a sequence. Scoring is advisory: the executor
// runs the same pass at dispatch but never blocks on it.
func (cpc *ComplianceController) ScoreMessage(c *fiber.Ctx) error {
	var input scoreInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	breakdown := utils.CalculateScore(input.Text, utils.ComplianceContext{
		Language:         input.Language,
		StepType:         input.StepType,
		RelationshipTier: input.RelationshipTier,
		IsRamadan:        cpc.Oracle.IsRamadan(time.Now()),
	})

	return c.JSON(utils.SuccessResponse(breakdown))
}
