package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"tahseel/models"
	"tahseel/utils"
)

type CompanyController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewCompanyController(db *gorm.DB, logger *log.Logger) *CompanyController {
	return &CompanyController{DB: db, Logger: logger}
}

type companyInput struct {
	Name          string `json:"name" validate:"required,max=200"`
	NameArabic    string `json:"name_arabic"`
	TRN           string `json:"trn" validate:"required"`
	Emirate       string `json:"emirate"`
	BusinessHours string `json:"business_hours"`
	FromEmail     string `json:"from_email" validate:"omitempty,email"`
	FromName      string `json:"from_name"`

	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"smtp_password"`
	IMAPHost     string `json:"imap_host"`
	IMAPPort     int    `json:"imap_port"`
	IMAPUsername string `json:"imap_username"`
	IMAPPassword string `json:"imap_password"`
	IMAPMailbox  string `json:"imap_mailbox"`
}

func (cc *CompanyController) CreateCompany(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input companyInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	company := models.Company{
		UserID:        user.ID,
		Name:          input.Name,
		NameArabic:    input.NameArabic,
		TRN:           input.TRN,
		Emirate:       input.Emirate,
		BusinessHours: input.BusinessHours,
		FromEmail:     input.FromEmail,
		FromName:      input.FromName,
		SMTPHost:      input.SMTPHost,
		SMTPPort:      input.SMTPPort,
		SMTPUsername:  input.SMTPUsername,
		IMAPHost:      input.IMAPHost,
		IMAPPort:      input.IMAPPort,
		IMAPUsername:  input.IMAPUsername,
		IMAPMailbox:   input.IMAPMailbox,
	}

	// Mailbox credentials are encrypted at rest
	var err error
	if company.SMTPPassword, err = utils.Encrypt(input.SMTPPassword); err != nil {
		cc.Logger.Printf("Failed to encrypt SMTP password: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to store credentials", nil)
	}
	if company.IMAPPassword, err = utils.Encrypt(input.IMAPPassword); err != nil {
		cc.Logger.Printf("Failed to encrypt IMAP password: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to store credentials", nil)
	}

	if err := cc.DB.Create(&company).Error; err != nil {
		cc.Logger.Printf("Failed to create company: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create company", nil)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(company))
}

func (cc *CompanyController) ListCompanies(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var companies []models.Company
	if err := cc.DB.Where("user_id = ?", user.ID).Find(&companies).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list companies", nil)
	}
	return c.JSON(utils.SuccessResponse(companies))
}

func (cc *CompanyController) GetCompany(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var company models.Company
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&company).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Company not found", nil)
	}
	return c.JSON(utils.SuccessResponse(company))
}

func (cc *CompanyController) UpdateCompany(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var company models.Company
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&company).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Company not found", nil)
	}

	var input companyInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if input.Name != "" {
		company.Name = input.Name
	}
	if input.NameArabic != "" {
		company.NameArabic = input.NameArabic
	}
	if input.TRN != "" {
		company.TRN = input.TRN
	}
	if input.Emirate != "" {
		company.Emirate = input.Emirate
	}
	if input.BusinessHours != "" {
		company.BusinessHours = input.BusinessHours
	}
	if input.FromEmail != "" {
		company.FromEmail = input.FromEmail
	}
	if input.FromName != "" {
		company.FromName = input.FromName
	}
	if input.SMTPHost != "" {
		company.SMTPHost = input.SMTPHost
		company.SMTPPort = input.SMTPPort
		company.SMTPUsername = input.SMTPUsername
	}
	if input.SMTPPassword != "" {
		encrypted, err := utils.Encrypt(input.SMTPPassword)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to store credentials", nil)
		}
		company.SMTPPassword = encrypted
	}
	if input.IMAPHost != "" {
		company.IMAPHost = input.IMAPHost
		company.IMAPPort = input.IMAPPort
		company.IMAPUsername = input.IMAPUsername
		company.IMAPMailbox = input.IMAPMailbox
	}
	if input.IMAPPassword != "" {
		encrypted, err := utils.Encrypt(input.IMAPPassword)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to store credentials", nil)
		}
		company.IMAPPassword = encrypted
	}

	if err := cc.DB.Save(&company).Error; err != nil {
		cc.Logger.Printf("Failed to update company: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update company", nil)
	}

	return c.JSON(utils.SuccessResponse(company))
}

func (cc *CompanyController) DeleteCompany(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	result := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).Delete(&models.Company{})
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete company", nil)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Company not found", nil)
	}
	return c.JSON(fiber.Map{"message": "Company deleted successfully"})
}
