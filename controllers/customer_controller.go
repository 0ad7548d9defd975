package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"tahseel/models"
	"tahseel/utils"
)

type CustomerController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewCustomerController(db *gorm.DB, logger *log.Logger) *CustomerController {
	return &CustomerController{DB: db, Logger: logger}
}

type customerInput struct {
	CompanyID           uint       `json:"company_id" validate:"required"`
	Name                string     `json:"name" validate:"required,max=200"`
	NameArabic          string     `json:"name_arabic"`
	Email               string     `json:"email" validate:"required,email"`
	Phone               string     `json:"phone"`
	Tier                string     `json:"tier" validate:"omitempty,tier"`
	Segment             string     `json:"segment"`
	Language            string     `json:"language" validate:"omitempty,oneof=en ar"`
	PaymentHistoryGrade string     `json:"payment_history_grade" validate:"omitempty,oneof=excellent good average poor"`
	RelationshipSince   *time.Time `json:"relationship_since"`
	IsDoNotContact      *bool      `json:"is_do_not_contact"`
}

// ownedCompany loads a company only when the requesting user owns it.
func (cc *CustomerController) ownedCompany(userID, companyID uint) (*models.Company, error) {
	var company models.Company
	err := cc.DB.Where("id = ? AND user_id = ?", companyID, userID).First(&company).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

func (cc *CustomerController) CreateCustomer(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input customerInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	if _, err := cc.ownedCompany(user.ID, input.CompanyID); err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Company not found", nil)
	}

	customer := models.Customer{
		CompanyID:         input.CompanyID,
		Name:              input.Name,
		NameArabic:        input.NameArabic,
		Email:             input.Email,
		Phone:             input.Phone,
		Segment:           input.Segment,
		RelationshipSince: input.RelationshipSince,
	}
	if input.Tier != "" {
		customer.Tier = input.Tier
	}
	if input.Language != "" {
		customer.Language = input.Language
	}
	if input.PaymentHistoryGrade != "" {
		customer.PaymentHistoryGrade = input.PaymentHistoryGrade
	}
	if input.IsDoNotContact != nil {
		customer.IsDoNotContact = *input.IsDoNotContact
	}

	if err := cc.DB.Create(&customer).Error; err != nil {
		cc.Logger.Printf("Failed to create customer: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create customer", nil)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(customer))
}

func (cc *CustomerController) ListCustomers(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query := cc.DB.
		Joins("JOIN companies ON companies.id = customers.company_id").
		Where("companies.user_id = ?", user.ID)

	if companyID := c.Query("company_id"); companyID != "" {
		query = query.Where("customers.company_id = ?", companyID)
	}
	if tier := c.Query("tier"); tier != "" {
		query = query.Where("customers.tier = ?", tier)
	}

	var customers []models.Customer
	if err := query.Find(&customers).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list customers", nil)
	}
	return c.JSON(utils.SuccessResponse(customers))
}

func (cc *CustomerController) GetCustomer(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var customer models.Customer
	err := cc.DB.
		Joins("JOIN companies ON companies.id = customers.company_id").
		Where("customers.id = ? AND companies.user_id = ?", c.Params("id"), user.ID).
		Preload("Invoices").
		First(&customer).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", nil)
	}
	return c.JSON(utils.SuccessResponse(customer))
}

func (cc *CustomerController) UpdateCustomer(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var customer models.Customer
	err := cc.DB.
		Joins("JOIN companies ON companies.id = customers.company_id").
		Where("customers.id = ? AND companies.user_id = ?", c.Params("id"), user.ID).
		First(&customer).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", nil)
	}

	var input customerInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if input.Name != "" {
		customer.Name = input.Name
	}
	if input.NameArabic != "" {
		customer.NameArabic = input.NameArabic
	}
	if input.Email != "" && input.Email != customer.Email {
		customer.Email = input.Email
		customer.EmailVerified = false
	}
	if input.Phone != "" {
		customer.Phone = input.Phone
	}
	if input.Tier != "" {
		customer.Tier = input.Tier
	}
	if input.Segment != "" {
		customer.Segment = input.Segment
	}
	if input.Language != "" {
		customer.Language = input.Language
	}
	if input.PaymentHistoryGrade != "" {
		customer.PaymentHistoryGrade = input.PaymentHistoryGrade
	}
	if input.RelationshipSince != nil {
		customer.RelationshipSince = input.RelationshipSince
	}
	if input.IsDoNotContact != nil {
		customer.IsDoNotContact = *input.IsDoNotContact
	}

	if err := utils.ValidateStruct(customerInput{
		CompanyID: customer.CompanyID,
		Name:      customer.Name,
		Email:     customer.Email,
		Tier:      customer.Tier,
	}); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	if err := cc.DB.Save(&customer).Error; err != nil {
		cc.Logger.Printf("Failed to update customer: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update customer", nil)
	}
	return c.JSON(utils.SuccessResponse(customer))
}

func (cc *CustomerController) DeleteCustomer(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var customer models.Customer
	err := cc.DB.
		Joins("JOIN companies ON companies.id = customers.company_id").
		Where("customers.id = ? AND companies.user_id = ?", c.Params("id"), user.ID).
		First(&customer).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", nil)
	}

	if err := cc.DB.Delete(&customer).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete customer", nil)
	}
	return c.JSON(fiber.Map{"message": "Customer deleted successfully"})
}

// VerifyCustomerEmail runs the offline deliverability checks (syntax,
// disposable-domain, MX) and stamps the result.
func (cc *CustomerController) VerifyCustomerEmail(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var customer models.Customer
	err := cc.DB.
		Joins("JOIN companies ON companies.id = customers.company_id").
		Where("customers.id = ? AND companies.user_id = ?", c.Params("id"), user.ID).
		First(&customer).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", nil)
	}

	result := utils.VerifyCustomerEmail(customer.Email)
	verified := result.Status == "valid"
	if customer.EmailVerified != verified {
		customer.EmailVerified = verified
		if err := cc.DB.Save(&customer).Error; err != nil {
			cc.Logger.Printf("Failed to stamp verification result: %v", err)
		}
	}

	return c.JSON(utils.SuccessResponse(result))
}
