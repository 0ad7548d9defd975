package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	controller "tahseel/controllers"
	"tahseel/middleware"
	"tahseel/utils"
)

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	// Google OAuth routes
	auth.Get("/google", controller.GoogleLogin)
	auth.Get("/google/callback", controller.GoogleCallback)

	// Protected auth endpoints
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Post("/logout", controller.Logout)
	protectedAuth.Post("/change-password", controller.ChangePassword)
	protectedAuth.Get("/me", controller.Me)

	authLogger.Println("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB, executor *utils.SequenceExecutor, oracle *utils.CalendarOracle) {
	companyController := controller.NewCompanyController(db, log.New(os.Stdout, "COMPANY: ", log.LstdFlags))
	customerController := controller.NewCustomerController(db, log.New(os.Stdout, "CUSTOMER: ", log.LstdFlags))
	invoiceController := controller.NewInvoiceController(db, log.New(os.Stdout, "INVOICE: ", log.LstdFlags))
	sequenceController := controller.NewSequenceController(db, log.New(os.Stdout, "SEQUENCE: ", log.LstdFlags))
	executionController := controller.NewExecutionController(db, log.New(os.Stdout, "EXECUTION: ", log.LstdFlags), executor)
	calendarController := controller.NewCalendarController(oracle, log.New(os.Stdout, "CALENDAR: ", log.LstdFlags))
	complianceController := controller.NewComplianceController(oracle, log.New(os.Stdout, "COMPLIANCE: ", log.LstdFlags))
	dashboardController := controller.NewDashboardController(db, log.New(os.Stdout, "DASHBOARD: ", log.LstdFlags))

	// Stripe webhook is signed, not JWT-authenticated
	app.Post("/webhooks/stripe", invoiceController.HandleStripeWebhook)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Company routes
	company := api.Group("/companies")
	company.Post("/", companyController.CreateCompany)
	company.Get("/", companyController.ListCompanies)
	company.Get("/:id", companyController.GetCompany)
	company.Put("/:id", companyController.UpdateCompany)
	company.Delete("/:id", companyController.DeleteCompany)

	// Customer routes
	customer := api.Group("/customers")
	customer.Post("/", customerController.CreateCustomer)
	customer.Get("/", customerController.ListCustomers)
	customer.Get("/:id", customerController.GetCustomer)
	customer.Put("/:id", customerController.UpdateCustomer)
	customer.Delete("/:id", customerController.DeleteCustomer)
	customer.Post("/:id/verify-email", customerController.VerifyCustomerEmail)

	// Invoice routes
	invoice := api.Group("/invoices")
	invoice.Post("/", invoiceController.CreateInvoice)
	invoice.Get("/", invoiceController.ListInvoices)
	invoice.Get("/:id", invoiceController.GetInvoice)
	invoice.Put("/:id", invoiceController.UpdateInvoice)
	invoice.Delete("/:id", invoiceController.DeleteInvoice)
	invoice.Post("/:id/payments", invoiceController.RecordPayment)
	invoice.Post("/:id/payment-intent", invoiceController.CreatePaymentIntent)

	// Sequence routes
	sequence := api.Group("/sequences")
	sequence.Post("/", sequenceController.CreateSequence)
	sequence.Get("/", sequenceController.ListSequences)
	sequence.Get("/:id", sequenceController.GetSequence)
	sequence.Put("/:id", sequenceController.UpdateSequence)
	sequence.Delete("/:id", sequenceController.DeleteSequence)
	sequence.Post("/validate-escalation", sequenceController.ValidateSequenceEscalation)
	sequence.Post("/recommend-tone", sequenceController.RecommendTone)

	// Tone reference data
	tones := api.Group("/tones")
	tones.Get("/guidelines", sequenceController.GetToneGuidelines)
	tones.Get("/progression/:tier", sequenceController.GetTierProgression)

	// Execution routes; starts are rate limited per (user, sequence)
	sequence.Post("/:id/executions", middleware.ExecutionRateLimiter(), executionController.StartExecution)
	sequence.Get("/:id/executions", executionController.ListExecutions)
	sequence.Get("/:id/executions/status", executionController.GetExecutionStatus)
	sequence.Get("/:id/analytics", executionController.GetSequenceAnalytics)
	api.Post("/executions/:id/continue", executionController.ContinueExecution)

	// WebSocket route for execution progress
	app.Get("/api/v1/executions/progress", websocket.New(func(c *websocket.Conn) {
		executionController.HandleExecutionProgressWS(c)
	}))

	// Calendar routes
	calendar := api.Group("/calendar")
	calendar.Get("/next-business-time", calendarController.GetNextBusinessTime)
	calendar.Get("/optimal-send-time", calendarController.GetOptimalSendTime)
	calendar.Get("/check", calendarController.CheckBusinessDay)
	calendar.Get("/holidays", calendarController.GetUpcomingHolidays)
	calendar.Get("/business-days", calendarController.GetBusinessDaysBetween)

	// Compliance preview
	api.Post("/compliance/score", complianceController.ScoreMessage)

	// Collection position overview
	api.Get("/dashboard", dashboardController.GetSummary)

	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB, executor *utils.SequenceExecutor, oracle *utils.CalendarOracle) {
	controller.InitStripe()
	controller.InitGoogleOAuth()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupAuthRoutes(app, db)
	SetupAPIRoutes(app, db, executor, oracle)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
