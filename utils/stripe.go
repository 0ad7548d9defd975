package utils

import (
	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"tahseel/config"
)

// ConstructStripeEvent verifies the webhook signature and parses the event.
func ConstructStripeEvent(c *fiber.Ctx) (stripe.Event, error) {
	return webhook.ConstructEvent(
		c.Body(),
		c.Get("Stripe-Signature"),
		config.AppConfig.StripeWebhookSecret,
	)
}
