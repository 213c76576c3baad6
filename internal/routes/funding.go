package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/sharevault/internal/funding"
)

// RegisterFundingRoutes wires the development faucet.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
	r.Get("/funding/:holder/:asset", h.Balance)
	r.Post("/funding/faucet", h.Fund)
	r.Post("/funding/approve", h.ApproveVault)
}
