package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/sharevault/internal/vault"
)

// RegisterVaultReadRoutes wires the read-only pool and share endpoints.
func RegisterVaultReadRoutes(r fiber.Router, h *vault.Handler) {
	r.Get("/assets", h.Assets)
	r.Get("/assets/:asset/pool", h.Pool)
	r.Get("/assets/:asset/preview/deposit", h.PreviewDeposit)
	r.Get("/assets/:asset/preview/redeem", h.PreviewRedeem)
	r.Get("/shares/:owner/:asset", h.ShareBalance)
}

// RegisterVaultWriteRoutes wires endpoints that move assets or shares.
func RegisterVaultWriteRoutes(r fiber.Router, h *vault.Handler) {
	r.Post("/assets/:asset/deposit", h.Deposit)
	r.Post("/assets/:asset/redeem", h.Redeem)
	r.Post("/native/receive", h.ReceiveNative)
	r.Post("/shares/approve", h.Approve)
	r.Post("/shares/transfer", h.Transfer)
}
