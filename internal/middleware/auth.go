package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/sharevault/internal/auth"
)

const callerLocal = "caller"

// BearerAuth validates HS256 bearer tokens and stores the caller address in
// the request locals.
func BearerAuth(secret string) fiber.Handler {
	key := []byte(secret)
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])
		caller, err := auth.VerifyToken(token, key, time.Now())
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		c.Locals(callerLocal, caller)
		return c.Next()
	}
}

// Caller returns the address authenticated by BearerAuth.
func Caller(c *fiber.Ctx) (common.Address, bool) {
	caller, ok := c.Locals(callerLocal).(common.Address)
	return caller, ok
}
