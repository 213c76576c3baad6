package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/sharevault/internal/auth"
)

const testSecret = "test-secret"

var testCaller = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

func bearer(t *testing.T, caller common.Address) string {
	t.Helper()
	token, err := auth.IssueToken(caller, time.Hour, []byte(testSecret), time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + token
}

func TestBearerAuthSetsCaller(t *testing.T) {
	app := fiber.New()
	app.Use(BearerAuth(testSecret))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		caller, ok := Caller(c)
		if !ok {
			return fiber.ErrUnauthorized
		}
		return c.SendString(caller.Hex())
	})

	req := httptest.NewRequest(fiber.MethodGet, "/whoami", nil)
	req.Header.Set(fiber.HeaderAuthorization, bearer(t, testCaller))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK || string(body) != testCaller.Hex() {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, body)
	}

	req = httptest.NewRequest(fiber.MethodGet, "/whoami", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer not.a.token")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.StatusCode)
	}
}

func TestRateLimitPerCaller(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	app.Use(BearerAuth(testSecret), RateLimit(cache, 2))
	app.Post("/deposit", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) })

	other := common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	send := func(caller common.Address) int {
		req := httptest.NewRequest(fiber.MethodPost, "/deposit", nil)
		req.Header.Set(fiber.HeaderAuthorization, bearer(t, caller))
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		return resp.StatusCode
	}

	for i := 0; i < 2; i++ {
		if got := send(testCaller); got != fiber.StatusCreated {
			t.Fatalf("request %d: expected 201 got %d", i, got)
		}
	}
	if got := send(testCaller); got != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", got)
	}
	if got := send(other); got != fiber.StatusCreated {
		t.Fatalf("other caller limited: %d", got)
	}
}
