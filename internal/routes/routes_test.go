package routes

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/sharevault/internal/auth"
	"github.com/congo-pay/sharevault/internal/config"
	"github.com/congo-pay/sharevault/internal/logging"
)

const (
	testSecret = "route-secret"
	tokenAddr  = "0x00000000000000000000000000000000000000aa"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := config.Config{
		AppName:            "ShareVault",
		AppEnv:             "test",
		JWTSecret:          testSecret,
		VaultAddress:       "0x000000000000000000000000000000000000dEaD",
		NativeSymbol:       "ETH",
		Assets:             "USDC:" + tokenAddr + ":6",
		NativePreviewBasis: "pre",
		RateLimitPerMinute: 1000,
		IdempotencyTTL:     time.Minute,
	}
	app := fiber.New()
	if err := Setup(app, Deps{Cfg: cfg, Logger: logging.Discard()}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return app
}

func call(t *testing.T, app *fiber.App, method, path string, caller *common.Address, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if caller != nil {
		token, err := auth.IssueToken(*caller, time.Hour, []byte(testSecret), time.Now())
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestVaultFlowOverHTTP(t *testing.T) {
	app := setupApp(t)

	status, body := call(t, app, fiber.MethodPost, "/api/v1/funding/faucet", &alice,
		`{"asset":"`+tokenAddr+`","amount":"1000","approve_vault":true}`)
	if status != fiber.StatusCreated {
		t.Fatalf("faucet: expected 201 got %d %v", status, body)
	}

	status, body = call(t, app, fiber.MethodPost, "/api/v1/assets/"+tokenAddr+"/deposit", &alice, `{"amount":"100"}`)
	if status != fiber.StatusCreated || body["shares"] != "100" {
		t.Fatalf("deposit: %d %v", status, body)
	}

	status, body = call(t, app, fiber.MethodGet, "/api/v1/assets/"+tokenAddr+"/pool", nil, "")
	if status != fiber.StatusOK || body["total_shares"] != "100" || body["total_assets"] != "100" || body["symbol"] != "USDC" {
		t.Fatalf("pool: %d %v", status, body)
	}

	status, body = call(t, app, fiber.MethodGet, "/api/v1/assets/"+tokenAddr+"/preview/redeem?shares=50", nil, "")
	if status != fiber.StatusOK || body["amount"] != "50" || body["amount_formatted"] != "0.00005" {
		t.Fatalf("preview redeem: %d %v", status, body)
	}

	status, _ = call(t, app, fiber.MethodPost, "/api/v1/assets/"+tokenAddr+"/redeem", &bob,
		`{"shares":"10","owner":"`+alice.Hex()+`"}`)
	if status != fiber.StatusForbidden {
		t.Fatalf("redeem without allowance: expected 403 got %d", status)
	}

	status, _ = call(t, app, fiber.MethodPost, "/api/v1/shares/approve", &alice,
		`{"spender":"`+bob.Hex()+`","asset":"`+tokenAddr+`","amount":"10"}`)
	if status != fiber.StatusOK {
		t.Fatalf("approve: expected 200 got %d", status)
	}
	status, body = call(t, app, fiber.MethodPost, "/api/v1/assets/"+tokenAddr+"/redeem", &bob,
		`{"shares":"10","owner":"`+alice.Hex()+`"}`)
	if status != fiber.StatusOK || body["amount"] != "10" || body["receiver"] != bob.Hex() {
		t.Fatalf("redeem with allowance: %d %v", status, body)
	}

	status, body = call(t, app, fiber.MethodGet, "/api/v1/shares/"+alice.Hex()+"/"+tokenAddr, nil, "")
	if status != fiber.StatusOK || body["shares"] != "90" {
		t.Fatalf("share balance: %d %v", status, body)
	}
}

func TestNativeDepositErrorsOverHTTP(t *testing.T) {
	app := setupApp(t)

	status, _ := call(t, app, fiber.MethodPost, "/api/v1/funding/faucet", &alice, `{"asset":"native","amount":"5000"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("faucet: expected 201 got %d", status)
	}

	status, _ = call(t, app, fiber.MethodPost, "/api/v1/assets/native/deposit", &alice, `{"amount":"1000","value":"900"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("mismatched value: expected 400 got %d", status)
	}

	status, _ = call(t, app, fiber.MethodPost, "/api/v1/assets/native/deposit", &alice, `{"amount":"0","value":"0"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("zero deposit: expected 400 got %d", status)
	}

	status, body := call(t, app, fiber.MethodPost, "/api/v1/assets/native/deposit", &alice, `{"amount":"1000","value":"1000"}`)
	if status != fiber.StatusCreated || body["shares"] != "1000" {
		t.Fatalf("native deposit: %d %v", status, body)
	}

	status, body = call(t, app, fiber.MethodGet, "/api/v1/funding/"+alice.Hex()+"/native", &alice, "")
	if status != fiber.StatusOK || body["balance"] != "4000" {
		t.Fatalf("external balance: %d %v", status, body)
	}

	status, _ = call(t, app, fiber.MethodPost, "/api/v1/assets/native/deposit", nil, `{"amount":"1"}`)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("anonymous deposit: expected 401 got %d", status)
	}
}

func TestHealthAndAssets(t *testing.T) {
	app := setupApp(t)

	status, body := call(t, app, fiber.MethodGet, "/healthz", nil, "")
	if status != fiber.StatusOK {
		t.Fatalf("healthz: %d %v", status, body)
	}

	status, body = call(t, app, fiber.MethodGet, "/api/v1/assets", nil, "")
	if status != fiber.StatusOK {
		t.Fatalf("assets: %d", status)
	}
	assets, _ := body["assets"].([]any)
	if len(assets) != 2 {
		t.Fatalf("expected native and USDC, got %v", body["assets"])
	}
	first, _ := assets[0].(map[string]any)
	if first["asset"] != "native" || first["symbol"] != "ETH" {
		t.Fatalf("expected native first, got %v", first)
	}
}
