package vault

import (
	"errors"
	"net/http"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/sharevault/internal/asset"
	"github.com/congo-pay/sharevault/internal/custody"
	"github.com/congo-pay/sharevault/internal/ledger"
	"github.com/congo-pay/sharevault/internal/middleware"
	"github.com/congo-pay/sharevault/internal/sharemath"
)

// Handler exposes vault HTTP endpoints.
type Handler struct {
	service  *Service
	registry *asset.Registry
}

// NewHandler builds a vault HTTP handler.
func NewHandler(service *Service, registry *asset.Registry) *Handler {
	if registry == nil {
		registry = asset.NewRegistry("")
	}
	return &Handler{service: service, registry: registry}
}

type poolResponse struct {
	Asset                string `json:"asset"`
	Symbol               string `json:"symbol,omitempty"`
	Decimals             int32  `json:"decimals"`
	TotalShares          string `json:"total_shares"`
	TotalAssets          string `json:"total_assets"`
	TotalAssetsFormatted string `json:"total_assets_formatted"`
}

type depositRequest struct {
	Amount   string `json:"amount"`
	Receiver string `json:"receiver"`
	Value    string `json:"value"`
}

type redeemRequest struct {
	Shares   string `json:"shares"`
	Receiver string `json:"receiver"`
	Owner    string `json:"owner"`
}

type approveRequest struct {
	Spender string `json:"spender"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Asset  string `json:"asset"`
	Shares string `json:"shares"`
}

type receiveRequest struct {
	Amount string `json:"amount"`
}

// Assets lists every registered asset together with pools that have seen
// deposits.
func (h *Handler) Assets(c *fiber.Ctx) error {
	pools, err := h.service.Pools(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}
	seen := make(map[asset.ID]bool, len(pools))
	out := make([]poolResponse, 0, len(pools))
	for _, meta := range h.registry.All() {
		state, err := h.service.Pool(c.UserContext(), meta.ID)
		if err != nil {
			return toHTTPError(err)
		}
		seen[meta.ID] = true
		out = append(out, h.poolResponse(state))
	}
	for _, state := range pools {
		if !seen[state.Asset] {
			out = append(out, h.poolResponse(state))
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"assets": out})
}

// Pool returns the totals of one pool.
func (h *Handler) Pool(c *fiber.Ctx) error {
	id, err := asset.Parse(c.Params("asset"))
	if err != nil {
		return toHTTPError(err)
	}
	state, err := h.service.Pool(c.UserContext(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(h.poolResponse(state))
}

// PreviewDeposit prices ?amount= in shares without changing state.
func (h *Handler) PreviewDeposit(c *fiber.Ctx) error {
	id, err := asset.Parse(c.Params("asset"))
	if err != nil {
		return toHTTPError(err)
	}
	amount, err := parseAmount(c.Query("amount"))
	if err != nil {
		return toHTTPError(err)
	}
	shares, err := h.service.PreviewDeposit(c.UserContext(), id, amount)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"asset":  id.String(),
		"amount": amount.String(),
		"shares": shares.String(),
	})
}

// PreviewRedeem prices ?shares= in underlying units without changing state.
func (h *Handler) PreviewRedeem(c *fiber.Ctx) error {
	id, err := asset.Parse(c.Params("asset"))
	if err != nil {
		return toHTTPError(err)
	}
	shares, err := parseAmount(c.Query("shares"))
	if err != nil {
		return toHTTPError(err)
	}
	amount, err := h.service.PreviewRedeem(c.UserContext(), id, shares)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"asset":            id.String(),
		"shares":           shares.String(),
		"amount":           amount.String(),
		"amount_formatted": h.registry.Format(id, amount),
	})
}

// Deposit moves the caller's assets in and mints shares to the receiver.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	id, err := asset.Parse(c.Params("asset"))
	if err != nil {
		return toHTTPError(err)
	}
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return toHTTPError(err)
	}
	value := sdkmath.ZeroUint()
	if req.Value != "" {
		if value, err = parseAmount(req.Value); err != nil {
			return toHTTPError(err)
		}
	}
	receiver, err := addressOr(req.Receiver, caller)
	if err != nil {
		return err
	}

	res, err := h.service.Deposit(c.UserContext(), DepositInput{
		Caller:   caller,
		Asset:    id,
		Amount:   amount,
		Receiver: receiver,
		Value:    value,
	})
	if err != nil {
		return toHTTPError(err)
	}
	c.Set(middleware.EventIDHeader, res.Event.ID)
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"event_id": res.Event.ID,
		"asset":    id.String(),
		"receiver": receiver.Hex(),
		"amount":   amount.String(),
		"shares":   res.Shares.String(),
	})
}

// Redeem burns the owner's shares and pays the receiver.
func (h *Handler) Redeem(c *fiber.Ctx) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	id, err := asset.Parse(c.Params("asset"))
	if err != nil {
		return toHTTPError(err)
	}
	var req redeemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	shares, err := parseAmount(req.Shares)
	if err != nil {
		return toHTTPError(err)
	}
	receiver, err := addressOr(req.Receiver, caller)
	if err != nil {
		return err
	}
	owner, err := addressOr(req.Owner, caller)
	if err != nil {
		return err
	}

	res, err := h.service.Redeem(c.UserContext(), RedeemInput{
		Caller:   caller,
		Asset:    id,
		Shares:   shares,
		Receiver: receiver,
		Owner:    owner,
	})
	if err != nil {
		return toHTTPError(err)
	}
	c.Set(middleware.EventIDHeader, res.Event.ID)
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"event_id":         res.Event.ID,
		"asset":            id.String(),
		"owner":            owner.Hex(),
		"receiver":         receiver.Hex(),
		"shares":           shares.String(),
		"amount":           res.Amount.String(),
		"amount_formatted": h.registry.Format(id, res.Amount),
	})
}

// ReceiveNative accepts plain native value from the caller.
func (h *Handler) ReceiveNative(c *fiber.Ctx) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	var req receiveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return toHTTPError(err)
	}
	if err := h.service.ReceiveNative(c.UserContext(), caller, amount); err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"from": caller.Hex(), "amount": amount.String()})
}

// ShareBalance returns an owner's shares of an asset and their current value.
func (h *Handler) ShareBalance(c *fiber.Ctx) error {
	owner, err := parseAddress(c.Params("owner"))
	if err != nil {
		return err
	}
	id, err := asset.Parse(c.Params("asset"))
	if err != nil {
		return toHTTPError(err)
	}
	shares, err := h.service.ShareBalance(c.UserContext(), owner, id)
	if err != nil {
		return toHTTPError(err)
	}
	value, err := h.service.ConvertToAssets(c.UserContext(), id, shares)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"owner":           owner.Hex(),
		"asset":           id.String(),
		"shares":          shares.String(),
		"value":           value.String(),
		"value_formatted": h.registry.Format(id, value),
	})
}

// Approve sets the allowance a spender holds over the caller's shares.
func (h *Handler) Approve(c *fiber.Ctx) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	var req approveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	spender, err := parseAddress(req.Spender)
	if err != nil {
		return err
	}
	id, err := asset.Parse(req.Asset)
	if err != nil {
		return toHTTPError(err)
	}
	amount, err := sharemath.Parse(strings.TrimSpace(req.Amount))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.Approve(c.UserContext(), caller, spender, id, amount); err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"owner":     caller.Hex(),
		"spender":   spender.Hex(),
		"asset":     id.String(),
		"amount":    amount.String(),
		"unlimited": sharemath.IsUnlimited(amount),
	})
}

// Transfer moves shares between holders without touching pool totals.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	from, err := addressOr(req.From, caller)
	if err != nil {
		return err
	}
	to, err := parseAddress(req.To)
	if err != nil {
		return err
	}
	id, err := asset.Parse(req.Asset)
	if err != nil {
		return toHTTPError(err)
	}
	shares, err := parseAmount(req.Shares)
	if err != nil {
		return toHTTPError(err)
	}
	res, err := h.service.TransferShares(c.UserContext(), caller, from, to, id, shares)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"transaction_id": res.TransactionID,
		"from_balance":   res.FromBalance.String(),
		"to_balance":     res.ToBalance.String(),
	})
}

func (h *Handler) poolResponse(state PoolState) poolResponse {
	resp := poolResponse{
		Asset:                state.Asset.String(),
		TotalShares:          state.TotalShares.String(),
		TotalAssets:          state.TotalAssets.String(),
		TotalAssetsFormatted: h.registry.Format(state.Asset, state.TotalAssets),
	}
	if meta, ok := h.registry.Lookup(state.Asset); ok {
		resp.Symbol = meta.Symbol
		resp.Decimals = meta.Decimals
	}
	return resp
}

func callerOf(c *fiber.Ctx) (common.Address, error) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return common.Address{}, fiber.NewError(http.StatusUnauthorized, "missing caller")
	}
	return caller, nil
}

func parseAmount(s string) (sdkmath.Uint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return sdkmath.ZeroUint(), fiber.NewError(http.StatusBadRequest, "amount is required")
	}
	v, err := sharemath.Parse(s)
	if err != nil {
		return sdkmath.ZeroUint(), fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return v, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fiber.NewError(http.StatusBadRequest, "invalid address "+s)
	}
	return common.HexToAddress(s), nil
}

func addressOr(s string, fallback common.Address) (common.Address, error) {
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	return parseAddress(s)
}

// toHTTPError maps domain errors onto HTTP status codes.
func toHTTPError(err error) error {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe
	case errors.Is(err, ErrIncorrectAmount),
		errors.Is(err, ErrZeroShares),
		errors.Is(err, asset.ErrInvalidAsset),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, sharemath.ErrArithmeticOverflow),
		errors.Is(err, sharemath.ErrArithmeticUnderflow):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientAllowance):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, custody.ErrInsufficientExternalBalance),
		errors.Is(err, custody.ErrInsufficientTokenAllowance),
		errors.Is(err, ErrDetachedReentry):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
