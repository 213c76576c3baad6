package funding

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/sharevault/internal/asset"
	"github.com/congo-pay/sharevault/internal/middleware"
	"github.com/congo-pay/sharevault/internal/sharemath"
)

// Handler exposes HTTP endpoints for funding accounts.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type fundRequest struct {
	Asset        string `json:"asset"`
	Amount       string `json:"amount"`
	ClientTxID   string `json:"client_tx_id"`
	ApproveVault bool   `json:"approve_vault"`
}

type approveRequest struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type fundResponse struct {
	TransactionID string `json:"transaction_id"`
	Holder        string `json:"holder"`
	Asset         string `json:"asset"`
	Balance       string `json:"balance"`
}

// Fund credits the caller's external balance.
func (h *Handler) Fund(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing caller")
	}
	var req fundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	id, err := asset.Parse(req.Asset)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := sharemath.Parse(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.Fund(c.UserContext(), FundInput{
		Holder:       caller,
		Asset:        id,
		Amount:       amount,
		ClientTxID:   req.ClientTxID,
		ApproveVault: req.ApproveVault,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateTransaction) {
			return c.Status(http.StatusOK).JSON(toResponse(result))
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(result))
}

// ApproveVault sets the caller's token approval for the vault.
func (h *Handler) ApproveVault(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing caller")
	}
	var req approveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	id, err := asset.Parse(req.Asset)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := sharemath.Parse(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.ApproveVault(c.UserContext(), caller, id, amount); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}

// Balance returns an account's external balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	holder := c.Params("holder")
	if !common.IsHexAddress(holder) {
		return fiber.NewError(http.StatusBadRequest, "invalid address")
	}
	id, err := asset.Parse(c.Params("asset"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	balance, err := h.service.Balance(c.UserContext(), common.HexToAddress(holder), id)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"holder":  common.HexToAddress(holder).Hex(),
		"asset":   id.String(),
		"balance": balance.String(),
	})
}

func toResponse(result Result) fundResponse {
	return fundResponse{
		TransactionID: result.TransactionID,
		Holder:        result.Holder.Hex(),
		Asset:         result.Asset.String(),
		Balance:       result.Balance.String(),
	}
}
