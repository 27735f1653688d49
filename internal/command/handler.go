package command

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/card_ledger/internal/account"
	"github.com/congo-pay/card_ledger/internal/card"
	"github.com/congo-pay/card_ledger/internal/ledger"
)

// Handler exposes the dispatcher over HTTP.
type Handler struct {
	dispatcher *Dispatcher
}

// NewHandler builds a command HTTP handler.
func NewHandler(dispatcher *Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

type commandsRequest struct {
	Command  string   `json:"command"`
	Commands []string `json:"commands"`
}

type addCardRequest struct {
	CardNumber string `json:"card_number"`
	Limit      string `json:"limit"`
}

type amountRequest struct {
	Amount     string `json:"amount"`
	CardNumber string `json:"card_number"`
}

type summaryResponse struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Valid   bool   `json:"valid"`
	Balance int64  `json:"balance"`
	Limit   int64  `json:"limit"`
	Cards   int    `json:"cards"`
	Line    string `json:"line"`
}

func toSummaryResponse(s ledger.Summary) summaryResponse {
	return summaryResponse{
		Name:    s.Name,
		Status:  s.Status,
		Valid:   s.Valid,
		Balance: s.Balance,
		Limit:   s.Limit,
		Cards:   s.Cards,
		Line:    s.Line(),
	}
}

// Submit applies one command line, or a batch of lines in order.
func (h *Handler) Submit(c *fiber.Ctx) error {
	var req commandsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	if len(req.Commands) == 0 {
		if strings.TrimSpace(req.Command) == "" {
			return fiber.NewError(http.StatusBadRequest, "command or commands is required")
		}
		out, err := h.dispatcher.Apply(c.UserContext(), req.Command)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return c.Status(http.StatusOK).JSON(out)
	}

	outcomes := make([]Outcome, 0, len(req.Commands))
	for _, line := range req.Commands {
		out, _ := h.dispatcher.Apply(c.UserContext(), line)
		outcomes = append(outcomes, out)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"outcomes": outcomes})
}

// AddCard adds a card to the named account, creating the account if needed.
func (h *Handler) AddCard(c *fiber.Ctx) error {
	var req addCardRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.CardNumber == "" {
		return fiber.NewError(http.StatusBadRequest, "card_number is required")
	}
	out := h.dispatcher.Execute(c.UserContext(), Command{
		Verb:    VerbAdd,
		Account: c.Params("name"),
		Card:    req.CardNumber,
		Amount:  req.Limit,
	})
	return respond(c, http.StatusCreated, out)
}

// Charge charges the named account's default card or the card given in the body.
func (h *Handler) Charge(c *fiber.Ctx) error {
	return h.amount(c, VerbCharge)
}

// Credit credits the named account's default card or the card given in the body.
func (h *Handler) Credit(c *fiber.Ctx) error {
	return h.amount(c, VerbCredit)
}

func (h *Handler) amount(c *fiber.Ctx, verb Verb) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Amount) == "" {
		return fiber.NewError(http.StatusBadRequest, "amount is required")
	}
	out := h.dispatcher.Execute(c.UserContext(), Command{
		Verb:    verb,
		Account: c.Params("name"),
		Card:    req.CardNumber,
		Amount:  req.Amount,
	})
	return respond(c, http.StatusOK, out)
}

// Accounts lists every account summary sorted by name.
func (h *Handler) Accounts(c *fiber.Ctx) error {
	sums := h.dispatcher.Summaries()
	resp := make([]summaryResponse, 0, len(sums))
	for _, s := range sums {
		resp = append(resp, toSummaryResponse(s))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"accounts": resp})
}

// Account returns a single account summary.
func (h *Handler) Account(c *fiber.Ctx) error {
	s, err := h.dispatcher.Summary(c.Params("name"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toSummaryResponse(s))
}

// Report returns the plain-text report.
func (h *Handler) Report(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(http.StatusOK).SendString(h.dispatcher.Report())
}

// respond writes the outcome with a status derived from its failure, if any.
func respond(c *fiber.Ctx, success int, out Outcome) error {
	status := success
	switch err := out.Err(); {
	case err == nil:
	case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, account.ErrCardNotFound), errors.Is(err, account.ErrNoCards):
		status = http.StatusNotFound
	case errors.Is(err, card.ErrOverLimit), errors.Is(err, card.ErrBalanceRange), errors.Is(err, account.ErrInvalidCard):
		status = http.StatusUnprocessableEntity
	default:
		status = http.StatusBadRequest
	}
	return c.Status(status).JSON(out)
}
