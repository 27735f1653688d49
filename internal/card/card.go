package card

import (
	"errors"
	"io"
	"log/slog"
	"math"
)

// ErrOverLimit occurs when applying an amount would push the card balance
// above its limit. The balance is left untouched.
var ErrOverLimit = errors.New("card limit exceeded")

// ErrBalanceRange occurs when applying an amount would take the balance below
// the smallest representable value. The balance is left untouched.
var ErrBalanceRange = errors.New("card balance out of range")

// Status describes whether a card passed validation when it was created.
type Status string

const (
	// StatusValid marks a card that passed structural and Luhn checks.
	StatusValid Status = "Valid"
	// StatusInvalid marks a card that failed validation. Its limit is zero.
	StatusInvalid Status = "Invalid"
	// StatusFailedLuhn is a legacy terminal status treated the same as StatusInvalid.
	StatusFailedLuhn Status = "Failed Luhn"
)

// Card holds a card number with its running balance and limit. Number, limit
// and status are fixed at construction.
type Card struct {
	number  string
	balance int64
	limit   int64
	status  Status
	logger  *slog.Logger
}

// Option customises card construction.
type Option func(*options)

type options struct {
	bypass bool
	logger *slog.Logger
}

// WithValidationBypass forces every card to be treated as valid. Test use only.
func WithValidationBypass() Option {
	return func(o *options) { o.bypass = true }
}

// WithLogger attaches a logger used for debug tracing of balance changes.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New validates number and builds a card. Invalid cards get a zero limit.
func New(number string, limit int64, opts ...Option) *Card {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Card{number: number, status: StatusInvalid, logger: logger}
	if o.bypass || Validate(number) {
		c.status = StatusValid
		c.limit = limit
	}

	logger.Debug("card created", "card", Mask(number), "status", string(c.status), "limit", c.limit)
	return c
}

// Charge adds amount to the balance unless the result would exceed the limit.
func (c *Card) Charge(amount int64) error {
	switch {
	case amount > 0 && c.balance > math.MaxInt64-amount:
		c.logger.Debug("charge rejected", "card", Mask(c.number), "balance", c.balance, "amount", amount, "limit", c.limit)
		return ErrOverLimit
	case amount < 0 && c.balance < math.MinInt64-amount:
		return ErrBalanceRange
	}
	next := c.balance + amount
	if next > c.limit {
		c.logger.Debug("charge rejected", "card", Mask(c.number), "balance", c.balance, "amount", amount, "limit", c.limit)
		return ErrOverLimit
	}
	c.balance = next
	c.logger.Debug("charge applied", "card", Mask(c.number), "balance", c.balance)
	return nil
}

// Credit subtracts amount from the balance. There is no floor, so the balance
// may go negative. The ceiling check mirrors Charge.
func (c *Card) Credit(amount int64) error {
	switch {
	case amount < 0 && c.balance > math.MaxInt64+amount:
		c.logger.Debug("credit rejected", "card", Mask(c.number), "balance", c.balance, "amount", amount, "limit", c.limit)
		return ErrOverLimit
	case amount > 0 && c.balance < math.MinInt64+amount:
		return ErrBalanceRange
	}
	next := c.balance - amount
	if next > c.limit {
		c.logger.Debug("credit rejected", "card", Mask(c.number), "balance", c.balance, "amount", amount, "limit", c.limit)
		return ErrOverLimit
	}
	c.balance = next
	c.logger.Debug("credit applied", "card", Mask(c.number), "balance", c.balance)
	return nil
}

// Number returns the card number as supplied.
func (c *Card) Number() string { return c.number }

// Balance returns the current balance.
func (c *Card) Balance() int64 { return c.balance }

// Limit returns the credit limit, zero for invalid cards.
func (c *Card) Limit() int64 { return c.limit }

// Status returns the validation status.
func (c *Card) Status() Status { return c.status }

// IsValid reports whether the card can be charged or credited.
func (c *Card) IsValid() bool { return c.status == StatusValid }

// IsInvalid reports whether the card is in one of the failed states.
func (c *Card) IsInvalid() bool {
	return c.status == StatusInvalid || c.status == StatusFailedLuhn
}
