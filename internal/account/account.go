package account

import (
	"errors"
	"io"
	"log/slog"
	"sort"

	"github.com/congo-pay/card_ledger/internal/card"
	"github.com/congo-pay/card_ledger/internal/money"
)

var (
	// ErrInvalidCard is returned by AddCard when the number fails validation.
	// The account is left in StatusError.
	ErrInvalidCard = errors.New("invalid card number")

	// ErrNoCards indicates a charge or credit against an account holding no cards.
	ErrNoCards = errors.New("account has no cards")

	// ErrCardNotFound indicates the target card is unknown, invalid, or there is
	// no usable default source.
	ErrCardNotFound = errors.New("card not found")
)

// Status is the account-level state shown in reports.
type Status string

const (
	// StatusValid means the last card added passed validation.
	StatusValid Status = "Valid"
	// StatusError means the last card added failed validation.
	StatusError Status = "error"
)

// Account groups the cards owned by one named holder.
type Account struct {
	name          string
	cards         map[string]*card.Card
	defaultSource string
	hasDefault    bool
	status        Status

	cardOpts []card.Option
	logger   *slog.Logger
}

// Option customises an Account.
type Option func(*Account)

// WithLogger attaches a logger for debug tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Account) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithCardOptions passes options to every card the account creates.
func WithCardOptions(opts ...card.Option) Option {
	return func(a *Account) { a.cardOpts = append(a.cardOpts, opts...) }
}

// New returns an empty account in StatusValid with no default source.
func New(name string, opts ...Option) *Account {
	a := &Account{
		name:   name,
		cards:  make(map[string]*card.Card),
		status: StatusValid,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddCard validates number and, if it passes, stores it and makes it the
// default source. A failing number clears the default source and flips the
// account to StatusError even when valid cards are already held.
func (a *Account) AddCard(number, limit string) error {
	opts := append([]card.Option{card.WithLogger(a.logger)}, a.cardOpts...)
	c := card.New(number, money.Parse(limit), opts...)

	if !c.IsValid() {
		a.defaultSource = ""
		a.hasDefault = false
		a.status = StatusError
		a.logger.Debug("card rejected", "account", a.name, "card", card.Mask(number))
		return ErrInvalidCard
	}

	a.cards[number] = c
	a.defaultSource = number
	a.hasDefault = true
	a.status = StatusValid
	a.logger.Debug("card added", "account", a.name, "card", card.Mask(number), "limit", c.Limit())
	return nil
}

// Charge applies amount to the default source.
func (a *Account) Charge(amount string) error {
	c, err := a.target("", false)
	if err != nil {
		return err
	}
	return c.Charge(money.Parse(amount))
}

// ChargeCard applies amount to the card with the given number.
func (a *Account) ChargeCard(number, amount string) error {
	c, err := a.target(number, true)
	if err != nil {
		return err
	}
	return c.Charge(money.Parse(amount))
}

// Credit applies a credit of amount to the default source.
func (a *Account) Credit(amount string) error {
	c, err := a.target("", false)
	if err != nil {
		return err
	}
	return c.Credit(money.Parse(amount))
}

// CreditCard applies a credit of amount to the card with the given number.
func (a *Account) CreditCard(number, amount string) error {
	c, err := a.target(number, true)
	if err != nil {
		return err
	}
	return c.Credit(money.Parse(amount))
}

func (a *Account) target(number string, explicit bool) (*card.Card, error) {
	if len(a.cards) == 0 {
		return nil, ErrNoCards
	}
	if !explicit {
		c, ok := a.DefaultSource()
		if !ok {
			a.logger.Debug("no default source", "account", a.name)
			return nil, ErrCardNotFound
		}
		return c, nil
	}
	c, ok := a.cards[number]
	if !ok || !c.IsValid() {
		a.logger.Debug("card not usable", "account", a.name, "card", card.Mask(number))
		return nil, ErrCardNotFound
	}
	return c, nil
}

// DefaultSource returns the card used when none is named. ok is false when the
// account has no usable default.
func (a *Account) DefaultSource() (*card.Card, bool) {
	if !a.hasDefault {
		return nil, false
	}
	c, ok := a.cards[a.defaultSource]
	if !ok || !c.IsValid() {
		return nil, false
	}
	return c, true
}

// HasCard reports whether number has been added to the account.
func (a *Account) HasCard(number string) bool {
	_, ok := a.cards[number]
	return ok
}

// Cards returns the held cards ordered by number.
func (a *Account) Cards() []*card.Card {
	out := make([]*card.Card, 0, len(a.cards))
	for _, c := range a.cards {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number() < out[j].Number() })
	return out
}

// Name returns the account holder name.
func (a *Account) Name() string { return a.name }

// Status returns the account status.
func (a *Account) Status() Status { return a.status }

// IsValid reports whether the account is in StatusValid and holds at least one card.
func (a *Account) IsValid() bool {
	return a.status == StatusValid && len(a.cards) > 0
}
