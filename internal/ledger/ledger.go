package ledger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/congo-pay/card_ledger/internal/account"
	"github.com/congo-pay/card_ledger/internal/card"
	"github.com/congo-pay/card_ledger/internal/money"
)

// ErrAccountNotFound occurs when a charge or credit names an account that was
// never created by an add.
var ErrAccountNotFound = errors.New("account not found")

// Summary is one line of the report in structured form.
type Summary struct {
	Name    string
	Valid   bool
	Status  string
	Balance int64
	Limit   int64
	Cards   int
}

// Line renders the summary as it appears in the text report.
func (s Summary) Line() string {
	if s.Valid {
		return fmt.Sprintf("%s: %s", s.Name, money.Format(s.Balance))
	}
	return fmt.Sprintf("%s: %s", s.Name, s.Status)
}

// Processor owns every account for a run. It is not safe for concurrent use;
// callers that share one must serialise access.
type Processor struct {
	accounts map[string]*account.Account
	logger   *slog.Logger
	cardOpts []card.Option
}

// Option customises a Processor.
type Option func(*Processor)

// WithLogger attaches a logger passed down to accounts and cards.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithCardOptions passes options to every card created through the processor.
func WithCardOptions(opts ...card.Option) Option {
	return func(p *Processor) { p.cardOpts = append(p.cardOpts, opts...) }
}

// New creates an empty processor.
func New(opts ...Option) *Processor {
	p := &Processor{
		accounts: make(map[string]*account.Account),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Add creates the account on first reference and adds the card to it. Adding
// a number the account already holds is a silent no-op.
func (p *Processor) Add(name, number, limit string) error {
	acct, ok := p.accounts[name]
	if !ok {
		acct = account.New(name, account.WithLogger(p.logger), account.WithCardOptions(p.cardOpts...))
		p.accounts[name] = acct
		p.logger.Debug("account created", "account", name)
	}
	if acct.HasCard(number) {
		p.logger.Debug("card already on account", "account", name, "card", card.Mask(number))
		return nil
	}
	if err := acct.AddCard(number, limit); err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	return nil
}

// Charge charges the default card of the named account.
func (p *Processor) Charge(name, amount string) error {
	acct, err := p.lookup(name)
	if err != nil {
		return err
	}
	if err := acct.Charge(amount); err != nil {
		return fmt.Errorf("charge %s: %w", name, err)
	}
	return nil
}

// ChargeCard charges a specific card of the named account.
func (p *Processor) ChargeCard(name, number, amount string) error {
	acct, err := p.lookup(name)
	if err != nil {
		return err
	}
	if err := acct.ChargeCard(number, amount); err != nil {
		return fmt.Errorf("charge %s: %w", name, err)
	}
	return nil
}

// Credit credits the default card of the named account.
func (p *Processor) Credit(name, amount string) error {
	acct, err := p.lookup(name)
	if err != nil {
		return err
	}
	if err := acct.Credit(amount); err != nil {
		return fmt.Errorf("credit %s: %w", name, err)
	}
	return nil
}

// CreditCard credits a specific card of the named account.
func (p *Processor) CreditCard(name, number, amount string) error {
	acct, err := p.lookup(name)
	if err != nil {
		return err
	}
	if err := acct.CreditCard(number, amount); err != nil {
		return fmt.Errorf("credit %s: %w", name, err)
	}
	return nil
}

// Account returns the named account.
func (p *Processor) Account(name string) (*account.Account, bool) {
	acct, ok := p.accounts[name]
	return acct, ok
}

func (p *Processor) lookup(name string) (*account.Account, error) {
	acct, ok := p.accounts[name]
	if !ok {
		p.logger.Debug("unknown account", "account", name)
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, name)
	}
	return acct, nil
}

// Summaries returns one entry per account sorted by name.
func (p *Processor) Summaries() []Summary {
	names := make([]string, 0, len(p.accounts))
	for name := range p.accounts {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Summary, 0, len(names))
	for _, name := range names {
		out = append(out, summarise(p.accounts[name]))
	}
	return out
}

// Summary returns the report entry for one account.
func (p *Processor) Summary(name string) (Summary, error) {
	acct, err := p.lookup(name)
	if err != nil {
		return Summary{}, err
	}
	return summarise(acct), nil
}

func summarise(acct *account.Account) Summary {
	s := Summary{
		Name:   acct.Name(),
		Status: string(acct.Status()),
		Cards:  len(acct.Cards()),
	}
	if !acct.IsValid() {
		return s
	}
	c, ok := acct.DefaultSource()
	if !ok {
		return s
	}
	s.Valid = true
	s.Balance = c.Balance()
	s.Limit = c.Limit()
	return s
}

// Report renders every account as "name: $balance" or "name: status", sorted
// by name, each line terminated by a newline.
func (p *Processor) Report() string {
	var b strings.Builder
	for _, s := range p.Summaries() {
		b.WriteString(s.Line())
		b.WriteByte('\n')
	}
	return b.String()
}

// StatusCode maps an operation result onto the 0/1 status used by callers
// that speak the command protocol.
func StatusCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}
