package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/card_ledger/internal/card"
	"github.com/congo-pay/card_ledger/internal/journal"
	"github.com/congo-pay/card_ledger/internal/ledger"
	"github.com/congo-pay/card_ledger/internal/money"
)

// Outcome describes the result of one applied command.
type Outcome struct {
	Sequence int64  `json:"sequence"`
	Command  string `json:"command"`
	Verb     Verb   `json:"verb"`
	Account  string `json:"account"`
	CardMask string `json:"card_mask,omitempty"`
	Amount   int64  `json:"amount"`
	Status   int    `json:"status"`
	Error    string `json:"error,omitempty"`

	err error
}

// Err returns the failure behind a non-zero status.
func (o Outcome) Err() error { return o.err }

// Stats counts what a Run processed.
type Stats struct {
	Lines     int
	Applied   int
	Failed    int
	Malformed int
}

// Dispatcher serialises commands against a single processor and journals
// every applied command.
type Dispatcher struct {
	mu     sync.Mutex
	proc   *ledger.Processor
	sink   journal.Sink
	fp     journal.Fingerprinter
	logger *slog.Logger
	seq    int64
	now    func() time.Time

	stopOnBlank bool
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithJournal sets where applied commands are recorded.
func WithJournal(sink journal.Sink, fp journal.Fingerprinter) Option {
	return func(d *Dispatcher) {
		if sink != nil {
			d.sink = sink
		}
		d.fp = fp
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// StopOnBlank makes Run stop at the first empty line, as an interactive
// session does.
func StopOnBlank() Option {
	return func(d *Dispatcher) { d.stopOnBlank = true }
}

// NewDispatcher wraps proc.
func NewDispatcher(proc *ledger.Processor, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		proc:   proc,
		sink:   journal.Discard,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Apply parses and executes one line. A non-nil error means the line was
// malformed and nothing was applied; ledger failures are reported in the
// outcome status instead.
func (d *Dispatcher) Apply(ctx context.Context, line string) (Outcome, error) {
	cmd, err := Parse(line)
	if err != nil {
		if errors.Is(err, ErrEmpty) {
			d.logger.Debug("blank command line")
		} else {
			d.logger.Warn("malformed command", "line", strings.TrimSpace(line), "error", err)
		}
		return Outcome{Command: strings.TrimSpace(line), Status: 1, Error: err.Error(), err: err}, err
	}
	return d.Execute(ctx, cmd), nil
}

// Execute applies an already-parsed command.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	switch cmd.Verb {
	case VerbAdd:
		err = d.proc.Add(cmd.Account, cmd.Card, cmd.Amount)
	case VerbCharge:
		if cmd.Card != "" {
			err = d.proc.ChargeCard(cmd.Account, cmd.Card, cmd.Amount)
		} else {
			err = d.proc.Charge(cmd.Account, cmd.Amount)
		}
	case VerbCredit:
		if cmd.Card != "" {
			err = d.proc.CreditCard(cmd.Account, cmd.Card, cmd.Amount)
		} else {
			err = d.proc.Credit(cmd.Account, cmd.Amount)
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownVerb, cmd.Verb)
	}

	d.seq++
	out := Outcome{
		Sequence: d.seq,
		Command:  cmd.String(),
		Verb:     cmd.Verb,
		Account:  cmd.Account,
		CardMask: card.Mask(cmd.Card),
		Amount:   money.Parse(cmd.Amount),
		Status:   ledger.StatusCode(err),
		err:      err,
	}
	if err != nil {
		out.Error = err.Error()
		d.logger.Info("command failed", "seq", out.Sequence, "verb", string(cmd.Verb), "account", cmd.Account, "error", err)
	} else {
		d.logger.Debug("command applied", "seq", out.Sequence, "verb", string(cmd.Verb), "account", cmd.Account)
	}

	entry := journal.Entry{
		ID:              uuid.New(),
		Sequence:        out.Sequence,
		Verb:            string(cmd.Verb),
		Account:         cmd.Account,
		CardMask:        out.CardMask,
		CardFingerprint: d.fp.Sum(cmd.Card),
		Amount:          out.Amount,
		Status:          out.Status,
		Error:           out.Error,
		RecordedAt:      d.now().UTC(),
	}
	if jerr := d.sink.Record(ctx, entry); jerr != nil {
		d.logger.Error("journal record failed", "seq", out.Sequence, "error", jerr)
	}
	return out
}

// Run applies every line read from r. Malformed lines are counted and
// skipped. It returns early only on read errors or context cancellation.
func (d *Dispatcher) Run(ctx context.Context, r io.Reader) (Stats, error) {
	var stats Stats
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if d.stopOnBlank && line == "" {
			break
		}
		stats.Lines++

		out, err := d.Apply(ctx, line)
		switch {
		case err != nil:
			stats.Malformed++
		case out.Status != 0:
			stats.Applied++
			stats.Failed++
		default:
			stats.Applied++
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read commands: %w", err)
	}
	return stats, nil
}

// Report returns the processor report.
func (d *Dispatcher) Report() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.proc.Report()
}

// Summaries returns the structured report.
func (d *Dispatcher) Summaries() []ledger.Summary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.proc.Summaries()
}

// Summary returns the report entry for one account.
func (d *Dispatcher) Summary(name string) (ledger.Summary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.proc.Summary(name)
}
