// Package command parses ledger command lines and applies them to a processor.
package command

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmpty is returned for blank lines.
	ErrEmpty = errors.New("empty command")
	// ErrUnknownVerb is returned when the first token is not a known verb.
	ErrUnknownVerb = errors.New("unknown command")
	// ErrArgCount is returned when a known verb has the wrong number of tokens.
	ErrArgCount = errors.New("wrong number of arguments")
)

// Verb names a ledger operation. Verbs are case-sensitive.
type Verb string

const (
	VerbAdd    Verb = "Add"
	VerbCharge Verb = "Charge"
	VerbCredit Verb = "Credit"
)

// tokens is the exact token count each verb requires, verb included.
var tokens = map[Verb]int{
	VerbAdd:    4,
	VerbCharge: 3,
	VerbCredit: 3,
}

// Command is a parsed ledger instruction. Card is the card number for Add, and
// an optional explicit target for Charge and Credit. Amount holds the raw
// "$<n>" token, the limit for Add.
type Command struct {
	Verb    Verb
	Account string
	Card    string
	Amount  string
}

// String renders the command back into line form.
func (c Command) String() string {
	if c.Verb == VerbAdd {
		return fmt.Sprintf("%s %s %s %s", c.Verb, c.Account, c.Card, c.Amount)
	}
	return fmt.Sprintf("%s %s %s", c.Verb, c.Account, c.Amount)
}

// Parse splits line on whitespace and checks the verb and argument count.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, ErrEmpty
	}

	verb := Verb(fields[0])
	want, ok := tokens[verb]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownVerb, fields[0])
	}
	if len(fields) != want {
		return Command{}, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrArgCount, verb, want-1, len(fields)-1)
	}

	switch verb {
	case VerbAdd:
		return Command{Verb: verb, Account: fields[1], Card: fields[2], Amount: fields[3]}, nil
	default:
		return Command{Verb: verb, Account: fields[1], Amount: fields[2]}, nil
	}
}
