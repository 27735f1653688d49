package journal

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Entry is the audit record written for every processed command. Card numbers
// never appear in clear; only a mask and a keyed fingerprint are kept.
type Entry struct {
	ID              uuid.UUID `json:"id"`
	Sequence        int64     `json:"sequence"`
	Verb            string    `json:"verb"`
	Account         string    `json:"account"`
	CardMask        string    `json:"card_mask,omitempty"`
	CardFingerprint string    `json:"card_fingerprint,omitempty"`
	Amount          int64     `json:"amount"`
	Status          int       `json:"status"`
	Error           string    `json:"error,omitempty"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// Sink receives journal entries. The journal is write-only; nothing reads it
// back into the ledger.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// Fingerprinter derives a stable keyed hash for card numbers so entries for
// the same card can be correlated without storing the number.
type Fingerprinter struct {
	key []byte
}

// NewFingerprinter builds a fingerprinter keyed by pepper. Peppers longer than
// the BLAKE2b key size are compressed first.
func NewFingerprinter(pepper string) Fingerprinter {
	key := []byte(pepper)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	return Fingerprinter{key: key}
}

// Sum returns the hex fingerprint of number, or "" for an empty number.
func (f Fingerprinter) Sum(number string) string {
	if number == "" {
		return ""
	}
	h, err := blake2b.New256(f.key)
	if err != nil {
		// only possible for keys over 64 bytes, which NewFingerprinter prevents
		return ""
	}
	h.Write([]byte(number))
	return hex.EncodeToString(h.Sum(nil))
}

// Memory keeps entries in process memory.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Record appends the entry.
func (m *Memory) Record(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns a copy of everything recorded so far.
func (m *Memory) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

type discard struct{}

func (discard) Record(context.Context, Entry) error { return nil }

// Discard is a sink that drops every entry.
var Discard Sink = discard{}

type multi []Sink

// Multi fans entries out to every sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multi) Record(ctx context.Context, entry Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
