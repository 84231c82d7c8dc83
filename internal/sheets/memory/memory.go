package memory

import (
	"context"
	"fmt"
	"sync"

	ports "invoicer/internal/sheets"
)

// Ledger keeps ledger rows in insertion order.
type Ledger struct {
	mu   sync.Mutex
	rows []ports.LedgerRow
}

var _ ports.LedgerWriter = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{}
}

// Upsert replaces the row with the same number or appends one, returning a
// synthetic reference with the row's 1-based position.
func (l *Ledger) Upsert(_ context.Context, row ports.LedgerRow) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.rows {
		if l.rows[i].Number == row.Number {
			l.rows[i] = row
			return fmt.Sprintf("mem:%d", i+1), nil
		}
	}
	l.rows = append(l.rows, row)
	return fmt.Sprintf("mem:%d", len(l.rows)), nil
}

func (l *Ledger) Delete(_ context.Context, number string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.rows {
		if l.rows[i].Number == number {
			l.rows = append(l.rows[:i], l.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// Rows returns a copy of the ledger.
func (l *Ledger) Rows() []ports.LedgerRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ports.LedgerRow(nil), l.rows...)
}
