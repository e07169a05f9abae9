package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"ledgerq/internal/core"
)

// DeltaMessage is one committed ledger change on the wire. It carries the
// whole record so consumers never read the ledger back.
type DeltaMessage struct {
	Op          core.DeltaOp `json:"op"`
	Month       string       `json:"month"`
	ID          string       `json:"id"`
	Date        string       `json:"date"`
	Description string       `json:"description"`
	AmountCents int64        `json:"amount_cents"`
	Category    string       `json:"category,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	Timestamp   time.Time    `json:"timestamp"`
}

// NewDeltaMessage converts a delta, stamping it with now.
func NewDeltaMessage(d core.LedgerDelta, now time.Time) *DeltaMessage {
	return &DeltaMessage{
		Op:          d.Op,
		Month:       d.Month.String(),
		ID:          d.Record.ID,
		Date:        d.Record.Date.String(),
		Description: d.Record.Description,
		AmountCents: d.Record.Amount.Cents,
		Category:    d.Record.Category,
		CreatedAt:   d.Record.CreatedAt,
		Timestamp:   now,
	}
}

// ToJSON converts the message to JSON bytes
func (m *DeltaMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DeltaMessageFromJSON decodes a message body.
func DeltaMessageFromJSON(data []byte) (*DeltaMessage, error) {
	var msg DeltaMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Delta converts the message back to a ledger delta.
func (m *DeltaMessage) Delta() (core.LedgerDelta, error) {
	if m.Op != core.DeltaAdded && m.Op != core.DeltaDeleted {
		return core.LedgerDelta{}, fmt.Errorf("unknown delta op %q", m.Op)
	}
	month, err := core.ParseMonthKey(m.Month)
	if err != nil {
		return core.LedgerDelta{}, fmt.Errorf("month: %w", err)
	}
	date, err := core.ParseDate(m.Date)
	if err != nil {
		return core.LedgerDelta{}, fmt.Errorf("date: %w", err)
	}
	if m.ID == "" {
		return core.LedgerDelta{}, fmt.Errorf("missing record id")
	}
	return core.LedgerDelta{
		Op:    m.Op,
		Month: month,
		Record: core.Expense{
			ID:          m.ID,
			Date:        date,
			Description: m.Description,
			Amount:      core.Money{Cents: m.AmountCents},
			Category:    m.Category,
			CreatedAt:   m.CreatedAt,
		},
	}, nil
}
