package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"bollette/internal/core"
)

// TransactionMessage is the record the bank/email ingestion pipeline
// publishes for each transaction. Amounts travel as decimal strings and are
// converted to cents exactly once, here.
type TransactionMessage struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"accountId"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	Date        time.Time `json:"date"`
	Direction   string    `json:"direction"`
}

// ToTransaction converts the wire record into the engine's Transaction.
func (m *TransactionMessage) ToTransaction() (core.Transaction, error) {
	amount, err := core.ParseMoney(m.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s amount %q: %w", m.ID, m.Amount, err)
	}
	direction := core.TransactionType(m.Direction)
	switch direction {
	case core.Income, core.Expense:
	default:
		direction = core.Expense
	}
	return core.Transaction{
		ID:          m.ID,
		AccountID:   m.AccountID,
		Description: m.Description,
		Amount:      amount,
		Date:        m.Date,
		Direction:   direction,
	}, nil
}

// TransactionMessageFromJSON decodes a wire record.
func TransactionMessageFromJSON(data []byte) (*TransactionMessage, error) {
	var msg TransactionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MatchResultMessage reports the matcher's verdict for one transaction so
// the triage surface can pick up unmatched ones.
type MatchResultMessage struct {
	TransactionID string    `json:"transactionId"`
	Outcome       string    `json:"outcome"`
	RuleID        int64     `json:"ruleId,omitempty"`
	InstanceID    int64     `json:"instanceId,omitempty"`
	TemplateID    int64     `json:"templateId,omitempty"`
	Period        string    `json:"period,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewMatchResultMessage builds the wire form of a MatchResult.
func NewMatchResultMessage(txID string, result core.MatchResult) *MatchResultMessage {
	msg := &MatchResultMessage{
		TransactionID: txID,
		Outcome:       string(result.Outcome),
		RuleID:        result.RuleID,
		InstanceID:    result.InstanceID,
		TemplateID:    result.TemplateID,
		Timestamp:     time.Now(),
	}
	if !result.Period.IsZero() {
		msg.Period = result.Period.String()
	}
	return msg
}

// ToJSON converts the message to JSON bytes.
func (m *MatchResultMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
