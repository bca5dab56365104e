package amqp

import (
	"encoding/json"
	"time"
)

// TransactionGeneratedMessage announces one transaction created by the
// recurring generation engine. It carries only identifiers; the worker
// fetches the full row from the database before exporting it.
type TransactionGeneratedMessage struct {
	TransactionID int64     `json:"transaction_id"`
	RuleID        int64     `json:"rule_id"`
	OwnerID       int64     `json:"owner_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionGeneratedMessage(transactionID, ruleID, ownerID int64) *TransactionGeneratedMessage {
	return &TransactionGeneratedMessage{
		TransactionID: transactionID,
		RuleID:        ruleID,
		OwnerID:       ownerID,
		Timestamp:     time.Now(),
	}
}

func (m *TransactionGeneratedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionGeneratedMessageFromJSON(data []byte) (*TransactionGeneratedMessage, error) {
	var msg TransactionGeneratedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
