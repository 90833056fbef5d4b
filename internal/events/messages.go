package events

import (
	"encoding/json"
	"time"

	"duit/internal/core"
)

// Message kinds carried on the transaction event queue.
const (
	KindTransactionCreated = "transaction.created"
	KindTransactionDeleted = "transaction.deleted"
)

// TransactionMessage carries one transaction mutation to the export worker.
// Created messages embed the full row so the worker never reads the database;
// deleted messages carry only the id.
type TransactionMessage struct {
	Kind          string    `json:"kind"`
	Owner         string    `json:"owner"`
	TransactionID string    `json:"transaction_id"`
	Date          string    `json:"date,omitempty"`
	Description   string    `json:"description,omitempty"`
	Amount        int64     `json:"amount,omitempty"`
	Type          string    `json:"type,omitempty"`
	Category      string    `json:"category,omitempty"`
	Analysis      string    `json:"analysis,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionCreated builds a created message from a stored transaction.
func NewTransactionCreated(owner string, t core.Transaction) *TransactionMessage {
	return &TransactionMessage{
		Kind:          KindTransactionCreated,
		Owner:         owner,
		TransactionID: t.ID,
		Date:          t.Date.Format("2006-01-02"),
		Description:   t.Description,
		Amount:        t.Amount,
		Type:          string(t.Type),
		Category:      t.CategoryName,
		Analysis:      string(t.SpendingAnalysis),
		Timestamp:     time.Now(),
	}
}

// NewTransactionDeleted builds a deleted message for a transaction id.
func NewTransactionDeleted(owner, transactionID string) *TransactionMessage {
	return &TransactionMessage{
		Kind:          KindTransactionDeleted,
		Owner:         owner,
		TransactionID: transactionID,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionMessageFromJSON creates a message from JSON bytes
func TransactionMessageFromJSON(data []byte) (*TransactionMessage, error) {
	var msg TransactionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
