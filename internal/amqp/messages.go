package amqp

import (
	"encoding/json"
	"time"
)

// BudgetCheckMessage asks the worker to re-evaluate one user's budgets for a
// category after an expense was written. It carries only ids; the worker
// reads current state from the store.
type BudgetCheckMessage struct {
	UserID     int64     `json:"user_id"`
	CategoryID int64     `json:"category_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewBudgetCheckMessage creates a check message for the given user and category.
func NewBudgetCheckMessage(userID, categoryID int64) *BudgetCheckMessage {
	return &BudgetCheckMessage{
		UserID:     userID,
		CategoryID: categoryID,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *BudgetCheckMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BudgetCheckMessageFromJSON creates a message from JSON bytes
func BudgetCheckMessageFromJSON(data []byte) (*BudgetCheckMessage, error) {
	var msg BudgetCheckMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
