package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

type EventType string

const (
	CategoryCreated    EventType = "category.created"
	CategoryUpdated    EventType = "category.updated"
	CategoryArchived   EventType = "category.archived"
	CategoryUnarchived EventType = "category.unarchived"
	CategoryDeleted    EventType = "category.deleted"
	ExpenseCreated     EventType = "expense.created"
	ExpenseDeleted     EventType = "expense.deleted"
	RecurringCreated   EventType = "recurring.created"
	RecurringToggled   EventType = "recurring.toggled"
	RecurringDeleted   EventType = "recurring.deleted"
	IncomeUpdated      EventType = "income.updated"
)

// BudgetEvent announces a write. It carries identifiers only, consumers
// load the current state from the store.
type BudgetEvent struct {
	Type     EventType `json:"type"`
	UserID   string    `json:"user_id"`
	EntityID string    `json:"entity_id,omitempty"`
	// Month is the YYYY-MM month the write affects, when there is one.
	Month     string    `json:"month,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

var ErrMalformedEvent = errors.New("malformed budget event")

func NewBudgetEvent(t EventType, userID, entityID, month string) *BudgetEvent {
	return &BudgetEvent{
		Type:      t,
		UserID:    userID,
		EntityID:  entityID,
		Month:     month,
		Timestamp: time.Now(),
	}
}

func (e *BudgetEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// BudgetEventFromJSON decodes a message body. Bodies without a type or a
// user are rejected.
func BudgetEventFromJSON(data []byte) (*BudgetEvent, error) {
	var ev BudgetEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.Type == "" || ev.UserID == "" {
		return nil, ErrMalformedEvent
	}
	return &ev, nil
}
