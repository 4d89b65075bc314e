package kafka

import "time"

// EventType определяет тип события заказа.
type EventType string

const (
	EventTypeOrderCreated        EventType = "order.created"
	EventTypeOrderComplete       EventType = "order.complete"
	EventTypeOrderReopened       EventType = "order.reopened"
	EventTypeObservationModified EventType = "order.observation_modified"
)

// TopicOrderEvents — топик событий жизненного цикла заказов.
const TopicOrderEvents = "comanda.order.events"

// OrderEvent — публикуемое событие заказа.
type OrderEvent struct {
	EventType  EventType `json:"event_type"`
	OrderID    string    `json:"order_id"`
	ClientName string    `json:"client_name"`
	TotalMinor int64     `json:"total_minor"`
	Complete   bool      `json:"complete"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewOrderEvent создаёт событие заказа с текущей меткой времени.
func NewOrderEvent(eventType EventType, orderID, clientName string, totalMinor int64, complete bool) *OrderEvent {
	return &OrderEvent{
		EventType:  eventType,
		OrderID:    orderID,
		ClientName: clientName,
		TotalMinor: totalMinor,
		Complete:   complete,
		Timestamp:  time.Now(),
	}
}
