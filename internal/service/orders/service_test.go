package orders_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
	"github.com/vladislavdragonenkov/comanda/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/comanda/internal/service/orders"
	"github.com/vladislavdragonenkov/comanda/internal/storage/memory"
)

type capturingPublisher struct {
	events []*kafka.OrderEvent
	err    error
}

func (p *capturingPublisher) PublishOrderEvent(event *kafka.OrderEvent) error {
	p.events = append(p.events, event)
	return p.err
}

func testProducts() []domain.Product {
	return []domain.Product{
		{ID: "ESPFIL", Name: "Espetinho de Filé", PriceMinor: 495},
		{ID: "SUCLAR", Name: "Suco de Laranja", PriceMinor: 550},
	}
}

func newTestService(publisher orders.EventPublisher) *orders.Service {
	store := memory.NewStore(testProducts())
	return orders.NewService(store, nil, publisher, nil)
}

func TestCheckoutPublishesCreatedEvent(t *testing.T) {
	publisher := &capturingPublisher{}
	service := newTestService(publisher)

	if _, err := service.AddProductToCart("Ana", "ESPFIL"); err != nil {
		t.Fatalf("add product: %v", err)
	}
	if _, err := service.AddProductToCart("Ana", "SUCLAR"); err != nil {
		t.Fatalf("add product: %v", err)
	}

	order, err := service.Checkout("Ana", "cash", nil)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if order.TotalMinor != 1045 {
		t.Fatalf("order total = %d, want 1045", order.TotalMinor)
	}

	if len(publisher.events) != 1 {
		t.Fatalf("published %d events, want 1", len(publisher.events))
	}
	event := publisher.events[0]
	if event.EventType != kafka.EventTypeOrderCreated {
		t.Fatalf("event type = %q, want %q", event.EventType, kafka.EventTypeOrderCreated)
	}
	if event.OrderID != order.ID || event.ClientName != "Ana" || event.TotalMinor != 1045 {
		t.Fatalf("unexpected event payload: %+v", event)
	}
}

func TestLifecycleEvents(t *testing.T) {
	publisher := &capturingPublisher{}
	service := newTestService(publisher)

	if _, err := service.AddProductToCart("Bruno", "ESPFIL"); err != nil {
		t.Fatalf("add product: %v", err)
	}
	order, err := service.Checkout("Bruno", "card", nil)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if _, err := service.MarkOrderComplete(order.ID); err != nil {
		t.Fatalf("mark complete: %v", err)
	}
	if _, err := service.MarkOrderIncomplete(order.ID); err != nil {
		t.Fatalf("mark incomplete: %v", err)
	}
	note := "sem cebola"
	if _, err := service.ModifyOrderObservation(order.ID, &note); err != nil {
		t.Fatalf("modify observation: %v", err)
	}

	want := []kafka.EventType{
		kafka.EventTypeOrderCreated,
		kafka.EventTypeOrderComplete,
		kafka.EventTypeOrderReopened,
		kafka.EventTypeObservationModified,
	}
	if len(publisher.events) != len(want) {
		t.Fatalf("published %d events, want %d", len(publisher.events), len(want))
	}
	for i, eventType := range want {
		if publisher.events[i].EventType != eventType {
			t.Fatalf("event[%d] = %q, want %q", i, publisher.events[i].EventType, eventType)
		}
	}
	if publisher.events[1].Complete != true {
		t.Fatalf("complete event must carry complete=true")
	}
	if publisher.events[2].Complete != false {
		t.Fatalf("reopened event must carry complete=false")
	}
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	publisher := &capturingPublisher{err: errors.New("broker down")}
	service := newTestService(publisher)

	if _, err := service.AddProductToCart("Carla", "ESPFIL"); err != nil {
		t.Fatalf("add product: %v", err)
	}
	if _, err := service.Checkout("Carla", "pix", nil); err != nil {
		t.Fatalf("checkout must succeed despite publish failure, got %v", err)
	}
}

func TestNilPublisher(t *testing.T) {
	service := newTestService(nil)

	if _, err := service.AddProductToCart("Davi", "SUCLAR"); err != nil {
		t.Fatalf("add product: %v", err)
	}
	if _, err := service.Checkout("Davi", "cash", nil); err != nil {
		t.Fatalf("checkout: %v", err)
	}
}

func TestErrorsPassThroughUnchanged(t *testing.T) {
	publisher := &capturingPublisher{}
	service := newTestService(publisher)

	if _, err := service.Checkout("Ninguém", "cash", nil); !errors.Is(err, domain.ErrClientNotFound) {
		t.Fatalf("checkout of unknown client: got %v, want ErrClientNotFound", err)
	}
	if _, err := service.ProductByRef("nope"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("unknown product: got %v, want ErrProductNotFound", err)
	}
	if _, err := service.MarkOrderComplete("nope"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("unknown order: got %v, want ErrOrderNotFound", err)
	}
	if len(publisher.events) != 0 {
		t.Fatalf("failed operations must not publish events, got %d", len(publisher.events))
	}
}
