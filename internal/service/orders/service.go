// Пакет orders — прикладной слой над стратегией хранения: логирование,
// метрики и публикация событий вокруг операций ядра. Семантику операций
// определяет domain.Strategy, слой её не меняет.
package orders

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
	"github.com/vladislavdragonenkov/comanda/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/comanda/internal/metrics"
)

// EventPublisher публикует события жизненного цикла заказов.
type EventPublisher interface {
	PublishOrderEvent(event *kafka.OrderEvent) error
}

// Service оборачивает стратегию хранения прикладными заботами.
type Service struct {
	strategy  domain.Strategy
	metrics   *metrics.OrderMetrics
	publisher EventPublisher
	logger    *log.Entry
}

// NewService создаёт сервис. publisher может быть nil — тогда события
// не публикуются; metrics может быть nil в тестах.
func NewService(strategy domain.Strategy, m *metrics.OrderMetrics, publisher EventPublisher, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "orders-service")
	}
	return &Service{
		strategy:  strategy,
		metrics:   m,
		publisher: publisher,
		logger:    logger,
	}
}

// Products возвращает каталог.
func (s *Service) Products() ([]domain.Product, error) {
	products, err := s.strategy.Products()
	return products, s.observe("list products", err)
}

// ProductByRef возвращает позицию каталога по ссылке.
func (s *Service) ProductByRef(ref string) (domain.Product, error) {
	product, err := s.strategy.ProductByRef(ref)
	return product, s.observe("get product", err)
}

// Orders возвращает журнал заказов.
func (s *Service) Orders() ([]domain.Order, error) {
	orders, err := s.strategy.Orders()
	return orders, s.observe("list orders", err)
}

// OrderByRef возвращает заказ по ссылке.
func (s *Service) OrderByRef(ref string) (domain.Order, error) {
	order, err := s.strategy.OrderByRef(ref)
	return order, s.observe("get order", err)
}

// Cart возвращает корзину клиента.
func (s *Service) Cart(clientRef string) (domain.Cart, error) {
	cart, err := s.strategy.Cart(clientRef)
	return cart, s.observe("get cart", err)
}

// AddProductToCart добавляет позицию в корзину клиента.
func (s *Service) AddProductToCart(clientRef, productRef string) (domain.Client, error) {
	client, err := s.strategy.AddProductToCart(clientRef, productRef)
	if err != nil {
		return domain.Client{}, s.observe("add product", err)
	}

	if s.metrics != nil {
		s.metrics.RecordCartAddition()
	}
	s.logger.WithFields(log.Fields{
		"client":      client.Name,
		"product":     productRef,
		"cart_size":   len(client.Cart.Products),
		"total_minor": client.Cart.TotalMinor,
	}).Info("product added to cart")
	return client, nil
}

// RemoveProductFromCart убирает позицию из корзины клиента.
func (s *Service) RemoveProductFromCart(clientRef, productRef string) (domain.Client, error) {
	client, err := s.strategy.RemoveProductFromCart(clientRef, productRef)
	if err != nil {
		return domain.Client{}, s.observe("remove product", err)
	}

	if s.metrics != nil {
		s.metrics.RecordCartRemoval()
	}
	s.logger.WithFields(log.Fields{
		"client":    client.Name,
		"product":   productRef,
		"cart_size": len(client.Cart.Products),
	}).Info("product removed from cart")
	return client, nil
}

// Checkout превращает корзину клиента в заказ.
func (s *Service) Checkout(clientRef, paymentMethod string, observation *string) (domain.Order, error) {
	started := time.Now()
	order, err := s.strategy.Checkout(clientRef, paymentMethod, observation)
	if err != nil {
		return domain.Order{}, s.observe("checkout", err)
	}

	if s.metrics != nil {
		s.metrics.RecordCheckout()
		s.metrics.RecordCheckoutDuration(time.Since(started))
	}
	s.logger.WithFields(log.Fields{
		"order_id":       order.ID,
		"client":         order.ClientName,
		"products":       len(order.Products),
		"total_minor":    order.TotalMinor,
		"payment_method": order.PaymentMethod,
	}).Info("order created")

	s.publish(kafka.NewOrderEvent(
		kafka.EventTypeOrderCreated, order.ID, order.ClientName, order.TotalMinor, order.Complete,
	))
	return order, nil
}

// MarkOrderComplete помечает заказ готовым.
func (s *Service) MarkOrderComplete(ref string) (domain.Order, error) {
	order, err := s.strategy.MarkOrderComplete(ref)
	if err != nil {
		return domain.Order{}, s.observe("mark complete", err)
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCompleted()
	}
	s.logger.WithField("order_id", order.ID).Info("order marked complete")
	s.publish(kafka.NewOrderEvent(
		kafka.EventTypeOrderComplete, order.ID, order.ClientName, order.TotalMinor, order.Complete,
	))
	return order, nil
}

// MarkOrderIncomplete возвращает заказ в работу.
func (s *Service) MarkOrderIncomplete(ref string) (domain.Order, error) {
	order, err := s.strategy.MarkOrderIncomplete(ref)
	if err != nil {
		return domain.Order{}, s.observe("mark incomplete", err)
	}

	if s.metrics != nil {
		s.metrics.RecordOrderReopened()
	}
	s.logger.WithField("order_id", order.ID).Info("order marked incomplete")
	s.publish(kafka.NewOrderEvent(
		kafka.EventTypeOrderReopened, order.ID, order.ClientName, order.TotalMinor, order.Complete,
	))
	return order, nil
}

// ModifyOrderObservation меняет заметку незавершённого заказа.
func (s *Service) ModifyOrderObservation(ref string, observation *string) (domain.Order, error) {
	order, err := s.strategy.ModifyOrderObservation(ref, observation)
	if err != nil {
		return domain.Order{}, s.observe("modify observation", err)
	}

	if s.metrics != nil {
		s.metrics.RecordObservationEdit()
	}
	s.logger.WithField("order_id", order.ID).Info("order observation modified")
	s.publish(kafka.NewOrderEvent(
		kafka.EventTypeObservationModified, order.ID, order.ClientName, order.TotalMinor, order.Complete,
	))
	return order, nil
}

// observe учитывает отказ операции в метриках и логе; ошибка проходит насквозь.
func (s *Service) observe(op string, err error) error {
	if err == nil {
		return nil
	}

	code, ok := domain.ErrorCode(err)
	if !ok {
		code = "UNKNOWN"
	}
	if s.metrics != nil {
		s.metrics.RecordFailure(string(code))
	}

	entry := s.logger.WithField("op", op).WithField("code", code)
	if domain.IsTransient(err) {
		entry.WithError(err).Error("operation failed")
	} else {
		entry.Debug("operation rejected")
	}
	return err
}

// publish отправляет событие best-effort: сбой брокера не проваливает операцию.
func (s *Service) publish(event *kafka.OrderEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderEvent(event); err != nil {
		s.logger.WithError(err).WithField("event_type", event.EventType).
			Warn("order event publish failed")
	}
}
