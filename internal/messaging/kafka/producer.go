// Пакет kafka публикует события жизненного цикла заказов. Публикация —
// best-effort уведомление кухонных экранов: сбой доставки логируется,
// но не проваливает операцию ядра.
package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Producer публикует события заказов в Kafka.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
}

// NewProducer создаёт синхронный идемпотентный producer.
func NewProducer(brokers []string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1 // требование идемпотентности

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Producer{
		producer: producer,
		logger:   log.WithField("component", "kafka-producer"),
	}, nil
}

// PublishOrderEvent публикует событие заказа; ключом служит id заказа,
// чтобы события одного заказа попадали в одну партицию.
func (p *Producer) PublishOrderEvent(event *OrderEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     TopicOrderEvents,
		Key:       sarama.StringEncoder(event.OrderID),
		Value:     sarama.ByteEncoder(eventData),
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"event_type": event.EventType,
			"order_id":   event.OrderID,
		}).Error("failed to send order event")
		return fmt.Errorf("send order event: %w", err)
	}

	p.logger.WithFields(log.Fields{
		"event_type": event.EventType,
		"order_id":   event.OrderID,
		"partition":  partition,
		"offset":     offset,
	}).Debug("order event sent")

	return nil
}

// Close закрывает producer.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
