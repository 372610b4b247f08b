package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"capgen_backend/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// HandlerFunc обрабатывает одно событие генерации.
//
// Возврат ошибки означает инфраструктурный сбой: сообщение будет
// переотправлено с задержкой, пока не исчерпан лимит повторов.
// Бизнес-отказы (невалидная задача, ошибка генерации) хэндлер
// фиксирует в самой задаче и возвращает nil.
type HandlerFunc func(ctx context.Context, event GenerationEvent) error

// Consumer читает durable-очередь генерации, переподключаясь при
// обрывах соединения с экспоненциальным backoff.
type Consumer struct {
	url        string
	queueName  string
	maxRetries int
	retryDelay time.Duration
	handler    HandlerFunc
	publisher  *AMQPPublisher
}

func NewConsumer(url, queueName string, maxRetries int, retryDelay time.Duration, handler HandlerFunc) *Consumer {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = time.Minute
	}
	return &Consumer{
		url:        url,
		queueName:  queueName,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		handler:    handler,
		publisher:  NewAMQPPublisher(url, queueName),
	}
}

// Start блокирует до отмены контекста
func (c *Consumer) Start(ctx context.Context) {
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := amqp.Dial(c.url)
		if err != nil {
			logger.Error("generation consumer: failed to dial broker",
				"error", err, "retry_in", backoff.String())
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := c.consumeLoop(ctx, conn); err != nil {
			logger.Error("generation consumer: consume loop ended", "error", err)
		}
		_ = conn.Close()

		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// По одной задаче на воркера: генерация длинная
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Warn("generation consumer: set QoS failed", "error", err)
	}

	if _, err := ch.QueueDeclare(c.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handleDelivery(ctx, d)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	var event GenerationEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		logger.Error("generation consumer: bad message, dropping", "error", err)
		_ = d.Nack(false, false)
		return
	}

	ctx = logger.WithJobID(ctx, event.JobID)

	if err := c.handler(ctx, event); err != nil {
		retryCount := deliveryRetryCount(d)
		if retryCount < c.maxRetries {
			logger.CtxWarn(ctx, "generation failed, scheduling retry",
				"error", err, "retry_count", retryCount+1, "delay", c.retryDelay.String())
			c.scheduleRetry(event, retryCount+1)
		} else {
			logger.CtxError(ctx, "generation failed, retries exhausted",
				"error", err, "retry_count", retryCount)
		}
		// Исходное сообщение подтверждаем в любом случае:
		// повтор идет отдельным сообщением
		_ = d.Ack(false)
		return
	}

	_ = d.Ack(false)
}

// scheduleRetry переотправляет событие отдельным сообщением после паузы
func (c *Consumer) scheduleRetry(event GenerationEvent, retryCount int) {
	time.AfterFunc(c.retryDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := c.publisher.publish(ctx, event, retryCount); err != nil {
			logger.Error("generation consumer: retry publish failed",
				"job_id", event.JobID, "error", err)
		}
	})
}

func deliveryRetryCount(d amqp.Delivery) int {
	if d.Headers == nil {
		return 0
	}
	switch v := d.Headers[retryCountHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
