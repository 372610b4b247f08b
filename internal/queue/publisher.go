package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"capgen_backend/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher ставит события генерации в очередь
type Publisher interface {
	PublishGeneration(ctx context.Context, event GenerationEvent) error
	Close() error
}

// AMQPPublisher публикует в durable-очередь RabbitMQ. Соединение
// держится открытым и восстанавливается при обрыве.
type AMQPPublisher struct {
	url       string
	queueName string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url, queueName string) *AMQPPublisher {
	return &AMQPPublisher{url: url, queueName: queueName}
}

// PublishGeneration публикует событие без счетчика повторов
func (p *AMQPPublisher) PublishGeneration(ctx context.Context, event GenerationEvent) error {
	return p.publish(ctx, event, 0)
}

func (p *AMQPPublisher) publish(ctx context.Context, event GenerationEvent, retryCount int) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channelLocked()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, "", p.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Headers:      amqp.Table{retryCountHeader: int32(retryCount)},
	})
	if err != nil {
		// Одна попытка переподключения: канал мог умереть между публикациями
		p.reset()
		ch, err = p.channelLocked()
		if err != nil {
			return err
		}
		err = ch.PublishWithContext(ctx, "", p.queueName, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Headers:      amqp.Table{retryCountHeader: int32(retryCount)},
		})
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}

	logger.CtxInfo(ctx, "generation event published",
		"job_id", event.JobID, "action", event.Action, "retry_count", retryCount)
	return nil
}

// channelLocked возвращает живой канал, при необходимости подключаясь.
// Вызывается под p.mu.
func (p *AMQPPublisher) channelLocked() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// durable: сообщения переживают рестарт брокера
	if _, err := ch.QueueDeclare(p.queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	p.conn = conn
	p.ch = ch
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
