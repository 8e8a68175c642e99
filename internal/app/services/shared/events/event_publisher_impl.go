package events

import (
	"context"
	"medflow-service/internal/app/contracts"
	"medflow-service/internal/pkg/constvars"
	"medflow-service/internal/pkg/exceptions"
	"sync"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var (
	eventPublisherInstance contracts.EventPublisher
	onceEventPublisher     sync.Once
)

// rabbitEventPublisher pushes live-update events onto a durable queue. The
// publisher is fire-and-forget: callers log and continue on error, payments
// and refunds are never rolled back because the broker hiccuped.
type rabbitEventPublisher struct {
	ch        *amqp.Channel
	queueName string
	Log       *zap.Logger
	mu        sync.Mutex
}

func NewRabbitEventPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (contracts.EventPublisher, error) {
	var initErr error
	onceEventPublisher.Do(func() {
		ch, err := conn.Channel()
		if err != nil {
			initErr = err
			return
		}
		_, err = ch.QueueDeclare(
			queueName, // name
			true,      // durable
			false,     // autoDelete
			false,     // exclusive
			false,     // noWait
			nil,       // args
		)
		if err != nil {
			initErr = err
			return
		}
		eventPublisherInstance = &rabbitEventPublisher{
			ch:        ch,
			queueName: queueName,
			Log:       logger,
		}
	})
	return eventPublisherInstance, initErr
}

func (p *rabbitEventPublisher) Publish(ctx context.Context, event contracts.LiveEvent) error {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)

	body, err := json.Marshal(event)
	if err != nil {
		return exceptions.ErrCannotMarshalJSON(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx,
		"",          // exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  constvars.MIMEApplicationJSON,
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		p.Log.Error("eventPublisher.Publish failed",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingQueueKey, p.queueName),
			zap.String(constvars.LoggingInvoiceIDKey, event.InvoiceID),
			zap.Error(err),
		)
		return exceptions.ErrRabbitMQPublishMessage(err, p.queueName)
	}

	p.Log.Info("eventPublisher.Publish sent live event",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingQueueKey, p.queueName),
		zap.String("event_type", event.Type),
		zap.String(constvars.LoggingInvoiceIDKey, event.InvoiceID),
	)
	return nil
}
