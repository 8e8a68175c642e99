package notifications

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
	notificationServiceInstance contracts.NotificationService
	onceNotificationService     sync.Once
)

// rabbitNotificationService hands finance-desk notifications to a durable
// queue consumed by the notification worker. Best-effort like the live event
// publisher.
type rabbitNotificationService struct {
	ch        *amqp.Channel
	queueName string
	Log       *zap.Logger
	mu        sync.Mutex
}

func NewRabbitNotificationService(conn *amqp.Connection, queueName string, logger *zap.Logger) (contracts.NotificationService, error) {
	var initErr error
	onceNotificationService.Do(func() {
		ch, err := conn.Channel()
		if err != nil {
			initErr = err
			return
		}
		_, err = ch.QueueDeclare(
			queueName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			initErr = err
			return
		}
		notificationServiceInstance = &rabbitNotificationService{
			ch:        ch,
			queueName: queueName,
			Log:       logger,
		}
	})
	return notificationServiceInstance, initErr
}

func (s *rabbitNotificationService) Notify(ctx context.Context, notification contracts.Notification) error {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)

	body, err := json.Marshal(notification)
	if err != nil {
		return exceptions.ErrCannotMarshalJSON(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.ch.PublishWithContext(ctx,
		"",
		s.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  constvars.MIMEApplicationJSON,
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		s.Log.Error("notificationService.Notify failed",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingQueueKey, s.queueName),
			zap.Error(err),
		)
		return exceptions.ErrRabbitMQPublishMessage(err, s.queueName)
	}

	s.Log.Info("notificationService.Notify sent",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingQueueKey, s.queueName),
		zap.String("topic", notification.Topic),
	)
	return nil
}
