// consumer.go — цикл потребления CDC-сообщений.
//
// Сообщения обрабатываются последовательно: порядок CDC-событий
// одного пользователя должен сохраняться. Подтверждение доставки
// определяется исходом обработки:
//   - Applied, Skipped — ack;
//   - Failed — по политике: drop → ack (сообщение теряется),
//     requeue → nack с возвратом в очередь.
package broker

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/verifix/usersync/internal/config"
	"github.com/verifix/usersync/internal/service"
)

// ackAction — решение о судьбе доставки.
type ackAction int

const (
	ackActionAck ackAction = iota
	ackActionRequeue
)

// decideAck переводит исход обработки и политику отказа в действие
// над доставкой.
func decideAck(outcome service.Outcome, failurePolicy string) ackAction {
	if outcome == service.OutcomeFailed && failurePolicy == config.FailurePolicyRequeue {
		return ackActionRequeue
	}
	return ackActionAck
}

// Consumer — consumer CDC-сообщений из RabbitMQ.
type Consumer struct {
	rabbit   *RabbitMQ
	pipeline *service.Pipeline
	cfg      *config.Config
	logger   *slog.Logger

	done chan struct{}
}

// NewConsumer создаёт consumer.
func NewConsumer(rabbit *RabbitMQ, pipeline *service.Pipeline, cfg *config.Config, logger *slog.Logger) *Consumer {
	return &Consumer{
		rabbit:   rabbit,
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "consumer")),
		done:     make(chan struct{}),
	}
}

// Run подписывается на очередь и запускает цикл обработки в отдельной
// горутине. Возвращается после успешной подписки.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.rabbit.Subscribe(
		c.cfg.AMQPExchange,
		c.cfg.AMQPQueue,
		c.cfg.AMQPBindingKey,
		c.cfg.AMQPPrefetch,
	)
	if err != nil {
		return err
	}

	go c.loop(ctx, deliveries)

	c.logger.Info("Consumer запущен",
		slog.String("queue", c.cfg.AMQPQueue),
		slog.String("failure_policy", c.cfg.FailurePolicy),
	)
	return nil
}

// loop последовательно обрабатывает доставки до закрытия канала
// или отмены контекста.
func (c *Consumer) loop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer остановлен: контекст отменён")
			return
		case d, ok := <-deliveries:
			if !ok {
				c.logger.Warn("Канал доставок закрыт, переподключение")
				c.rabbit.Reconnect(ctx)
				resubscribed, err := c.rabbit.Subscribe(
					c.cfg.AMQPExchange,
					c.cfg.AMQPQueue,
					c.cfg.AMQPBindingKey,
					c.cfg.AMQPPrefetch,
				)
				if err != nil {
					c.logger.Error("Повторная подписка не удалась, consumer остановлен",
						slog.String("error", err.Error()),
					)
					return
				}
				deliveries = resubscribed
				continue
			}
			c.handleDelivery(ctx, d)
		}
	}
}

// handleDelivery обрабатывает одну доставку и подтверждает её
// согласно исходу и политике отказа.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	// Идентификатор обработки для корреляции записей лога одной доставки
	logger := c.logger.With(slog.String("processing_id", uuid.NewString()))

	logger.Debug("Получено сообщение",
		slog.String("routing_key", d.RoutingKey),
		slog.Int("size", len(d.Body)),
	)

	outcome := c.pipeline.Process(ctx, d.Body)

	switch decideAck(outcome, c.cfg.FailurePolicy) {
	case ackActionRequeue:
		if err := d.Nack(false, true); err != nil {
			logger.Error("Nack не удался", slog.String("error", err.Error()))
		}
		logger.Warn("Сообщение возвращено в очередь",
			slog.String("outcome", outcome.String()),
		)
	default:
		if err := d.Ack(false); err != nil {
			logger.Error("Ack не удался", slog.String("error", err.Error()))
		}
		if outcome == service.OutcomeFailed {
			logger.Warn("Сообщение не применено и потеряно (политика drop)")
		}
	}
}

// Done возвращает канал, закрываемый после завершения цикла обработки.
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}
