// Пакет broker — подключение к RabbitMQ и consumer CDC-сообщений.
// rabbitmq.go — обёртка соединения: подключение, объявление топологии,
// подписка на очередь, reconnect.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// reconnectInterval — пауза между попытками переподключения.
const reconnectInterval = 5 * time.Second

// RabbitMQ — соединение с RabbitMQ.
type RabbitMQ struct {
	url    string
	logger *slog.Logger

	mu           sync.Mutex
	conn         *amqp.Connection
	ch           *amqp.Channel
	reconnecting bool
}

// Connect устанавливает соединение с RabbitMQ.
func Connect(url string, logger *slog.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{
		url:    url,
		logger: logger.With(slog.String("component", "rabbitmq")),
	}
	if err := r.connect(); err != nil {
		return nil, fmt.Errorf("подключение к RabbitMQ: %w", err)
	}
	return r, nil
}

// connect открывает соединение и канал.
func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.url)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}

	r.mu.Lock()
	r.conn = conn
	r.ch = ch
	r.mu.Unlock()

	return nil
}

// Subscribe объявляет топологию (topic exchange, durable очередь,
// привязку по bindingKey), выставляет prefetch и возвращает канал
// доставок с ручным подтверждением.
func (r *RabbitMQ) Subscribe(exchange, queue, bindingKey string, prefetch int) (<-chan amqp.Delivery, error) {
	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("объявление exchange %s: %w", exchange, err)
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("объявление очереди %s: %w", queue, err)
	}

	if err := ch.QueueBind(queue, bindingKey, exchange, false, nil); err != nil {
		return nil, fmt.Errorf("привязка очереди %s к %s: %w", queue, exchange, err)
	}

	// Prefetch ограничивает количество неподтверждённых доставок:
	// при последовательной обработке CDC-событий порядок важен
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("установка prefetch: %w", err)
	}

	deliveries, err := ch.Consume(
		queue,
		"",    // consumer tag
		false, // auto-ack выключен: подтверждение после обработки
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("подписка на очередь %s: %w", queue, err)
	}

	r.logger.Info("Подписка на очередь оформлена",
		slog.String("exchange", exchange),
		slog.String("queue", queue),
		slog.String("binding_key", bindingKey),
		slog.Int("prefetch", prefetch),
	)

	return deliveries, nil
}

// IsAlive сообщает, живы ли соединение и канал.
func (r *RabbitMQ) IsAlive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil || r.conn.IsClosed() {
		return false
	}
	if r.ch == nil || r.ch.IsClosed() {
		return false
	}
	return true
}

// Reconnect восстанавливает соединение с паузой между попытками.
// Конкурентные вызовы сливаются в один цикл переподключения.
func (r *RabbitMQ) Reconnect(ctx context.Context) {
	r.mu.Lock()
	if r.reconnecting {
		r.mu.Unlock()
		return
	}
	r.reconnecting = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.reconnecting = false
		r.mu.Unlock()
	}()

	ticker := time.NewTicker(reconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.connect(); err != nil {
				r.logger.Warn("Переподключение к RabbitMQ не удалось",
					slog.String("error", err.Error()),
				)
				continue
			}
			r.logger.Info("Соединение с RabbitMQ восстановлено")
			return
		}
	}
}

// Close закрывает канал и соединение.
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch != nil && !r.ch.IsClosed() {
		if err := r.ch.Close(); err != nil {
			return fmt.Errorf("закрытие канала: %w", err)
		}
	}
	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("закрытие соединения: %w", err)
		}
	}
	return nil
}

// CheckReady проверяет состояние соединения с RabbitMQ.
// Реализует handlers.ReadinessChecker.
func (r *RabbitMQ) CheckReady() (string, string) {
	if !r.IsAlive() {
		return "fail", "Соединение с RabbitMQ потеряно"
	}
	return "ok", "Соединение с RabbitMQ активно"
}
