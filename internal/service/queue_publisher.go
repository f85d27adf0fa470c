package service

import (
    "context"
    "encoding/json"
    "fmt"
    "sync"
    "time"

    "github.com/google/uuid"
    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/credit-repair-auth/internal/config"
    "github.com/iliyamo/credit-repair-auth/internal/queue"
)

// EmailPublisher implements Mailer by publishing queue.EmailMessage to a
// durable RabbitMQ queue; queue.StartEmailConsumer does the SMTP delivery.
// The connection is opened lazily and reopened after a failed publish.
type EmailPublisher struct {
    url   string
    queue string
    from  string
    log   *zap.Logger

    mu   sync.Mutex
    conn *amqp.Connection
    ch   *amqp.Channel
}

func NewEmailPublisher(cfg config.MessagingConfig, from string, log *zap.Logger) *EmailPublisher {
    if log == nil {
        log = zap.NewNop()
    }
    return &EmailPublisher{url: cfg.AMQPURL, queue: cfg.EmailQueue, from: from, log: log}
}

// Send enqueues one message. Messages are persistent so they survive a
// broker restart.
func (p *EmailPublisher) Send(ctx context.Context, to, subject, html string) error {
    body, err := json.Marshal(p.message(to, subject, html))
    if err != nil {
        return fmt.Errorf("rabbitmq: marshal email: %w", err)
    }

    p.mu.Lock()
    defer p.mu.Unlock()

    ch, err := p.channel()
    if err != nil {
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",      // default exchange
        p.queue, // routing key = queue name
        false,   // mandatory
        false,   // immediate
        pub,
    ); err != nil {
        p.log.Warn("rabbitmq: publish failed, dropping connection", zap.String("queue", p.queue), zap.Error(err))
        p.reset()
        return fmt.Errorf("rabbitmq: publish: %w", err)
    }
    return nil
}

func (p *EmailPublisher) message(to, subject, html string) queue.EmailMessage {
    return queue.EmailMessage{
        ID:        uuid.NewString(),
        From:      p.from,
        To:        to,
        Subject:   subject,
        HTML:      html,
        CreatedAt: time.Now().UTC(),
    }
}

// channel returns an open channel, dialing if needed. Caller holds mu.
func (p *EmailPublisher) channel() (*amqp.Channel, error) {
    if p.ch != nil && !p.ch.IsClosed() {
        return p.ch, nil
    }
    p.reset()

    conn, err := amqp.Dial(p.url)
    if err != nil {
        return nil, fmt.Errorf("rabbitmq: dial: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("rabbitmq: channel open: %w", err)
    }
    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, fmt.Errorf("rabbitmq: queue declare: %w", err)
    }
    p.conn, p.ch = conn, ch
    return ch, nil
}

func (p *EmailPublisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        _ = p.conn.Close()
    }
    p.conn, p.ch = nil, nil
}

// Close releases the broker connection.
func (p *EmailPublisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.reset()
    return nil
}
