package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// Deliverer sends one email to its recipient.
type Deliverer interface {
    Deliver(ctx context.Context, m EmailMessage) error
}

// errPermanent marks messages that will never succeed; they are rejected
// instead of requeued.
var errPermanent = errors.New("permanent failure")

// StartEmailConsumer connects to RabbitMQ, declares the email queue
// (durable) and delivers messages until ctx is cancelled. Broken
// connections are redialed with exponential backoff capped at 30s.
func StartEmailConsumer(ctx context.Context, url, queueName string, d Deliverer, log *zap.Logger) error {
    log = log.Named("email-consumer")
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Warn("failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = consumeLoop(ctx, conn, queueName, d, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warn("consume loop ended, reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queueName string, d Deliverer, log *zap.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(10, 0, false); err != nil {
        log.Warn("set QoS failed", zap.Error(err))
    }
    if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case dl, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := HandleMessage(ctx, dl.Body, d); err != nil {
                requeue := !errors.Is(err, errPermanent) && !dl.Redelivered
                log.Error("email delivery failed", zap.Bool("requeue", requeue), zap.Error(err))
                _ = dl.Nack(false, requeue) // one retry, then drop to avoid tight loops
                continue
            }
            _ = dl.Ack(false)
        }
    }
}

// HandleMessage decodes one queue payload and delivers it.
func HandleMessage(ctx context.Context, body []byte, d Deliverer) error {
    var m EmailMessage
    if err := json.Unmarshal(body, &m); err != nil {
        return fmt.Errorf("%w: unmarshal: %v", errPermanent, err)
    }
    if err := m.Validate(); err != nil {
        return fmt.Errorf("%w: %v", errPermanent, err)
    }
    dctx, cancel := context.WithTimeout(ctx, 30*time.Second)
    defer cancel()
    if err := d.Deliver(dctx, m); err != nil {
        return fmt.Errorf("deliver %s: %w", m.ID, err)
    }
    return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
