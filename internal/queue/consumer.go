package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/balance-dashboard/internal/logging"
    "github.com/iliyamo/balance-dashboard/internal/mailer"
)

// StartEmailConsumer connects to RabbitMQ, declares the durable email queue
// and delivers every job through sender. It reconnects with exponential
// backoff until ctx is cancelled. Jobs that cannot be decoded, rendered or
// sent are rejected without requeue so a poison message cannot spin.
func StartEmailConsumer(ctx context.Context, url, queue string, sender mailer.Sender, log logging.Logger) error {
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Warn(ctx, "email-consumer: dial failed", "err", err, "retry_in", backoff.String())
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, queue, sender, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warn(ctx, "email-consumer: consume loop ended; reconnecting", "err", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
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

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, sender mailer.Sender, log logging.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(10, 0, false); err != nil {
        log.Warn(ctx, "email-consumer: set QoS failed", "err", err)
    }
    if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := Handle(ctx, d.Body, sender); err != nil {
                log.Error(ctx, "email-consumer: job failed", "err", err)
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Handle decodes one job body, renders it and sends it.
func Handle(ctx context.Context, body []byte, sender mailer.Sender) error {
    var ev EmailEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.To == "" {
        return errors.New("email job without recipient")
    }
    msg, err := mailer.Render(ev.Kind, ev.To, ev.Name, ev.Data)
    if err != nil {
        return err
    }
    return sender.Send(ctx, msg)
}
