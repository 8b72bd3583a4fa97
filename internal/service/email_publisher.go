// Package service holds the workflows that sit between handlers and
// repositories: outbound email and verification codes.
package service

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/balance-dashboard/internal/config"
    "github.com/iliyamo/balance-dashboard/internal/logging"
    "github.com/iliyamo/balance-dashboard/internal/mailer"
    "github.com/iliyamo/balance-dashboard/internal/queue"
)

// Notifier sends one email of the given kind.
type Notifier interface {
    Notify(ctx context.Context, ev queue.EmailEvent) error
}

// EmailPublisher publishes email jobs to the durable RabbitMQ queue. It
// dials per publish; email volume is a handful of messages per user action.
type EmailPublisher struct {
    url   string
    queue string
    log   logging.Logger
}

func NewEmailPublisher(cfg config.EmailConfig, log logging.Logger) *EmailPublisher {
    return &EmailPublisher{url: cfg.AMQPURL, queue: cfg.Queue, log: log}
}

// Notify marshals ev and publishes it as a persistent message. Errors are
// logged and returned so callers may ignore them.
func (p *EmailPublisher) Notify(ctx context.Context, ev queue.EmailEvent) error {
    if ev.CreatedAt.IsZero() {
        ev.CreatedAt = time.Now().UTC()
    }
    conn, err := amqp.Dial(p.url)
    if err != nil {
        p.log.Error(ctx, "rabbitmq: dial failed", "err", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.log.Error(ctx, "rabbitmq: channel open failed", "err", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
        p.log.Error(ctx, "rabbitmq: queue declare failed", "err", err)
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    ev.CreatedAt,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
        p.log.Error(ctx, "rabbitmq: publish failed", "err", err, "kind", ev.Kind)
        return err
    }
    return nil
}

// DirectNotifier renders and sends inline, without the broker.
type DirectNotifier struct {
    Sender mailer.Sender
}

func (d DirectNotifier) Notify(ctx context.Context, ev queue.EmailEvent) error {
    msg, err := mailer.Render(ev.Kind, ev.To, ev.Name, ev.Data)
    if err != nil {
        return err
    }
    return d.Sender.Send(ctx, msg)
}

// NewNotifier picks the delivery path configured by EMAIL_DELIVERY.
func NewNotifier(cfg config.EmailConfig, sender mailer.Sender, log logging.Logger) Notifier {
    if cfg.Delivery == "direct" {
        return DirectNotifier{Sender: sender}
    }
    return NewEmailPublisher(cfg, log)
}
