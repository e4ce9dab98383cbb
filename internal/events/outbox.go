package events

import (
	"context"
	"database/sql"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/skypanel/cbs/internal/infrastructure/database"
	"github.com/skypanel/cbs/pkg/config"
)

// OutboxProcessor drains ledger events written transactionally alongside
// balance mutations and publishes them for downstream consumers (mail
// billing, audit). A publish failure leaves the row pending for the next
// sweep, so consumers may see an event twice but never miss one.
type OutboxProcessor struct {
	db      *sql.DB
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	cfg     config.EventsConfig
	logger  zerolog.Logger
}

func NewOutboxProcessor(db *database.DBManager, cfg config.EventsConfig, logger zerolog.Logger) (*OutboxProcessor, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	queue := cfg.Queue
	if queue == "" {
		queue = "cbs_ledger_events"
	}
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return &OutboxProcessor{
		db:      db.Db,
		conn:    conn,
		channel: channel,
		queue:   queue,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) error {
	interval := time.Duration(p.cfg.DrainInterval) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}

	p.logger.Info().Str("queue", p.queue).Dur("interval", interval).Msg("Starting ledger event publisher")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Ledger event publisher stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.drain(ctx); err != nil {
				p.logger.Error().Err(err).Msg("Failed to drain ledger events")
			}
		}
	}
}

func (p *OutboxProcessor) drain(ctx context.Context) error {
	batchSize := p.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, event_type, payload FROM ledger_events
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1`, batchSize)
	if err != nil {
		return err
	}
	defer rows.Close()

	type pendingEvent struct {
		id        string
		eventType string
		payload   []byte
	}
	var pending []pendingEvent
	for rows.Next() {
		var event pendingEvent
		if err := rows.Scan(&event.id, &event.eventType, &event.payload); err != nil {
			return err
		}
		pending = append(pending, event)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, event := range pending {
		err := p.channel.PublishWithContext(ctx,
			"",
			p.queue,
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    event.id,
				Type:         event.eventType,
				Body:         event.payload,
			},
		)
		if err != nil {
			p.logger.Error().Err(err).
				Str("event_id", event.id).
				Str("event_type", event.eventType).
				Msg("Failed to publish ledger event")
			continue
		}

		if _, err := p.db.ExecContext(ctx, `
			UPDATE ledger_events SET status = 'published', published_at = now()
			WHERE id = $1`, event.id); err != nil {
			p.logger.Error().Err(err).
				Str("event_id", event.id).
				Msg("Failed to mark ledger event published")
			continue
		}

		p.logger.Debug().
			Str("event_id", event.id).
			Str("event_type", event.eventType).
			Msg("Ledger event published")
	}
	return nil
}

func (p *OutboxProcessor) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
