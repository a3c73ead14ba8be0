// Package worker glues the AMQP transaction stream to the matching engine.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"bollette/internal/amqp"
	"bollette/internal/core"
	"bollette/internal/services"
)

// ResultPublisher reports the verdict for one processed transaction.
type ResultPublisher interface {
	PublishMatchResult(ctx context.Context, msg *amqp.MatchResultMessage) error
}

// MatchWorker runs each incoming transaction through the matcher and
// publishes the outcome so the triage surface can pick up unmatched ones.
type MatchWorker struct {
	matcher   *services.Matcher
	publisher ResultPublisher
}

func NewMatchWorker(matcher *services.Matcher, publisher ResultPublisher) *MatchWorker {
	return &MatchWorker{
		matcher:   matcher,
		publisher: publisher,
	}
}

// HandleTransaction processes one AMQP delivery. A conversion failure is
// permanent and reported as unmatched instead of erroring, so the broker
// never redelivers a payload that can never parse. Matcher and publish
// failures are returned so the delivery is requeued.
func (w *MatchWorker) HandleTransaction(ctx context.Context, msg *amqp.TransactionMessage) error {
	tx, err := msg.ToTransaction()
	if err != nil {
		slog.ErrorContext(ctx, "Transaction message rejected", "tx_id", msg.ID, "error", err)
		return w.publisher.PublishMatchResult(ctx, amqp.NewMatchResultMessage(msg.ID, core.Unmatched()))
	}

	result, err := w.matcher.Match(ctx, tx)
	if err != nil {
		return fmt.Errorf("match transaction %s: %w", tx.ID, err)
	}

	if err := w.publisher.PublishMatchResult(ctx, amqp.NewMatchResultMessage(tx.ID, result)); err != nil {
		return fmt.Errorf("publish result for %s: %w", tx.ID, err)
	}
	return nil
}
