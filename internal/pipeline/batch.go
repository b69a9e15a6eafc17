package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/store"
)

// BatchResult tallies one ProcessUnprocessed run.
type BatchResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Total is the number of messages the run considered.
func (r BatchResult) Total() int {
	return r.Processed + r.Skipped + r.Errors
}

// ProcessUnprocessed runs every unprocessed message, newest first, up to
// the batch limit. A failing message is counted and the run continues.
func (p *Pipeline) ProcessUnprocessed(ctx context.Context, userID string) (*BatchResult, error) {
	start := p.now()
	actor := p.actor(userID)
	log := zap.L().With(zap.String("actor", actor))

	if p.locker != nil {
		release, err := p.locker.Acquire(ctx, BatchLockKey)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: acquire batch lock")
		}
		defer func() {
			// Release on a fresh context so a cancelled run still unlocks.
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := release(rctx); err != nil {
				log.Warn("pipeline: failed to release batch lock", zap.Error(err))
			}
		}()
	}

	cfg, err := p.resolver.Resolve(ctx, actor)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: resolve settings")
	}

	msgs, err := p.store.ListMessages(ctx, store.UnprocessedFilter(p.batchLimit))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list unprocessed messages")
	}
	log.Info("pipeline: batch started", zap.Int("messages", len(msgs)))

	result := &BatchResult{}
	for i := range msgs {
		if err := ctx.Err(); err != nil {
			log.Warn("pipeline: batch interrupted", zap.Int("remaining", len(msgs)-i), zap.Error(err))
			return result, eris.Wrap(err, "pipeline: batch interrupted")
		}
		msg := &msgs[i]
		out, err := p.processOne(ctx, msg, actor, cfg)
		switch {
		case err != nil:
			result.Errors++
			log.Error("pipeline: message failed",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		case out == OutcomeRouted:
			result.Processed++
		default:
			result.Skipped++
		}
	}

	log.Info("pipeline: batch complete",
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
		zap.Duration("elapsed", p.now().Sub(start)),
	)
	return result, nil
}
