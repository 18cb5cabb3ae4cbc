package push

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rescue/rescue/internal/platform/metrics"
)

const (
	DefaultMaxConcurrency = 16
	DefaultSendTimeout    = 10 * time.Second
	MinSendTimeout        = 5 * time.Second
	MaxSendTimeout        = 30 * time.Second
)

// Config tunes the fan-out.
type Config struct {
	MaxConcurrency int
	SendTimeout    time.Duration
}

func (c Config) normalized() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	switch {
	case c.SendTimeout == 0:
		c.SendTimeout = DefaultSendTimeout
	case c.SendTimeout < MinSendTimeout:
		c.SendTimeout = MinSendTimeout
	case c.SendTimeout > MaxSendTimeout:
		c.SendTimeout = MaxSendTimeout
	}
	return c
}

// Gateway sends pushes through a Provider and classifies the results. It
// never touches storage: tokens to clear are handed back to the caller.
type Gateway struct {
	provider Provider
	cfg      Config
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewGateway(provider Provider, cfg Config, m *metrics.Metrics, logger zerolog.Logger) *Gateway {
	return &Gateway{
		provider: provider,
		cfg:      cfg.normalized(),
		metrics:  m,
		logger:   logger.With().Str("component", "push").Logger(),
	}
}

// Send delivers one message. A recipient without a token fails with
// ReasonNoToken and the provider is not called.
func (g *Gateway) Send(ctx context.Context, r Recipient, title, body string, data map[string]string) Outcome {
	if r.Token == "" {
		g.metrics.SkippedPush(ReasonNoToken)
		return Outcome{Reason: ReasonNoToken}
	}

	sendCtx, cancel := context.WithTimeout(ctx, g.cfg.SendTimeout)
	defer cancel()

	start := time.Now()
	id, err := g.provider.Send(sendCtx, Message{Token: r.Token, Title: title, Body: body, Data: data})
	elapsed := time.Since(start)

	if err == nil {
		g.metrics.ObservePush("delivered", elapsed)
		return Outcome{Delivered: true, MessageID: id}
	}

	out := Outcome{Reason: err.Error(), Class: Classify(err)}
	if errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
		out.Reason = ReasonTimeout
		out.Class = ClassTransient
	}
	g.metrics.ObservePush(string(out.Class), elapsed)
	g.logger.Warn().
		Err(err).
		Str("user_id", r.UserID.String()).
		Str("token", truncateToken(r.Token)).
		Str("class", string(out.Class)).
		Dur("elapsed", elapsed).
		Msg("push send failed")
	return out
}

// SendBulk sends the same message to every recipient with bounded
// concurrency. Each send has its own timeout; one failure never stops the
// others. Outcomes are returned in input order.
func (g *Gateway) SendBulk(ctx context.Context, recipients []Recipient, title, body string, data map[string]string) BulkOutcome {
	outcomes := make([]RecipientOutcome, len(recipients))

	var eg errgroup.Group
	eg.SetLimit(g.cfg.MaxConcurrency)
	for i, r := range recipients {
		eg.Go(func() error {
			outcomes[i] = RecipientOutcome{Recipient: r, Outcome: g.Send(ctx, r, title, body, data)}
			return nil
		})
	}
	_ = eg.Wait()

	res := BulkOutcome{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Outcome.Delivered {
			res.SuccessCount++
			continue
		}
		res.FailureCount++
		if o.Outcome.Class == ClassPermanent {
			res.RecipientsToInvalidate = append(res.RecipientsToInvalidate, o.Recipient)
		}
	}

	g.logger.Info().
		Int("recipients", len(recipients)).
		Int("success", res.SuccessCount).
		Int("failure", res.FailureCount).
		Int("invalidate", len(res.RecipientsToInvalidate)).
		Msg("push fan-out finished")
	return res
}

func truncateToken(token string) string {
	if len(token) <= 20 {
		return token
	}
	return token[:20] + "..."
}
