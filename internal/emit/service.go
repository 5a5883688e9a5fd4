// Service layer of the internal package emit.
// Outbound events of Agora: validated here, delivered best-effort by the channel.

package emit

import (
	"Agora/internal/channel"
	"Agora/internal/entity"
	"Agora/internal/errors"
	"Agora/internal/metrics"
	"Agora/pkg/log"
	"Agora/pkg/validation"
	"context"

	"golang.org/x/time/rate"
)

// Service layer of internal package emit which sends user actions to the forum server.
// Only payload validation can fail; delivery problems are never reported to the caller.
type Service interface {
	// Presence ping, rate limited. Excess pings are dropped silently.
	UserActivity(ctx context.Context, ev entity.ActivityEvent) error
	PostShare(ctx context.Context, ev entity.PostShare) error
	Mention(ctx context.Context, ev entity.Mention) error
	BanUser(ctx context.Context, ev entity.BanRequest) error
	UnbanUser(ctx context.Context, ev entity.BanRequest) error
	SubthreadUpdate(ctx context.Context, ev entity.SubthreadUpdate) error
}

// Object of this will be passed around from main to the relay.
type service struct {
	ch      channel.Channel
	limiter *rate.Limiter
	metrics metrics.Service
	logger  log.Logger
}

// Helps to access the service layer interface and call methods. Service object is passed from main.
// pingsPerSecond <= 0 disables the activity limiter.
func NewService(ch channel.Channel, pingsPerSecond float64, m metrics.Service, logger log.Logger) Service {
	validation.RegisterCustomValidations()
	limiter := rate.NewLimiter(rate.Inf, 0)
	if pingsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(pingsPerSecond), 1)
	}
	return service{ch, limiter, m, logger}
}

func (s service) UserActivity(ctx context.Context, ev entity.ActivityEvent) error {
	if err := s.validate(ev); err != nil {
		return err
	}
	if !s.limiter.Allow() {
		s.metrics.Emitted(entity.EmitUserActivity, metrics.ResultThrottled)
		return nil
	}
	s.ch.Emit(entity.EmitUserActivity, ev)
	return nil
}

func (s service) PostShare(ctx context.Context, ev entity.PostShare) error {
	return s.send(ctx, entity.EmitPostShare, ev)
}

func (s service) Mention(ctx context.Context, ev entity.Mention) error {
	return s.send(ctx, entity.EmitMention, ev)
}

func (s service) BanUser(ctx context.Context, ev entity.BanRequest) error {
	return s.send(ctx, entity.EmitBanUser, ev)
}

func (s service) UnbanUser(ctx context.Context, ev entity.BanRequest) error {
	return s.send(ctx, entity.EmitUnbanUser, ev)
}

func (s service) SubthreadUpdate(ctx context.Context, ev entity.SubthreadUpdate) error {
	return s.send(ctx, entity.EmitSubthreadUpdate, ev)
}

// send validates ev and hands it to the channel.
func (s service) send(ctx context.Context, event string, ev any) error {
	if err := s.validate(ev); err != nil {
		s.logger.WithCtx(ctx).Debug().Err(err).Str("event", event).Msg("Rejected outbound payload")
		return err
	}
	s.ch.Emit(event, ev)
	return nil
}

// Helper to validate the payload against validation-tags mentioned in its entity.
func (s service) validate(ev any) error {
	if errs := validation.Validate(ev); errs != nil {
		return errors.GenerateValidationErrorResponse(errs)
	}
	return nil
}
