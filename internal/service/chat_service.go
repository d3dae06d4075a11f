package service

import (
	"context"
	"errors"
	"time"

	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/domain"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/events"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/metrics"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/repository"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

type ChatService struct {
	participants repository.ParticipantRepository
	messages     repository.MessageRepository
	pub          events.Publisher
	metrics      *metrics.Metrics
	validate     *validator.Validate
	log          *zap.Logger
	idleAfter    time.Duration
	now          func() time.Time
}

func NewChatService(
	participants repository.ParticipantRepository,
	messages repository.MessageRepository,
	pub events.Publisher,
	m *metrics.Metrics,
	log *zap.Logger,
	idleAfter time.Duration,
) *ChatService {
	return &ChatService{
		participants: participants,
		messages:     messages,
		pub:          pub,
		metrics:      m,
		validate:     utils.NewValidator(),
		log:          log,
		idleAfter:    idleAfter,
		now:          time.Now,
	}
}

// WithClock replaces the wall clock, for tests.
func (s *ChatService) WithClock(now func() time.Time) *ChatService {
	s.now = now
	return s
}

func (s *ChatService) Register(ctx context.Context, in domain.ParticipantInput) error {
	in.Sanitize()
	if err := s.check(in); err != nil {
		return err
	}

	_, err := s.participants.FindByName(ctx, in.Name)
	switch {
	case err == nil:
		return ErrNameTaken
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}

	now := s.now()
	if err := s.participants.Create(ctx, domain.NewParticipant(in.Name, now)); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrNameTaken
		}
		return err
	}

	join := domain.JoinMessage(in.Name, now)
	if err := s.messages.Insert(ctx, join); err != nil {
		return err
	}
	s.metrics.ParticipantsRegistered.Inc()
	s.publish(ctx, events.New(events.ParticipantJoined, in.Name, join, now))
	return nil
}

func (s *ChatService) Participants(ctx context.Context) ([]domain.Participant, error) {
	return s.participants.List(ctx)
}

func (s *ChatService) RefreshStatus(ctx context.Context, user string) error {
	err := s.participants.TouchStatus(ctx, user, s.now().UnixMilli())
	if errors.Is(err, repository.ErrNotFound) {
		return ErrParticipantNotFound
	}
	return err
}

func (s *ChatService) PostMessage(ctx context.Context, user string, in domain.MessageInput) (*domain.Message, error) {
	in.Sanitize()
	if err := s.check(in); err != nil {
		return nil, err
	}
	if err := s.requireSender(ctx, user); err != nil {
		return nil, err
	}

	now := s.now()
	msg := domain.NewMessage(user, in, now)
	if err := s.messages.Insert(ctx, msg); err != nil {
		return nil, err
	}
	s.metrics.MessagesPosted.Inc()
	s.publish(ctx, events.New(events.MessagePosted, user, msg, now))
	return msg, nil
}

// Messages returns what user may read, oldest first; limit > 0 keeps only the last limit.
func (s *ChatService) Messages(ctx context.Context, user string, limit int) ([]domain.Message, error) {
	msgs, err := s.messages.ListVisible(ctx, user, limit)
	if err != nil {
		return nil, err
	}
	return domain.Visible(msgs, user, limit), nil
}

func (s *ChatService) EditMessage(ctx context.Context, user, id string, in domain.MessageInput) error {
	in.Sanitize()
	if err := s.check(in); err != nil {
		return err
	}
	if err := s.requireSender(ctx, user); err != nil {
		return err
	}
	msg, err := s.ownedMessage(ctx, user, id)
	if err != nil {
		return err
	}

	if err := s.messages.Update(ctx, id, in); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	msg.To, msg.Text, msg.Type = in.To, in.Text, in.Type
	s.publish(ctx, events.New(events.MessageEdited, user, msg, s.now()))
	return nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, user, id string) error {
	msg, err := s.ownedMessage(ctx, user, id)
	if err != nil {
		return err
	}

	if err := s.messages.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	s.metrics.MessagesDeleted.Inc()
	s.publish(ctx, events.New(events.MessageDeleted, user, msg, s.now()))
	return nil
}

// SweepIdle evicts every participant idle for longer than idleAfter and records
// a leave message for each one actually removed. It returns how many were evicted.
func (s *ChatService) SweepIdle(ctx context.Context) (int, error) {
	now := s.now()
	cutoffAt := now.Add(-s.idleAfter)
	cutoff := cutoffAt.UnixMilli()

	found, err := s.participants.FindIdle(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	idle := lo.Filter(found, func(p domain.Participant, _ int) bool {
		return p.IdleSince(cutoffAt)
	})

	var (
		evicted int
		errs    []error
	)
	for _, p := range idle {
		removed, err := s.participants.DeleteIdle(ctx, p.Name, cutoff)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !removed {
			// refreshed between find and delete
			continue
		}

		leave := domain.LeaveMessage(p.Name, now)
		if err := s.messages.Insert(ctx, leave); err != nil {
			errs = append(errs, err)
			continue
		}
		evicted++
		s.metrics.ParticipantsEvicted.Inc()
		s.log.Info("participant evicted", zap.String("name", p.Name), zap.Int64("last_status", p.LastStatus))
		s.publish(ctx, events.New(events.ParticipantLeft, p.Name, leave, now))
	}
	return evicted, errors.Join(errs...)
}

func (s *ChatService) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		if fields := utils.FormatValidationErrors(err); fields != nil {
			return &InvalidInputError{Fields: fields}
		}
		return err
	}
	return nil
}

func (s *ChatService) requireSender(ctx context.Context, user string) error {
	_, err := s.participants.FindByName(ctx, user)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrSenderNotFound
	}
	return err
}

func (s *ChatService) ownedMessage(ctx context.Context, user, id string) (*domain.Message, error) {
	msg, err := s.messages.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	if msg.From != user {
		return nil, ErrNotMessageOwner
	}
	return msg, nil
}

// publish is best effort; a broker failure never fails the request.
func (s *ChatService) publish(ctx context.Context, ev events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.metrics.PublishFailures.Inc()
		s.log.Warn("publish event failed", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}
