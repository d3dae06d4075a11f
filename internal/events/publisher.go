//go:generate go run go.uber.org/mock/mockgen -source=publisher.go -destination=../mocks/mock_publisher.go -package=mocks
package events

import (
	"context"
	"time"

	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/domain"
	"github.com/google/uuid"
)

type Type string

const (
	ParticipantJoined Type = "participant.joined"
	ParticipantLeft   Type = "participant.left"
	MessagePosted     Type = "message.posted"
	MessageEdited     Type = "message.edited"
	MessageDeleted    Type = "message.deleted"
)

type Event struct {
	ID          string          `json:"id"`
	Type        Type            `json:"type"`
	Participant string          `json:"participant"`
	Message     *domain.Message `json:"message,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

func New(t Type, participant string, msg *domain.Message, at time.Time) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		Participant: participant,
		Message:     msg,
		OccurredAt:  at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Noop is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
