package domain

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Participant struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name       string             `bson:"name" json:"name"`
	LastStatus int64              `bson:"lastStatus" json:"lastStatus"`
}

// ParticipantInput is the body of POST /participants.
type ParticipantInput struct {
	Name string `json:"name" validate:"required"`
}

func (in *ParticipantInput) Sanitize() {
	in.Name = strings.TrimSpace(in.Name)
}

func NewParticipant(name string, now time.Time) *Participant {
	return &Participant{Name: name, LastStatus: now.UnixMilli()}
}

// IdleSince reports whether the participant's last status is older than cutoff.
func (p Participant) IdleSince(cutoff time.Time) bool {
	return p.LastStatus < cutoff.UnixMilli()
}
