package domain

import (
	"strings"
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MessageType string

const (
	TypeMessage        MessageType = "message"
	TypePrivateMessage MessageType = "private_message"
	TypeStatus         MessageType = "status"
)

// Everyone is the recipient of public and status messages.
const Everyone = "Todos"

const (
	JoinText  = "entra na sala..."
	LeaveText = "sai da sala..."
)

// ClockLayout is the wall clock format stored in Message.Time.
const ClockLayout = "15:04:05"

type Message struct {
	ID   primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	From string             `bson:"from" json:"from"`
	To   string             `bson:"to" json:"to"`
	Text string             `bson:"text" json:"text"`
	Type MessageType        `bson:"type" json:"type"`
	Time string             `bson:"time" json:"time"`
}

// MessageInput is the body of POST /messages and PUT /messages/:id.
// Status messages are only ever produced by the server.
type MessageInput struct {
	To   string      `json:"to" validate:"required"`
	Text string      `json:"text" validate:"required"`
	Type MessageType `json:"type" validate:"required,oneof=message private_message"`
}

func (in *MessageInput) Sanitize() {
	in.To = strings.TrimSpace(in.To)
	in.Text = strings.TrimSpace(in.Text)
	in.Type = MessageType(strings.TrimSpace(string(in.Type)))
}

func NewMessage(from string, in MessageInput, now time.Time) *Message {
	return &Message{
		From: from,
		To:   in.To,
		Text: in.Text,
		Type: in.Type,
		Time: now.Format(ClockLayout),
	}
}

func JoinMessage(name string, now time.Time) *Message {
	return statusMessage(name, JoinText, now)
}

func LeaveMessage(name string, now time.Time) *Message {
	return statusMessage(name, LeaveText, now)
}

func statusMessage(name, text string, now time.Time) *Message {
	return &Message{
		From: name,
		To:   Everyone,
		Text: text,
		Type: TypeStatus,
		Time: now.Format(ClockLayout),
	}
}

// VisibleTo: the user sent it, it is addressed to the user or to everyone, or it is public.
func (m Message) VisibleTo(user string) bool {
	return m.From == user || m.To == user || m.To == Everyone || m.Type == TypeMessage
}

// Visible keeps the messages user may read, in their original order. A positive
// limit keeps only the trailing limit of them.
func Visible(msgs []Message, user string, limit int) []Message {
	out := lo.Filter(msgs, func(m Message, _ int) bool {
		return m.VisibleTo(user)
	})
	if limit > 0 {
		out = lo.Subset(out, -limit, uint(limit))
	}
	return out
}
