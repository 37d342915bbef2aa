package robot

import "github.com/lveraszto/hubot-slack/internal/brain"

// Envelope addresses an outgoing message. Room wins over ID when both are set.
type Envelope struct {
	Room    string
	ID      string
	User    brain.User
	Message Message
}

// NewEnvelope addresses a reply to where msg came from.
func NewEnvelope(msg Message) Envelope {
	user := msg.Sender()
	return Envelope{Room: user.Room, User: user, Message: msg}
}

// Target returns the conversation the envelope points to.
func (e Envelope) Target() string {
	if e.Room != "" {
		return e.Room
	}
	return e.ID
}

// ThreadTS returns the thread of the originating text message, if any.
func (e Envelope) ThreadTS() string {
	switch m := e.Message.(type) {
	case *TextMessage:
		return m.ThreadTS
	case *MeMessage:
		return m.ThreadTS
	}
	return ""
}
