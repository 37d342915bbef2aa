// Package robot is the host framework the chat adapter feeds: canonical
// messages, listeners and the receive queue.
package robot

import "github.com/lveraszto/hubot-slack/internal/brain"

// Kind discriminates the canonical message variants.
type Kind string

const (
	KindText       Kind = "text"
	KindMe         Kind = "me"
	KindTopic      Kind = "topic"
	KindEnter      Kind = "enter"
	KindLeave      Kind = "leave"
	KindReaction   Kind = "reaction"
	KindPresence   Kind = "presence"
	KindFileShared Kind = "file_shared"
)

// Message is implemented by every canonical message variant.
// Sender returns the primary user; its Room addresses the conversation.
type Message interface {
	Kind() Kind
	Sender() brain.User
}

// Room returns the conversation a message was received in, "" when none.
func Room(m Message) string {
	if m == nil {
		return ""
	}
	return m.Sender().Room
}

// Mention is a user or channel reference found in message text, in order of occurrence.
// Info is nil when the reference carried a label or could not be resolved.
type Mention struct {
	Type string
	ID   string
	Info any
}

const (
	MentionUser    = "user"
	MentionChannel = "channel"
)

// TextMessage is a plain chat message.
type TextMessage struct {
	User     brain.User
	ID       string
	ThreadTS string
	Text     string
	RawText  string
	RawEvent any
	Mentions []Mention
}

func (m *TextMessage) Kind() Kind         { return KindText }
func (m *TextMessage) Sender() brain.User { return m.User }

// MeMessage is a /me action. Text is kept as sent, with no reference resolution.
type MeMessage struct {
	TextMessage
}

func (m *MeMessage) Kind() Kind { return KindMe }

// TopicMessage reports a conversation topic change.
type TopicMessage struct {
	User  brain.User
	Topic string
	ID    string
}

func (m *TopicMessage) Kind() Kind         { return KindTopic }
func (m *TopicMessage) Sender() brain.User { return m.User }

// EnterMessage reports a user joining a conversation.
type EnterMessage struct {
	User brain.User
	TS   string
}

func (m *EnterMessage) Kind() Kind         { return KindEnter }
func (m *EnterMessage) Sender() brain.User { return m.User }

// LeaveMessage reports a user leaving a conversation.
type LeaveMessage struct {
	User brain.User
	TS   string
}

func (m *LeaveMessage) Kind() Kind         { return KindLeave }
func (m *LeaveMessage) Sender() brain.User { return m.User }

// ReactionKind tells whether a reaction was added or removed.
type ReactionKind string

const (
	ReactionAdded   ReactionKind = "added"
	ReactionRemoved ReactionKind = "removed"
)

// ReactionItem is the target of a reaction.
type ReactionItem struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
	File    string `json:"file,omitempty"`
}

// ReactionMessage reports a reaction on a message or file.
// Emoji is the rendered glyph when the reaction name is a known alias.
type ReactionMessage struct {
	Type     ReactionKind
	User     brain.User
	Reaction string
	Emoji    string
	ItemUser brain.User
	Item     ReactionItem
	EventTS  string
}

func (m *ReactionMessage) Kind() Kind         { return KindReaction }
func (m *ReactionMessage) Sender() brain.User { return m.User }

// PresenceMessage reports a presence change for a batch of known users.
type PresenceMessage struct {
	Users  []brain.User
	Status string
}

func (m *PresenceMessage) Kind() Kind { return KindPresence }

func (m *PresenceMessage) Sender() brain.User {
	if len(m.Users) == 0 {
		return brain.User{}
	}
	return m.Users[0]
}

// FileSharedMessage reports a file shared into a conversation.
type FileSharedMessage struct {
	User    brain.User
	FileID  string
	EventTS string
}

func (m *FileSharedMessage) Kind() Kind         { return KindFileShared }
func (m *FileSharedMessage) Sender() brain.User { return m.User }
