package slack

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/lveraszto/hubot-slack/internal/brain"
	"github.com/lveraszto/hubot-slack/internal/robot"
)

// Event is the subset of a Slack realtime event the adapter reads.
// The "user" field is an id on most events and a full user object on user_change.
type Event struct {
	Type        string
	Subtype     string
	Channel     string
	ChannelID   string
	Team        string
	Text        string
	Topic       string
	TS          string
	EventTS     string
	ThreadTS    string
	BotID       string
	UserID      string
	UserObject  map[string]any
	ItemUser    string
	Item        robot.ReactionItem
	Reaction    string
	Presence    string
	Users       []string
	FileID      string
	Attachments []Attachment
	Raw         json.RawMessage
}

// Attachment is a legacy message attachment; only the fallback text is used.
type Attachment struct {
	Fallback string `json:"fallback"`
}

type wireEvent struct {
	Type        string             `json:"type"`
	Subtype     string             `json:"subtype"`
	Channel     string             `json:"channel"`
	ChannelID   string             `json:"channel_id"`
	Team        string             `json:"team"`
	Text        string             `json:"text"`
	Topic       string             `json:"topic"`
	TS          string             `json:"ts"`
	EventTS     string             `json:"event_ts"`
	ThreadTS    string             `json:"thread_ts"`
	BotID       string             `json:"bot_id"`
	User        json.RawMessage    `json:"user"`
	UserID      string             `json:"user_id"`
	ItemUser    string             `json:"item_user"`
	Item        robot.ReactionItem `json:"item"`
	Reaction    string             `json:"reaction"`
	Presence    string             `json:"presence"`
	Users       []string           `json:"users"`
	FileID      string             `json:"file_id"`
	Attachments []Attachment       `json:"attachments"`
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Event{
		Type:        w.Type,
		Subtype:     w.Subtype,
		Channel:     w.Channel,
		ChannelID:   w.ChannelID,
		Team:        w.Team,
		Text:        w.Text,
		Topic:       w.Topic,
		TS:          w.TS,
		EventTS:     w.EventTS,
		ThreadTS:    w.ThreadTS,
		BotID:       w.BotID,
		UserID:      w.UserID,
		ItemUser:    w.ItemUser,
		Item:        w.Item,
		Reaction:    w.Reaction,
		Presence:    w.Presence,
		Users:       w.Users,
		FileID:      w.FileID,
		Attachments: w.Attachments,
		Raw:         append(json.RawMessage(nil), data...),
	}
	user := bytes.TrimSpace(w.User)
	switch {
	case len(user) == 0 || bytes.Equal(user, []byte("null")):
	case user[0] == '"':
		if err := json.Unmarshal(user, &e.UserID); err != nil {
			return fmt.Errorf("decode user id: %w", err)
		}
	case user[0] == '{':
		if err := json.Unmarshal(user, &e.UserObject); err != nil {
			return fmt.Errorf("decode user object: %w", err)
		}
		if id, ok := e.UserObject["id"].(string); ok && e.UserID == "" {
			e.UserID = id
		}
	default:
		return fmt.Errorf("unexpected user field: %s", user)
	}
	return nil
}

// DecodeEvent parses one realtime event payload.
func DecodeEvent(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &ev, nil
}

// EnrichedEvent is an event whose acting user and item user have been resolved.
// User is never nil; an unresolved actor is the zero User.
type EnrichedEvent struct {
	*Event
	User     brain.User
	ItemUser *brain.User
}
