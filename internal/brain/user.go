package brain

import "maps"

// User is the persisted identity record shared by every adapter.
//
// Slack holds the raw platform user as received; Extra holds top-level
// attributes set by other adapters or scripts.
type User struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	RealName     string         `json:"real_name"`
	EmailAddress string         `json:"email_address,omitempty"`
	Room         string         `json:"room,omitempty"`
	Slack        map[string]any `json:"slack,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// IsZero reports whether u is the empty placeholder user.
func (u User) IsZero() bool {
	return u.ID == ""
}

// Clone returns a copy whose maps can be modified without touching u.
func (u User) Clone() User {
	out := u
	if u.Slack != nil {
		out.Slack = maps.Clone(u.Slack)
	}
	if u.Extra != nil {
		out.Extra = maps.Clone(u.Extra)
	}
	return out
}

// WithRoom returns a copy of u addressed to room.
func (u User) WithRoom(room string) User {
	out := u.Clone()
	out.Room = room
	return out
}

// SlackBool reads a boolean flag (is_bot, deleted, ...) from the raw platform record.
func (u User) SlackBool(key string) bool {
	v, ok := u.Slack[key].(bool)
	return ok && v
}

// SlackString reads a string field from the raw platform record.
func (u User) SlackString(key string) string {
	v, _ := u.Slack[key].(string)
	return v
}
