package slack

import (
	"maps"

	"github.com/lveraszto/hubot-slack/internal/brain"
)

// UpsertUser stores a Slack user (or the user inside a user_change event) in the brain.
//
// The slack bucket is replaced as a whole. Top-level attributes the new record
// lacks (email address, room, extra keys) are kept from the previous record.
func (c *Cache) UpsertUser(raw map[string]any) brain.User {
	if kind, _ := raw["type"].(string); kind == "user_change" {
		if inner, ok := raw["user"].(map[string]any); ok {
			raw = inner
		}
	}
	next := normalizeUser(raw)
	if next.ID == "" {
		return next
	}
	if prev, ok := c.brain.Get(next.ID); ok {
		next = mergeUser(prev, next)
	}
	c.brain.Remove(next.ID)
	return c.brain.UserForID(next.ID, next)
}

func normalizeUser(raw map[string]any) brain.User {
	u := brain.User{
		ID:       stringField(raw, "id"),
		Name:     stringField(raw, "name"),
		RealName: stringField(raw, "real_name"),
		Slack:    maps.Clone(raw),
	}
	if profile, ok := raw["profile"].(map[string]any); ok {
		u.EmailAddress = stringField(profile, "email")
	}
	if u.Slack == nil {
		u.Slack = map[string]any{}
	}
	return u
}

func mergeUser(prev, next brain.User) brain.User {
	if next.EmailAddress == "" {
		next.EmailAddress = prev.EmailAddress
	}
	if next.Room == "" {
		next.Room = prev.Room
	}
	for k, v := range prev.Extra {
		if _, ok := next.Extra[k]; ok {
			continue
		}
		if next.Extra == nil {
			next.Extra = map[string]any{}
		}
		next.Extra[k] = v
	}
	return next
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
