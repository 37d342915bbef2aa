package robot

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Handler runs when a listener matches.
type Handler func(ctx context.Context, res *Response)

type matchFunc func(r *Robot, msg Message) ([]string, bool)

type listener struct {
	id      string
	match   matchFunc
	handler Handler
}

// Hear registers a handler for text messages matching pattern anywhere.
func (r *Robot) Hear(pattern *regexp.Regexp, h Handler) string {
	return r.addListener(func(_ *Robot, msg Message) ([]string, bool) {
		text, ok := messageText(msg)
		if !ok {
			return nil, false
		}
		m := pattern.FindStringSubmatch(text)
		return m, m != nil
	}, h)
}

// Respond registers a handler for text messages addressed to the robot by
// name or alias, with an optional leading @ and trailing : or ,. The pattern
// is matched against the rest of the text.
func (r *Robot) Respond(pattern *regexp.Regexp, h Handler) string {
	return r.addListener(func(rb *Robot, msg Message) ([]string, bool) {
		text, ok := messageText(msg)
		if !ok {
			return nil, false
		}
		rest, addressed := stripAddress(text, rb.Name(), rb.Alias())
		if !addressed {
			return nil, false
		}
		m := pattern.FindStringSubmatch(rest)
		return m, m != nil
	}, h)
}

// Listen registers a handler for every message of kind.
func (r *Robot) Listen(kind Kind, h Handler) string {
	return r.addListener(func(_ *Robot, msg Message) ([]string, bool) {
		return nil, msg.Kind() == kind
	}, h)
}

// RemoveListener unregisters the listener with id.
func (r *Robot) RemoveListener(id string) bool {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	for i, l := range r.listeners {
		if l.id == id {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Robot) addListener(match matchFunc, h Handler) string {
	l := &listener{id: uuid.NewString(), match: match, handler: h}
	r.listenerMu.Lock()
	r.listeners = append(r.listeners, l)
	r.listenerMu.Unlock()
	return l.id
}

func messageText(msg Message) (string, bool) {
	switch m := msg.(type) {
	case *TextMessage:
		return m.Text, true
	case *MeMessage:
		return m.Text, true
	}
	return "", false
}

// stripAddress removes "name", "@name", "name:" or "alias," style prefixes.
func stripAddress(text, name, alias string) (string, bool) {
	trimmed := strings.TrimLeft(text, " \t")
	trimmed = strings.TrimPrefix(trimmed, "@")
	for _, candidate := range []string{name, alias} {
		if candidate == "" {
			continue
		}
		if len(trimmed) < len(candidate) || !strings.EqualFold(trimmed[:len(candidate)], candidate) {
			continue
		}
		rest := trimmed[len(candidate):]
		if rest != "" && (rest[0] == ':' || rest[0] == ',') {
			rest = rest[1:]
		}
		return strings.TrimLeft(rest, " \t"), true
	}
	return "", false
}
