package slack

import (
	"log/slog"
	"strings"
)

const formatterDeprecation = "Formatter is deprecated and will be removed in the next major version. " +
	"It only sees users already in the brain and cached conversations; " +
	"text messages are resolved by the adapter before they reach scripts."

// Formatter rewrites Slack markup using only data that is already cached.
//
// Deprecated: received text messages already carry resolved Text and the raw
// markup in RawText.
type Formatter struct {
	cache  *Cache
	logger *slog.Logger
}

func newFormatter(log *slog.Logger, cache *Cache) *Formatter {
	return &Formatter{cache: cache, logger: log}
}

// Links rewrites user, channel, keyword and URL tokens and decodes entities.
func (f *Formatter) Links(text string) string {
	f.warnForDeprecation()
	return replaceLinks(text, f.cachedRefs(text))
}

// Flatten joins the event text and attachment fallbacks, one per line.
func (f *Formatter) Flatten(ev *Event) string {
	f.warnForDeprecation()
	return flattenText(ev, false)
}

// Incoming flattens the event and rewrites its links.
func (f *Formatter) Incoming(ev *Event) string {
	f.warnForDeprecation()
	return f.Links(flattenText(ev, false))
}

func (f *Formatter) cachedRefs(text string) resolvedRefs {
	refs := newResolvedRefs()
	users, channels := unlabeledRefs(text)
	for _, id := range users {
		if u, ok := f.cache.brain.Get(id); ok {
			refs.users[id] = u
		}
	}
	for _, id := range channels {
		if c, ok := f.cache.cachedConversation(id); ok {
			refs.channels[id] = c
		}
	}
	return refs
}

func (f *Formatter) warnForDeprecation() {
	f.logger.Warn(formatterDeprecation)
}

// flattenText joins the text with each attachment fallback on its own line.
// keepEmpty keeps an empty text as a leading blank line when attachments exist.
func flattenText(ev *Event, keepEmpty bool) string {
	parts := make([]string, 0, len(ev.Attachments)+1)
	if ev.Text != "" || (keepEmpty && len(ev.Attachments) > 0) {
		parts = append(parts, ev.Text)
	}
	for _, att := range ev.Attachments {
		parts = append(parts, att.Fallback)
	}
	return strings.Join(parts, "\n")
}
