package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	slackapi "github.com/slack-go/slack"
)

// Remote is the part of the Slack Web API the adapter calls.
// UserInfo and ListUsers return users as raw JSON objects so unknown fields survive.
type Remote interface {
	AuthTest(ctx context.Context) (*slackapi.AuthTestResponse, error)
	UserInfo(ctx context.Context, id string) (map[string]any, error)
	BotInfo(ctx context.Context, id string) (*slackapi.Bot, error)
	ConversationInfo(ctx context.Context, id string) (*slackapi.Channel, error)
	ListUsers(ctx context.Context, cursor string, limit int) (UserPage, error)
	PostMessage(ctx context.Context, channel string, msg OutgoingMessage) error
	SetTopic(ctx context.Context, channel, topic string) error
}

// UserPage is one page of users.list. An empty NextCursor ends the listing.
type UserPage struct {
	Members    []map[string]any
	NextCursor string
}

// NewAPI creates the slack-go client shared by the Web API wrapper and the socket mode transport.
func NewAPI(log *slog.Logger, opts Options) *slackapi.Client {
	return slackapi.New(
		opts.Token,
		slackapi.OptionDebug(opts.Transport.Debug),
		slackapi.OptionLog(newSlackLogger(log)),
		slackapi.OptionAppLevelToken(opts.AppToken),
	)
}

// WebClient implements Remote on top of slack-go.
type WebClient struct {
	api *slackapi.Client

	mu    sync.Mutex
	pages map[string]slackapi.UserPagination
}

func NewWebClient(api *slackapi.Client) *WebClient {
	return &WebClient{api: api, pages: map[string]slackapi.UserPagination{}}
}

func (w *WebClient) AuthTest(ctx context.Context) (*slackapi.AuthTestResponse, error) {
	return w.api.AuthTestContext(ctx)
}

func (w *WebClient) UserInfo(ctx context.Context, id string) (map[string]any, error) {
	user, err := w.api.GetUserInfoContext(ctx, id)
	if err != nil {
		return nil, err
	}
	return toMap(user)
}

func (w *WebClient) BotInfo(ctx context.Context, id string) (*slackapi.Bot, error) {
	return w.api.GetBotInfoContext(ctx, slackapi.GetBotInfoParameters{Bot: id})
}

func (w *WebClient) ConversationInfo(ctx context.Context, id string) (*slackapi.Channel, error) {
	return w.api.GetConversationInfoContext(ctx, &slackapi.GetConversationInfoInput{ChannelID: id})
}

// ListUsers walks users.list. slack-go keeps the Slack cursor private, so the
// returned cursor is an opaque token for the pagination state held here; the
// page after the last one comes back empty with no cursor.
func (w *WebClient) ListUsers(ctx context.Context, cursor string, limit int) (UserPage, error) {
	var p slackapi.UserPagination
	if cursor == "" {
		p = w.api.GetUsersPaginated(slackapi.GetUsersOptionLimit(limit))
	} else {
		w.mu.Lock()
		stored, ok := w.pages[cursor]
		delete(w.pages, cursor)
		w.mu.Unlock()
		if !ok {
			return UserPage{}, fmt.Errorf("unknown users cursor %q", cursor)
		}
		p = stored
	}

	p, err := p.Next(ctx)
	if p.Done(err) {
		return UserPage{}, nil
	}
	if err = p.Failure(err); err != nil {
		return UserPage{}, err
	}

	page := UserPage{Members: make([]map[string]any, 0, len(p.Users))}
	for i := range p.Users {
		m, err := toMap(&p.Users[i])
		if err != nil {
			return UserPage{}, err
		}
		page.Members = append(page.Members, m)
	}
	page.NextCursor = uuid.NewString()
	w.mu.Lock()
	w.pages[page.NextCursor] = p
	w.mu.Unlock()
	return page, nil
}

func (w *WebClient) PostMessage(ctx context.Context, channel string, msg OutgoingMessage) error {
	opts := []slackapi.MsgOption{
		slackapi.MsgOptionText(msg.Text, false),
		slackapi.MsgOptionAsUser(msg.AsUser),
		slackapi.MsgOptionLinkNames(msg.LinkNames),
	}
	if msg.ThreadTS != "" {
		opts = append(opts, slackapi.MsgOptionTS(msg.ThreadTS))
	}
	if len(msg.Attachments) > 0 {
		opts = append(opts, slackapi.MsgOptionAttachments(msg.Attachments...))
	}
	if len(msg.Blocks) > 0 {
		opts = append(opts, slackapi.MsgOptionBlocks(msg.Blocks...))
	}
	if msg.Unfurl {
		opts = append(opts, slackapi.MsgOptionEnableLinkUnfurl())
	}
	_, _, err := w.api.PostMessageContext(ctx, channel, opts...)
	return err
}

func (w *WebClient) SetTopic(ctx context.Context, channel, topic string) error {
	_, err := w.api.SetTopicOfConversationContext(ctx, channel, topic)
	return err
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
