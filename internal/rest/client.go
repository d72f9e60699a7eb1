// Package rest implements the pull-request side of synchronization: plain
// request/response JSON calls against the chat server's HTTP API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brunodmt/tether/internal/state"
)

// Client is the HTTP pull-request client. Status-code-driven error
// signaling: >= 400 is *NetworkError, 401 is *AuthRequired, anything
// else is success.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// New creates a client for the given API base URL (scheme://host[:port]).
func New(base, token string) *Client {
	return &Client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

type wireUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

type wireMessage struct {
	ID        string   `json:"id"`
	ChannelID string   `json:"channelId"`
	Sender    wireUser `json:"sender"`
	Content   string   `json:"content"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
}

type wireChannel struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Users     []wireUser    `json:"users"`
	Messages  []wireMessage `json:"messages"`
	CreatedAt int64         `json:"createdAt"`
	UpdatedAt int64         `json:"updatedAt"`
}

// Me is the current user's identity as reported by the server.
type Me struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// ListChannels fetches the full channel collection.
func (c *Client) ListChannels(ctx context.Context) ([]state.Channel, error) {
	var resp struct {
		Channels []wireChannel `json:"channels"`
	}
	if err := c.get(ctx, "/api/channel/", &resp); err != nil {
		return nil, err
	}
	out := make([]state.Channel, 0, len(resp.Channels))
	for _, w := range resp.Channels {
		out = append(out, w.toState())
	}
	return out, nil
}

// ChannelDetail fetches one channel together with its message history.
func (c *Client) ChannelDetail(ctx context.Context, id string) (state.Channel, error) {
	var resp struct {
		Channel  wireChannel   `json:"channel"`
		Messages []wireMessage `json:"messages"`
	}
	if err := c.get(ctx, "/api/channel/"+url.PathEscape(id)+"/message", &resp); err != nil {
		return state.Channel{}, err
	}
	ch := resp.Channel.toState()
	ch.Messages = toStateMessages(resp.Messages)
	return ch, nil
}

// GetChannel fetches one channel without history. Used by the retry-poll
// coordinator to probe whether an asynchronously provisioned channel has
// become queryable.
func (c *Client) GetChannel(ctx context.Context, id string) (state.Channel, error) {
	var resp struct {
		Channel wireChannel `json:"channel"`
	}
	if err := c.get(ctx, "/api/channel/"+url.PathEscape(id), &resp); err != nil {
		return state.Channel{}, err
	}
	return resp.Channel.toState(), nil
}

// CreateChannel asks the server to provision a channel. The server accepts
// immediately; the returned id only becomes queryable after provisioning.
func (c *Client) CreateChannel(ctx context.Context, name string, memberIDs []string) (string, error) {
	body := map[string]any{"channelName": name, "memberIds": memberIDs}
	var resp struct {
		ChannelID string `json:"channelId"`
	}
	if err := c.post(ctx, "/api/channel", body, &resp); err != nil {
		return "", err
	}
	return resp.ChannelID, nil
}

// AddMembers adds users to an existing channel.
func (c *Client) AddMembers(ctx context.Context, channelID string, userIDs []string) ([]string, error) {
	body := map[string]any{"userIds": userIDs}
	var resp struct {
		Detail string   `json:"detail"`
		Added  []string `json:"added"`
	}
	if err := c.post(ctx, "/api/channel/"+url.PathEscape(channelID)+"/member", body, &resp); err != nil {
		return nil, err
	}
	return resp.Added, nil
}

// SearchUsers queries users by name fragment.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]state.User, error) {
	var resp struct {
		Detail string     `json:"detail"`
		Users  []wireUser `json:"users"`
	}
	if err := c.get(ctx, "/api/user?q="+url.QueryEscape(query), &resp); err != nil {
		return nil, err
	}
	users := make([]state.User, 0, len(resp.Users))
	for _, w := range resp.Users {
		users = append(users, w.toState())
	}
	return users, nil
}

// CurrentUser fetches the authenticated user. A 401 surfaces as
// *AuthRequired with the redirect location.
func (c *Client) CurrentUser(ctx context.Context) (Me, error) {
	var me Me
	if err := c.get(ctx, "/api/user/me", &me); err != nil {
		return Me{}, err
	}
	return me, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	target := c.base + path

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{URL: target, Body: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Status: resp.StatusCode, URL: target, Body: err.Error()}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		var loc struct {
			Location string `json:"location"`
		}
		_ = json.Unmarshal(raw, &loc)
		return &AuthRequired{Location: loc.Location}
	}
	if resp.StatusCode >= 400 {
		return &NetworkError{Status: resp.StatusCode, URL: target, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", target, err)
	}
	return nil
}

func (w wireUser) toState() state.User {
	return state.User{ID: w.ID, Username: w.Username, DisplayName: w.DisplayName}
}

func (w wireChannel) toState() state.Channel {
	return state.Channel{
		ID:        w.ID,
		Name:      w.Name,
		Users:     toStateUsers(w.Users),
		Messages:  toStateMessages(w.Messages),
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func toStateUsers(ws []wireUser) []state.User {
	if len(ws) == 0 {
		return nil
	}
	out := make([]state.User, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.toState())
	}
	return out
}

func toStateMessages(ws []wireMessage) []state.Message {
	if len(ws) == 0 {
		return nil
	}
	out := make([]state.Message, 0, len(ws))
	for _, w := range ws {
		out = append(out, state.Message{
			ID:        w.ID,
			ChannelID: w.ChannelID,
			Sender:    w.Sender.toState(),
			Content:   w.Content,
			CreatedAt: w.CreatedAt,
			UpdatedAt: w.UpdatedAt,
		})
	}
	return out
}
