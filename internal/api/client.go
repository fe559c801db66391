// internal/api/client.go
// REST client for the CafeMeetUps backend

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nikkjaat/cafemeetups-client/internal/common/errs"
)

// Client talks to the REST backend. All failures surface as errs.NetworkError
// so callers can branch on the taxonomy instead of transport details.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SetToken installs the bearer token used on subsequent requests. An empty
// token clears authentication (logout).
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// request issues a JSON request and decodes the body into out. out must
// implement result; success=false envelopes become NetworkError like any
// non-2xx status.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	op := fmt.Sprintf("%s %s", method, path)

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errs.Network(op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return errs.Network(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Network(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errs.Network(op, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(text))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Network(op, fmt.Errorf("decoding response: %w", err))
	}

	if r, okType := out.(result); okType && !r.ok() {
		return errs.Network(op, fmt.Errorf("backend rejected request: %s", r.errText()))
	}
	return nil
}

// Auth endpoints

func (c *Client) Login(ctx context.Context, email, password string) (string, *User, error) {
	var resp authResponse
	payload := map[string]string{"email": email, "password": password}
	if err := c.request(ctx, http.MethodPost, "/auth/login", nil, payload, &resp); err != nil {
		return "", nil, err
	}
	return resp.Token, resp.User, nil
}

func (c *Client) Register(ctx context.Context, req *RegisterRequest) (string, *User, error) {
	var resp authResponse
	if err := c.request(ctx, http.MethodPost, "/auth/register", nil, req, &resp); err != nil {
		return "", nil, err
	}
	return resp.Token, resp.User, nil
}

// GoogleAuth exchanges a Google ID token for a session.
func (c *Client) GoogleAuth(ctx context.Context, tokenID string) (string, *User, error) {
	var resp authResponse
	payload := map[string]string{"tokenId": tokenID}
	if err := c.request(ctx, http.MethodPost, "/auth/google", nil, payload, &resp); err != nil {
		return "", nil, err
	}
	return resp.Token, resp.User, nil
}

// FacebookAuth exchanges a Facebook access token for a session.
func (c *Client) FacebookAuth(ctx context.Context, accessToken string) (string, *User, error) {
	var resp authResponse
	payload := map[string]string{"tokenId": accessToken}
	if err := c.request(ctx, http.MethodPost, "/auth/facebook", nil, payload, &resp); err != nil {
		return "", nil, err
	}
	return resp.Token, resp.User, nil
}

// Me validates the current token and returns the account behind it.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var resp userResponse
	if err := c.request(ctx, http.MethodGet, "/auth/profile", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

func (c *Client) UpdateProfile(ctx context.Context, updates *ProfileUpdate) (*User, error) {
	var resp userResponse
	if err := c.request(ctx, http.MethodPut, "/auth/profile", nil, updates, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// Discovery

// FilteredUsers fetches discovery candidates. The criteria arrive as query
// parameters already encoded by the feed package.
func (c *Client) FilteredUsers(ctx context.Context, query url.Values) ([]Profile, error) {
	var resp usersResponse
	if err := c.request(ctx, http.MethodGet, "/users", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// Swiping

// Like records a right swipe and reports whether it produced a match.
func (c *Client) Like(ctx context.Context, profileID string) (*LikeResult, error) {
	var resp likeResponse
	payload := map[string]string{"userId": profileID}
	if err := c.request(ctx, http.MethodPost, "/matches/like", nil, payload, &resp); err != nil {
		return nil, err
	}
	return &LikeResult{IsMatch: resp.IsMatch, Match: resp.Match}, nil
}

// Pass records a left swipe. Best-effort from the caller's perspective.
func (c *Client) Pass(ctx context.Context, profileID string) error {
	var resp envelope
	payload := map[string]string{"userId": profileID, "action": "left"}
	return c.request(ctx, http.MethodPost, "/matches/pass", nil, payload, &resp)
}

// Swipe is the secondary swipe endpoint with semantics equivalent to
// Like/Pass, used as a fallback when the primary endpoint fails.
func (c *Client) Swipe(ctx context.Context, profileID, direction string) (*LikeResult, error) {
	var resp likeResponse
	payload := map[string]string{"userId": profileID, "action": direction}
	if err := c.request(ctx, http.MethodPost, "/matches/swipe", nil, payload, &resp); err != nil {
		return nil, err
	}
	return &LikeResult{IsMatch: resp.IsMatch, Match: resp.Match}, nil
}

// Matches and messages

func (c *Client) Matches(ctx context.Context) ([]Match, error) {
	var resp matchesResponse
	if err := c.request(ctx, http.MethodGet, "/matches", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

func (c *Client) Messages(ctx context.Context, matchID string) ([]Message, error) {
	var resp messagesResponse
	if err := c.request(ctx, http.MethodGet, "/messages/"+url.PathEscape(matchID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) SendMessage(ctx context.Context, matchID, text string) (*Message, error) {
	var resp messageResponse
	payload := map[string]string{"matchId": matchID, "message": text}
	if err := c.request(ctx, http.MethodPost, "/messages", nil, payload, &resp); err != nil {
		return nil, err
	}
	return resp.MessageBody, nil
}
