package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"ShopChat/config"
	"ShopChat/models"
)

const maxResponseBody = 1 << 20

// APIClient talks to the HTTP side channel: login, active-chat lookups and
// history. The bearer token is fetched on first use and reused.
type APIClient struct {
	baseURL   string
	loginPath string
	username  string
	password  string
	client    *http.Client

	mu    sync.Mutex
	token string
}

func NewAPIClient(cfg *config.ChatConfig) *APIClient {
	return &APIClient{
		baseURL:   strings.TrimRight(cfg.APIBaseURL, "/"),
		loginPath: cfg.LoginPath,
		username:  cfg.Username,
		password:  cfg.Password,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
			// the login answer carries the token on the redirect itself
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Token returns the cached credential, logging in when there is none.
func (c *APIClient) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}
	return c.FetchToken(ctx)
}

// SetToken installs a credential obtained elsewhere.
func (c *APIClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Forget drops the cached credential.
func (c *APIClient) Forget() {
	c.SetToken("")
}

// FetchToken posts the configured credentials to the login endpoint. The
// token is taken from the Authorization header, the "token" cookie or an
// access_token field in the body, in that order.
func (c *APIClient) FetchToken(ctx context.Context) (string, error) {
	if c.username == "" {
		return "", errors.New("no credentials configured")
	}
	form := url.Values{"username": {c.username}, "password": {c.password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("login: %s", resp.Status)
	}

	token := bearerToken(resp.Header.Get("Authorization"))
	if token == "" {
		for _, ck := range resp.Cookies() {
			if ck.Name == models.TokenCookie && ck.Value != "" {
				token = ck.Value
				break
			}
		}
	}
	if token == "" {
		var body models.AuthResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&body); err == nil {
			token = body.AccessToken
		}
	}
	if token == "" {
		return "", errors.New("login: response carried no token")
	}

	c.SetToken(token)
	return token, nil
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func (c *APIClient) ActiveChat(ctx context.Context) (models.ActiveChatResponse, error) {
	var out models.ActiveChatResponse
	if err := c.getJSON(ctx, "/api/active-chat", nil, &out); err != nil {
		return models.ActiveChatResponse{}, err
	}
	if out.Active && out.ChatID == "" {
		return models.ActiveChatResponse{}, fmt.Errorf("%w: active chat without chat_id", models.ErrMalformedPayload)
	}
	return out, nil
}

func (c *APIClient) ActiveChats(ctx context.Context) ([]models.ChatSummary, error) {
	var out []models.ChatSummary
	if err := c.getJSON(ctx, "/api/active-chats", nil, &out); err != nil {
		return nil, err
	}
	for _, s := range out {
		if s.ChatID == "" {
			return nil, fmt.Errorf("%w: active chat entry without chat_id", models.ErrMalformedPayload)
		}
	}
	return out, nil
}

// History returns the ordered messages of chatID.
func (c *APIClient) History(ctx context.Context, chatID string) ([]models.Message, error) {
	var out []models.Message
	if err := c.getJSON(ctx, "/api/chat-history", url.Values{"chat_id": {chatID}}, &out); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Sender == "" {
			return nil, fmt.Errorf("%w: history entry %d without sender", models.ErrMalformedPayload, i)
		}
		if out[i].ChatID == "" {
			out[i].ChatID = chatID
		}
	}
	return out, nil
}

func (c *APIClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if token, err := c.Token(ctx); err == nil {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("GET %s: %w", path, models.ErrChatNotFound)
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(out); err != nil {
		return fmt.Errorf("%w: GET %s: %v", models.ErrMalformedPayload, path, err)
	}
	return nil
}
