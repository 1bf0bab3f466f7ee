// Package client is the terminal front end: a REST and websocket client
// for the party server plus the bubbletea model that hosts the composer.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/weiawesome/sync-party/internal/domain"
)

// APIError is a failed envelope. Msg is the server's reason key.
type APIError struct {
	Status int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Msg)
}

type envelope struct {
	Success bool              `json:"success"`
	Msg     string            `json:"msg"`
	User    *domain.Principal `json:"user"`
	Items   json.RawMessage   `json:"items"`
	Data    json.RawMessage   `json:"data"`
}

// API talks to the REST surface. The session cookie lives in its jar and
// is reused for the websocket dial.
type API struct {
	base *url.URL
	jar  http.CookieJar
	http *http.Client
}

func NewAPI(serverURL string) (*API, error) {
	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &API{
		base: base,
		jar:  jar,
		http: &http.Client{Jar: jar, Timeout: 15 * time.Second},
	}, nil
}

// Login opens a session and returns the principal.
func (a *API) Login(ctx context.Context, username, password string) (*domain.Principal, error) {
	env, err := a.do(ctx, http.MethodPost, "/api/login", domain.Credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	return env.User, nil
}

func (a *API) Logout(ctx context.Context) error {
	_, err := a.do(ctx, http.MethodPost, "/api/logout", nil)
	return err
}

// Parties lists the parties the session can see.
func (a *API) Parties(ctx context.Context) ([]domain.Party, error) {
	env, err := a.do(ctx, http.MethodGet, "/api/party", nil)
	if err != nil {
		return nil, err
	}
	var parties []domain.Party
	if len(env.Items) > 0 {
		if err := json.Unmarshal(env.Items, &parties); err != nil {
			return nil, fmt.Errorf("decode parties: %w", err)
		}
	}
	return parties, nil
}

func (a *API) do(ctx context.Context, method, path string, body any) (*envelope, error) {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base.JoinPath(path).String(), r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		return nil, &APIError{Status: resp.StatusCode, Msg: env.Msg}
	}
	return &env, nil
}

// chatURL is the websocket endpoint on the same host.
func (a *API) chatURL() string {
	u := *a.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.JoinPath("/api/chat/ws").String()
}
