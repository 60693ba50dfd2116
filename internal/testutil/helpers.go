//go:build integration

package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Operator is a registered, logged-in operator.
type Operator struct {
	ID       uuid.UUID
	Username string
	Token    string
}

// RegisterOperator creates an operator and logs it in.
func (env *TestEnv) RegisterOperator(username, password string) Operator {
	env.t.Helper()
	resp := env.POST("/auth/register", map[string]string{
		"username": username,
		"password": password,
	}, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		env.t.Fatalf("RegisterOperator: expected 201, got %d", resp.StatusCode)
	}

	var result struct {
		Operator struct {
			ID uuid.UUID `json:"id"`
		} `json:"operator"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		env.t.Fatalf("RegisterOperator: decode: %v", err)
	}

	return Operator{
		ID:       result.Operator.ID,
		Username: username,
		Token:    env.Login(username, password),
	}
}

// Login authenticates an existing operator and returns the bearer token.
func (env *TestEnv) Login(username, password string) string {
	env.t.Helper()
	resp := env.POST("/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		env.t.Fatalf("Login: expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		env.t.Fatalf("Login: decode: %v", err)
	}
	return result.Token
}

// GET performs a GET request with optional auth token.
func (env *TestEnv) GET(path, token string) *http.Response {
	env.t.Helper()
	return env.Do(http.MethodGet, path, nil, token, nil)
}

// POST performs a POST request with optional auth token.
func (env *TestEnv) POST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.Do(http.MethodPost, path, body, token, nil)
}

// PATCH performs a PATCH request with optional auth token.
func (env *TestEnv) PATCH(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.Do(http.MethodPatch, path, body, token, nil)
}

// DELETE performs a DELETE request with optional auth token.
func (env *TestEnv) DELETE(path, token string) *http.Response {
	env.t.Helper()
	return env.Do(http.MethodDelete, path, nil, token, nil)
}

// Do sends a request with a JSON body (if any) and extra headers.
func (env *TestEnv) Do(method, path string, body interface{}, token string, headers map[string]string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("%s %s: encode: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("%s %s: new request: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// AddLimit creates a limit entry and returns its ID.
func (env *TestEnv) AddLimit(token, betType, number, amountLimit string) uuid.UUID {
	env.t.Helper()
	resp := env.POST("/limit-numbers", map[string]string{
		"bet_type":     betType,
		"number":       number,
		"amount_limit": amountLimit,
	}, token)

	var result struct {
		ID uuid.UUID `json:"id"`
	}
	if resp.StatusCode != http.StatusCreated {
		resp.Body.Close()
		env.t.Fatalf("AddLimit: expected 201, got %d", resp.StatusCode)
	}
	DecodeJSON(env.t, resp, &result)
	return result.ID
}

// AddClosed closes a number and returns the entry ID.
func (env *TestEnv) AddClosed(token, betType, number string) uuid.UUID {
	env.t.Helper()
	resp := env.POST("/close-numbers", map[string]string{
		"bet_type": betType,
		"number":   number,
	}, token)

	var result struct {
		ID uuid.UUID `json:"id"`
	}
	if resp.StatusCode != http.StatusCreated {
		resp.Body.Close()
		env.t.Fatalf("AddClosed: expected 201, got %d", resp.StatusCode)
	}
	DecodeJSON(env.t, resp, &result)
	return result.ID
}

// DialLimitBoard opens the limit board websocket with the token in the query string.
func (env *TestEnv) DialLimitBoard(token string) *websocket.Conn {
	env.t.Helper()
	url := "ws" + strings.TrimPrefix(env.Server.URL, "http") + "/ws/limits?token=" + token
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	ws, resp, err := dialer.Dial(url, nil)
	if err != nil {
		env.t.Fatalf("DialLimitBoard: %v", err)
	}
	resp.Body.Close()
	env.t.Cleanup(func() { ws.Close() })
	return ws
}
