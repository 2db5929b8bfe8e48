package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"partyserver/models"
	"partyserver/selection"
)

// APIError はサーバーが返した {msg, code} 形式のエラーです。
type APIError struct {
	Status int
	Code   string
	Msg    string
	Victim *models.Victim
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API returned status code: %d (%s): %s", e.Status, e.Code, e.Msg)
	}
	return fmt.Sprintf("API returned status code: %d: %s", e.Status, e.Msg)
}

// Unwrap maps error codes to the selection sentinels so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case models.CodeNoPlayers:
		return selection.ErrNoPlayers
	case models.CodeNoChallengesForUser:
		nc := &selection.NoChallengesError{}
		if e.Victim != nil {
			nc.PlayerID, nc.Username = e.Victim.ID, e.Victim.Username
		}
		return nc
	case models.CodeConcurrencyExhausted:
		return selection.ErrConcurrencyExhausted
	case models.CodeInvalidDraw:
		return selection.ErrInvalidDraw
	case models.CodeDrawNotFound:
		return selection.ErrDrawNotFound
	case models.CodeDrawsUnavailable:
		return selection.ErrDrawsUnavailable
	}
	return nil
}

// NetworkError はサーバーに届かなかったリクエストです。
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return "failed to make request " + e.Op + ": " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// Client talks to the party server API on behalf of one logged-in user.
type Client struct {
	baseURL string
	client  *http.Client

	mu    sync.RWMutex
	token string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/") + "/api",
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &NetworkError{Op: method + " " + endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: method + " " + endpoint, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Msg    string         `json:"msg"`
			Code   string         `json:"code"`
			Victim *models.Victim `json:"victim"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Msg, apiErr.Code, apiErr.Victim = payload.Msg, payload.Code, payload.Victim
		} else {
			apiErr.Msg = string(data)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type tokenResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// GameLogin checks the family password and returns the game id.
func (c *Client) GameLogin(ctx context.Context, name, password string) (uint, error) {
	var out struct {
		GameID uint `json:"gameId"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/game/login", models.GameRegisterRequest{Name: name, Password: password}, &out)
	return out.GameID, err
}

// Login はユーザーとしてログインし、以降のリクエストにトークンを付けます。
func (c *Client) Login(ctx context.Context, gameID uint, username, password string) (*models.User, error) {
	var out tokenResponse
	req := models.LoginRequest{GameID: gameID, Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/user/login", req, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out.User, nil
}

func (c *Client) NextRound(ctx context.Context) (*models.Round, error) {
	var round models.Round
	if err := c.do(ctx, http.MethodGet, "/game/random", nil, &round); err != nil {
		return nil, err
	}
	return &round, nil
}

func (c *Client) ChallengeRound(ctx context.Context, challengeID uint) (*models.Round, error) {
	var round models.Round
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/game/data/%d", challengeID), nil, &round); err != nil {
		return nil, err
	}
	return &round, nil
}

func (c *Client) CurrentGame(ctx context.Context) (*models.Game, error) {
	var game models.Game
	if err := c.do(ctx, http.MethodGet, "/game/current", nil, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (c *Client) Users(ctx context.Context) ([]models.Victim, error) {
	var users []models.Victim
	err := c.do(ctx, http.MethodGet, "/game/users", nil, &users)
	return users, err
}

func (c *Client) UserChallenges(ctx context.Context, userID uint) ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/game/user-challenges/%d", userID), nil, &challenges)
	return challenges, err
}

type numbersResponse struct {
	UsedRandomNumbers []int `json:"usedRandomNumbers"`
}

func (c *Client) UsedNumbers(ctx context.Context) ([]int, error) {
	var out numbersResponse
	err := c.do(ctx, http.MethodGet, "/game/used-random-numbers", nil, &out)
	return out.UsedRandomNumbers, err
}

func (c *Client) RecordNumbers(ctx context.Context, numbers []int, resetRangeMax int) ([]int, error) {
	var out numbersResponse
	req := models.RecordNumbersRequest{Numbers: numbers, ResetRangeMax: resetRangeMax}
	err := c.do(ctx, http.MethodPost, "/game/record-random-numbers", req, &out)
	return out.UsedRandomNumbers, err
}

func (c *Client) PreviewNumbers(ctx context.Context, maxValue, count int) (*models.PendingDraw, error) {
	var draw models.PendingDraw
	req := models.PreviewNumbersRequest{MaxValue: maxValue, Count: count}
	if err := c.do(ctx, http.MethodPost, "/game/random-numbers/preview", req, &draw); err != nil {
		return nil, err
	}
	return &draw, nil
}

func (c *Client) CommitNumbers(ctx context.Context, drawID string) ([]int, error) {
	var out numbersResponse
	err := c.do(ctx, http.MethodPost, "/game/random-numbers/commit", models.CommitNumbersRequest{DrawID: drawID}, &out)
	return out.UsedRandomNumbers, err
}

func (c *Client) DiscardNumbers(ctx context.Context, drawID string) error {
	return c.do(ctx, http.MethodPost, "/game/random-numbers/discard", models.CommitNumbersRequest{DrawID: drawID}, nil)
}

// IsNetworkError reports whether err never reached the server.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
