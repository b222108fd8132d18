package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://discord.com/api/v10"

// ErrUnavailable is returned when the circuit breaker is open and no request
// was attempted against the API.
var ErrUnavailable = errors.New("discord api unavailable (circuit open)")

// errNotFound flags 404 responses internally; FetchMember converts it into
// the absent sentinel, everything else surfaces it as *APIError.
var errNotFound = errors.New("discord: not found")

// Client is a typed wrapper over the Discord REST API. It holds no per-user
// session state: user-level access tokens are supplied by the caller, only
// the bot credential lives here.
type Client struct {
	base       string
	botToken   string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *CircuitBreaker
	retry      RetryConfig
	log        *slog.Logger
}

type Option func(*Client)

// WithBaseURL overrides the API endpoint (tests point it at httptest).
func WithBaseURL(base string) Option {
	return func(c *Client) { c.base = strings.TrimRight(base, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithRetryConfig(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

func NewClient(log *slog.Logger, botToken string, opts ...Option) *Client {
	c := &Client{
		base:       defaultBaseURL,
		botToken:   botToken,
		httpClient: NewHTTPClient(),
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
		breaker:    NewCircuitBreaker(),
		retry:      DefaultRetryConfig(),
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) authBot() string {
	tok := c.botToken
	if !strings.HasPrefix(strings.ToLower(tok), "bot ") {
		tok = "Bot " + tok
	}
	return tok
}

// FetchSelfProfile resolves the profile behind a user OAuth access token.
func (c *Client) FetchSelfProfile(ctx context.Context, accessToken string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/@me", "Bearer "+accessToken, nil, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, &APIError{Status: http.StatusOK, Endpoint: "/users/@me", Body: "profile missing id"}
	}
	return &u, nil
}

// FetchUserByID fetches a public profile with the bot credential.
func (c *Client) FetchUserByID(ctx context.Context, userID string) (*User, error) {
	var u User
	path := "/users/" + userID
	if err := c.do(ctx, http.MethodGet, path, c.authBot(), nil, &u); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, &APIError{Status: http.StatusNotFound, Endpoint: path}
		}
		return nil, err
	}
	return &u, nil
}

// FetchMember reports guild membership. A 404 means the identity is simply
// not a member: (nil, nil), distinguished from a real failure.
func (c *Client) FetchMember(ctx context.Context, guildID, userID string) (*Member, error) {
	var m Member
	path := fmt.Sprintf("/guilds/%s/members/%s", guildID, userID)
	if err := c.do(ctx, http.MethodGet, path, c.authBot(), nil, &m); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// AddMember joins the identity to the guild using its OAuth access token.
// Discord treats adding an existing member as a no-op (204).
func (c *Client) AddMember(ctx context.Context, guildID, userID, accessToken, nick string) error {
	body := map[string]string{"access_token": accessToken}
	if nick != "" {
		body["nick"] = nick
	}
	path := fmt.Sprintf("/guilds/%s/members/%s", guildID, userID)
	return c.do(ctx, http.MethodPut, path, c.authBot(), body, nil)
}

func (c *Client) RemoveMember(ctx context.Context, guildID, userID string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s", guildID, userID)
	err := c.do(ctx, http.MethodDelete, path, c.authBot(), nil, nil)
	if errors.Is(err, errNotFound) {
		// já fora da guilda; nada a fazer
		return nil
	}
	return err
}

// OpenDMChannel opens (or reuses) the bot's DM channel with the recipient.
func (c *Client) OpenDMChannel(ctx context.Context, recipientID string) (*Channel, error) {
	var ch Channel
	body := map[string]string{"recipient_id": recipientID}
	if err := c.do(ctx, http.MethodPost, "/users/@me/channels", c.authBot(), body, &ch); err != nil {
		return nil, err
	}
	if ch.ID == "" {
		return nil, &APIError{Status: http.StatusOK, Endpoint: "/users/@me/channels", Body: "channel missing id"}
	}
	return &ch, nil
}

func (c *Client) SendEmbed(ctx context.Context, channelID string, embed Embed) error {
	body := map[string]any{"embeds": []Embed{embed}}
	path := fmt.Sprintf("/channels/%s/messages", channelID)
	return c.do(ctx, http.MethodPost, path, c.authBot(), body, nil)
}

func (c *Client) FetchGuildPreview(ctx context.Context, guildID string) (*GuildPreview, error) {
	var p GuildPreview
	path := fmt.Sprintf("/guilds/%s/preview", guildID)
	if err := c.do(ctx, http.MethodGet, path, c.authBot(), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// do issues a single API call with rate limiting, circuit breaking and
// Retry-After-aware retries on 429/5xx. A 404 becomes errNotFound; any other
// non-2xx becomes *APIError.
func (c *Client) do(ctx context.Context, method, path, auth string, body any, out any) error {
	if !c.breaker.Allow() {
		c.log.Warn("discord_circuit_open", "method", method, "path", path)
		return ErrUnavailable
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.base+path, reqBody)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", auth)
		req.Header.Set("User-Agent", "DiscordBot (clubsite, 1.0)")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err = c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			c.log.Warn("discord_request_failed", "method", method, "path", path, "attempt", attempt, "error", err)
			if attempt < c.retry.MaxRetries {
				if werr := sleepCtx(ctx, CalculateBackoff(c.retry, attempt, 0)); werr != nil {
					break
				}
				continue
			}
			break
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			drain(resp)
			lastErr = &APIError{Status: resp.StatusCode, Endpoint: path}
			resp = nil
			c.log.Warn("discord_retryable_status", "method", method, "path", path, "attempt", attempt, "retry_after", retryAfter.String())
			if attempt < c.retry.MaxRetries {
				if werr := sleepCtx(ctx, CalculateBackoff(c.retry, attempt, retryAfter)); werr != nil {
					break
				}
				continue
			}
			break
		}

		break
	}

	if resp == nil {
		c.breaker.RecordFailure()
		if lastErr != nil {
			return lastErr
		}
		return fmt.Errorf("no response after retries")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.breaker.RecordSuccess() // upstream respondeu; não é falha de serviço
		drainBody(resp.Body)
		return errNotFound
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.breaker.RecordSuccess()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Status: resp.StatusCode, Endpoint: path, Body: string(snippet)}
	}

	c.breaker.RecordSuccess()

	if out == nil {
		drainBody(resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Status: resp.StatusCode, Endpoint: path, Body: fmt.Sprintf("malformed body: %v", err)}
	}
	return nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func drain(resp *http.Response) {
	drainBody(resp.Body)
	resp.Body.Close()
}

func drainBody(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 4096))
}
