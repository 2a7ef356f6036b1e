// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package reasoning wraps the external reasoning service.
//
// The service is strictly advisory: it re-ranks relaxation options the
// advisor generated and phrases rationale records as prose. Every call
// carries a timeout and a rate limit, and every caller has a deterministic
// local fallback, so the engine's output never depends on the service being
// up or sane.
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/campusworks/timetabler/services/scheduler/explain"
	"github.com/campusworks/timetabler/services/scheduler/resolve"
)

// Config configures the reasoning client.
type Config struct {
	// APIKey for the service. Falls back to OPENAI_API_KEY.
	APIKey string

	// Model identifier, e.g. "gpt-4o-mini".
	Model string

	// BaseURL overrides the service endpoint (for local serving).
	BaseURL string

	// CallTimeout caps each call. Default 10s.
	CallTimeout time.Duration

	// RatePerMinute caps outbound calls. Default 30.
	RatePerMinute int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client is the advisory reasoning-service client.
//
// Thread Safety: safe for concurrent use.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient builds a Client.
//
// Outputs:
//
//	*Client - ready to use.
//	error - non-nil when no API key is available; callers treat that as
//	"service disabled" and run with local fallbacks only.
func NewClient(cfg Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: no API key configured", ErrServiceUnavailable)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 30
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		api:     openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.CallTimeout,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), cfg.RatePerMinute),
		logger:  cfg.Logger,
	}, nil
}

// RankRelaxations asks the service for a preferred ordering of options.
//
// Description:
//
//	Sends the option list as JSON and expects a JSON array of indices. The
//	reply is parsed, not trusted: the advisor validates it again before
//	use. Any transport error, timeout or unparseable reply comes back as
//	ErrServiceUnavailable and the caller keeps its local order.
func (c *Client) RankRelaxations(ctx context.Context, options []resolve.RelaxationOption) ([]int, error) {
	payload, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("%w: encode options: %v", ErrServiceUnavailable, err)
	}

	prompt := fmt.Sprintf(
		"Given these timetable constraint relaxation options as JSON, reply with ONLY a JSON array of the option indices ordered from least to most disruptive for students and professors.\n\n%s",
		payload,
	)

	reply, err := c.complete(ctx, rankSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	var order []int
	if err := json.Unmarshal([]byte(extractJSONArray(reply)), &order); err != nil {
		return nil, fmt.Errorf("%w: unparseable ranking reply: %v", ErrServiceUnavailable, err)
	}
	return order, nil
}

// Phrase turns one rationale record into prose.
//
// On any service failure the caller should use PhraseFallback instead; the
// returned error wraps ErrServiceUnavailable.
func (c *Client) Phrase(ctx context.Context, record explain.RationaleRecord) (string, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("%w: encode record: %v", ErrServiceUnavailable, err)
	}

	prompt := fmt.Sprintf(
		"Phrase this structured timetable placement rationale as two short plain-English sentences for a course administrator. Do not add facts.\n\n%s",
		payload,
	)

	text, err := c.complete(ctx, phraseSystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

const (
	rankSystemPrompt   = "You re-rank scheduling trade-offs. You never invent new options."
	phraseSystemPrompt = "You phrase structured scheduling decisions as short, factual prose."
)

func (c *Client) complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limit wait: %v", ErrServiceUnavailable, err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		c.logger.Warn("reasoning service call failed",
			slog.String("model", c.model),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrServiceUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// extractJSONArray trims any chatter around the first JSON array in a
// reply. Models occasionally wrap the payload in prose or code fences.
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

// PhraseFallback renders a rationale record as templated text. Used
// whenever the reasoning service is unavailable; deterministic.
func PhraseFallback(record explain.RationaleRecord) string {
	var satisfied, traded []string
	for _, e := range record.Entries {
		if e.Outcome == explain.OutcomeTradedOff {
			traded = append(traded, e.Constraint)
		} else {
			satisfied = append(satisfied, e.Constraint)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s is placed at %s in room %s, satisfying %s.",
		record.ActivityID, record.Placement.Slot, record.Placement.RoomID,
		joinOr(satisfied, "no constraints"))
	if len(traded) > 0 {
		fmt.Fprintf(&b, " Traded off: %s.", strings.Join(traded, ", "))
	}
	return b.String()
}

func joinOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ", ")
}
