/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend talks to the generation service that produces narration
// audio and scene visuals, and to the optional shared story library.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrEntitlement is returned when the account is out of quota or lacks the
// feature. Callers show an upgrade hint instead of a generic failure.
var ErrEntitlement = errors.New("account not entitled")

// Client is a minimal HTTP client for the generation API.
type Client struct {
	BaseURL string
	APIKey  string // bearer token
	client  *http.Client
}

// NewClient creates a client. baseURL may include a trailing slash; it will
// be normalized.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s %s: %s", ErrEntitlement, method, u.Path, readableBody(resp.Body))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("server %s %s: %s: %s", method, u.Path, resp.Status, readableBody(resp.Body))
	}
	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// readableBody extracts a short error message from a failed response.
func readableBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	var env struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(b, &env) == nil {
		if env.Error != "" {
			return env.Error
		}
		if env.Message != "" {
			return env.Message
		}
	}
	return strings.TrimSpace(string(b))
}

// NarrationRequest asks for synthesized speech for one scene.
type NarrationRequest struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	VoiceID  string  `json:"voiceId,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
}

// NarrationResult carries the synthesized audio as a data URL so it can be
// embedded straight into the story document.
type NarrationResult struct {
	AudioDataURL  string  `json:"audioDataUrl"`
	LengthSeconds float64 `json:"lengthSeconds"`
}

// GenerateNarration synthesizes narration audio for a scene.
func (c *Client) GenerateNarration(ctx context.Context, req NarrationRequest) (*NarrationResult, error) {
	var res NarrationResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/generate/narration", req, &res); err != nil {
		return nil, err
	}
	if res.AudioDataURL == "" {
		return nil, errors.New("narration response carried no audio")
	}
	return &res, nil
}

// VisualRequest asks for a generated scene image.
type VisualRequest struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// VisualResult holds generated images as data URLs, ready for an image set.
type VisualResult struct {
	ImageDataURLs []string `json:"imageDataUrls"`
}

// GenerateVisual produces one or more images for a scene.
func (c *Client) GenerateVisual(ctx context.Context, req VisualRequest) (*VisualResult, error) {
	var res VisualResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/generate/visual", req, &res); err != nil {
		return nil, err
	}
	if len(res.ImageDataURLs) == 0 {
		return nil, errors.New("visual response carried no images")
	}
	return &res, nil
}

// ClipRequest asks for a short generated video clip.
type ClipRequest struct {
	Prompt  string  `json:"prompt"`
	Seconds float64 `json:"seconds,omitempty"`
}

// ClipResult references the generated clip by URL; clips are too large to
// embed as data URLs.
type ClipResult struct {
	ClipURL string  `json:"clipUrl"`
	Seconds float64 `json:"seconds"`
}

// GenerateClip produces a video clip for a scene.
func (c *Client) GenerateClip(ctx context.Context, req ClipRequest) (*ClipResult, error) {
	var res ClipResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/generate/clip", req, &res); err != nil {
		return nil, err
	}
	if res.ClipURL == "" {
		return nil, errors.New("clip response carried no url")
	}
	return &res, nil
}
