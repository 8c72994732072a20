package speech

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

// HTTPClient talks to a speech service exposing
//
//	POST {base}/v1/transcribe   body: raw audio, returns {"text","confidence","analysis"}
//	POST {base}/v1/synthesize   body: {"text","voice"}, returns raw audio
type HTTPClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

var (
	_ Transcriber = (*HTTPClient)(nil)
	_ Synthesizer = (*HTTPClient)(nil)
)

func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type transcribeResp struct {
	Text       string         `json:"text"`
	Confidence *float64       `json:"confidence"`
	Analysis   map[string]any `json:"analysis"`
	Error      string         `json:"error,omitempty"`
}

type synthesizeReq struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

func (c *HTTPClient) Transcribe(ctx context.Context, audio []byte, contentType, language string) (*Transcription, error) {
	if c.Client == nil {
		return nil, errors.New("speech: http client is nil")
	}
	if len(audio) == 0 {
		return nil, errors.New("speech: empty audio")
	}

	u := fmt.Sprintf("%s/v1/transcribe", c.BaseURL)
	if language != "" {
		u += "?language=" + url.QueryEscape(language)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(audio))
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	c.authorize(req)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, fmt.Errorf("speech: transcribe status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded transcribeResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != "" {
		return nil, errors.New(decoded.Error)
	}
	if c := decoded.Confidence; c != nil && (*c < 0 || *c > 1) {
		return nil, fmt.Errorf("speech: confidence %v out of range", *c)
	}
	return &Transcription{
		Text:       decoded.Text,
		Confidence: decoded.Confidence,
		Analysis:   decoded.Analysis,
	}, nil
}

func (c *HTTPClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if c.Client == nil {
		return nil, errors.New("speech: http client is nil")
	}

	b, err := json.Marshal(synthesizeReq{Text: text, Voice: voice})
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/v1/synthesize", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, fmt.Errorf("speech: synthesize status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return io.ReadAll(resp.Body)
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
}
