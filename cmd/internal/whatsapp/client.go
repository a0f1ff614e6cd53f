package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxResponseBytes = 1 << 20

// Sender delivers one outbound message and returns the upstream message id.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (string, error)
}

// Client calls the Cloud API messages endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient returns a Client; hc nil means a client with cfg.Timeout.
func NewClient(cfg Config, hc *http.Client) *Client {
	cfg = cfg.withDefaults()
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: hc}
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type templateBody struct {
	Name       string           `json:"name"`
	Language   templateLanguage `json:"language"`
	Components json.RawMessage  `json:"components,omitempty"`
}

type outboundMessage struct {
	MessagingProduct string        `json:"messaging_product"`
	RecipientType    string        `json:"recipient_type"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *textBody     `json:"text,omitempty"`
	Template         *templateBody `json:"template,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func buildOutbound(req SendRequest) outboundMessage {
	msg := outboundMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               req.To,
	}
	if req.TemplateName != "" {
		msg.Type = "template"
		msg.Template = &templateBody{
			Name:       req.TemplateName,
			Language:   templateLanguage{Code: req.TemplateLanguage},
			Components: req.TemplateComponents,
		}
		return msg
	}
	msg.Type = "text"
	msg.Text = &textBody{Body: req.Message}
	return msg
}

// Send normalizes and validates req, then posts it. Validation failures wrap ErrInvalidInput;
// a non-2xx answer is an *APIError.
func (c *Client) Send(ctx context.Context, req SendRequest) (string, error) {
	if !c.cfg.Enabled() {
		return "", ErrNotConfigured
	}
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	endpoint, err := c.cfg.messagesURL()
	if err != nil {
		return "", fmt.Errorf("whatsapp: endpoint: %w", err)
	}
	payload, err := json.Marshal(buildOutbound(req))
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	// #nosec G107 -- endpoint is built from operator configuration, not request input.
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("whatsapp: send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("whatsapp: read response: %w", err)
	}

	var out sendResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		if decodeErr == nil && out.Error != nil {
			apiErr.Code = out.Error.Code
			apiErr.Type = out.Error.Type
			apiErr.Message = out.Error.Message
		}
		return "", apiErr
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUpstream, decodeErr)
	}
	if len(out.Messages) == 0 || out.Messages[0].ID == "" {
		return "", fmt.Errorf("%w: response carried no message id", ErrUpstream)
	}
	return out.Messages[0].ID, nil
}
