// Package gateway performs the single request/response exchange with the
// copilot webhook.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"cashly-copilot/internal/config"
	"cashly-copilot/internal/model"
	"cashly-copilot/pkg/logger"

	"github.com/tidwall/gjson"
)

type Client struct {
	url         string
	replyFields []string
	http        *http.Client
}

// New returns a client for the given deployment variant. A nil
// httpClient uses http.DefaultClient.
func New(variant config.Variant, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		url:         variant.WebhookURL,
		replyFields: variant.ReplyFields,
		http:        httpClient,
	}
}

func (c *Client) URL() string {
	return c.url
}

// Send POSTs req and blocks until the webhook answers or the transport
// fails. It never returns an error; failures are folded into the Result.
func (c *Client) Send(ctx context.Context, req model.AgentRequest) Result {
	body, err := json.Marshal(req)
	if err != nil {
		return transportFailure(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return transportFailure(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		logger.Warnf("Webhook request failed: %v", err)
		return transportFailure(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportFailure(err)
	}

	logger.Infof("Webhook status: %d", resp.StatusCode)
	logger.Debugf("Webhook response: %s", data)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusFailure(resp.StatusCode)
	}

	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return ok(resp.StatusCode, string(data))
	}

	if !gjson.ValidBytes(data) {
		return malformed(resp.StatusCode, data)
	}

	return ok(resp.StatusCode, ExtractReply(gjson.ParseBytes(data), c.replyFields))
}

// ExtractReply applies the reply rules in order: unwrap the first element
// of an array, then take the first of fields present on the object, then
// fall back to the whole value as text. A null field counts as absent.
func ExtractReply(v gjson.Result, fields []string) string {
	if v.IsArray() {
		items := v.Array()
		if len(items) == 0 {
			return compact(v.Raw)
		}
		v = items[0]
	}

	if v.Type == gjson.Null {
		return compact(v.Raw)
	}
	if !v.IsObject() {
		return v.String()
	}

	obj := v.Map()
	for _, f := range fields {
		if r, found := obj[f]; found && r.Type != gjson.Null {
			return r.String()
		}
	}

	return compact(v.Raw)
}

func compact(raw string) string {
	return gjson.Get(raw, "@ugly").Raw
}
