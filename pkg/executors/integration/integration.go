// Package integration provides the executor for outbound integration node
// types: HTTP requests, webhooks and email.
package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/protocol"
	"github.com/SanketsMane/Flowversal-sub007/pkg/template"
)

const defaultTimeout = 30 * time.Second

var (
	// ErrURLMissing is returned when an http-request or webhook node has no URL.
	ErrURLMissing = errors.New("missing or invalid 'url' in configuration")
	// ErrRecipientMissing is returned when an email node has no recipient.
	ErrRecipientMissing = errors.New("missing or invalid 'to' in configuration")
)

// Executor serves the outbound integration node types. Every dispatch counts
// one API call on the result's usage delta, success or not: the accounting
// tracks attempts, not outcomes.
type Executor struct {
	logger *slog.Logger
	client protocol.HTTPDoer
	mailer protocol.Mailer
}

// NewExecutor creates the integration executor with its outbound capabilities.
func NewExecutor(logger *slog.Logger, client protocol.HTTPDoer, mailer protocol.Mailer) *Executor {
	return &Executor{
		logger: logger.With("module", "integration_executor"),
		client: client,
		mailer: mailer,
	}
}

func (e *Executor) Types() []string {
	return []string{
		models.NodeTypeHTTPRequest,
		models.NodeTypeWebhook,
		models.NodeTypeEmail,
	}
}

func (e *Executor) Execute(ctx context.Context, ec *models.ExecutionContext, node *models.WorkflowNode) (*models.NodeExecutionResult, error) {
	config := template.ResolveMap(node.Config, ec)

	var result *models.NodeExecutionResult

	switch node.Type {
	case models.NodeTypeEmail:
		result = e.sendEmail(ctx, config)
	case models.NodeTypeWebhook:
		result = e.callWebhook(ctx, config)
	default:
		result = e.httpRequest(ctx, config)
	}

	result.Usage.APICalls = 1

	return result, nil
}

func (e *Executor) httpRequest(ctx context.Context, config map[string]any) *models.NodeExecutionResult {
	request, err := parseRequestConfig(config)
	if err != nil {
		return models.FailedResult(err.Error())
	}

	return e.perform(ctx, request)
}

// callWebhook is an http-request specialization: POST, JSON payload.
func (e *Executor) callWebhook(ctx context.Context, config map[string]any) *models.NodeExecutionResult {
	url, ok := config["url"].(string)
	if !ok || url == "" {
		return models.FailedResult(ErrURLMissing.Error())
	}

	body := ""

	if payload, exists := config["payload"]; exists {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return models.FailedResult(fmt.Sprintf("failed to encode webhook payload: %v", err))
		}

		body = string(encoded)
	}

	request := &requestConfig{
		Method:  http.MethodPost,
		URL:     url,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
		Timeout: parseTimeout(config),
	}

	return e.perform(ctx, request)
}

func (e *Executor) perform(ctx context.Context, config *requestConfig) *models.NodeExecutionResult {
	requestCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, config.Method, config.URL, strings.NewReader(config.Body))
	if err != nil {
		return models.FailedResult(fmt.Sprintf("failed to create http request: %v", err))
	}

	for key, value := range config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return models.FailedResult(fmt.Sprintf("http request failed: %v", err))
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.FailedResult(fmt.Sprintf("failed to read response body: %v", err))
	}

	var body any

	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		body = string(bodyBytes)
	}

	e.logger.InfoContext(ctx, "HTTP call completed",
		"method", config.Method,
		"url", config.URL,
		"status_code", resp.StatusCode,
	)

	output := map[string]any{
		"status_code": resp.StatusCode,
		"body":        body,
		"headers":     flattenHeaders(resp.Header),
	}

	if resp.StatusCode >= http.StatusBadRequest {
		failed := models.FailedResult(fmt.Sprintf("http request returned status %d", resp.StatusCode))
		failed.Output = output

		return failed
	}

	return models.SuccessResult(output)
}

func (e *Executor) sendEmail(ctx context.Context, config map[string]any) *models.NodeExecutionResult {
	to, ok := config["to"].(string)
	if !ok || to == "" {
		return models.FailedResult(ErrRecipientMissing.Error())
	}

	subject, _ := config["subject"].(string)
	body, _ := config["body"].(string)

	if err := e.mailer.Send(ctx, to, subject, body); err != nil {
		return models.FailedResult(fmt.Sprintf("email send failed: %v", err))
	}

	e.logger.InfoContext(ctx, "Email sent", "to", to, "subject", subject)

	return models.SuccessResult(map[string]any{
		"to":      to,
		"subject": subject,
		"sent":    true,
	})
}

type requestConfig struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
	Timeout time.Duration
}

func parseRequestConfig(config map[string]any) (*requestConfig, error) {
	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, ErrURLMissing
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	body, _ := config["body"].(string)

	headers := make(map[string]string)

	if headersConfig, exists := config["headers"]; exists {
		if headersMap, ok := headersConfig.(map[string]any); ok {
			for key, value := range headersMap {
				if strVal, ok := value.(string); ok {
					headers[key] = strVal
				}
			}
		}
	}

	url, err := appendParams(url, config)
	if err != nil {
		return nil, err
	}

	return &requestConfig{
		Method:  strings.ToUpper(method),
		URL:     url,
		Headers: headers,
		Body:    body,
		Timeout: parseTimeout(config),
	}, nil
}

// appendParams encodes the node's query parameters onto the URL, merging
// with any query string already present.
func appendParams(rawURL string, config map[string]any) (string, error) {
	paramsConfig, exists := config["params"]
	if !exists {
		return rawURL, nil
	}

	paramsMap, ok := paramsConfig.(map[string]any)
	if !ok || len(paramsMap) == 0 {
		return rawURL, nil
	}

	parsed, err := neturl.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	query := parsed.Query()
	for key, value := range paramsMap {
		query.Set(key, template.Stringify(value))
	}

	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

func parseTimeout(config map[string]any) time.Duration {
	if seconds, ok := config["timeout"].(float64); ok && seconds > 0 {
		return time.Duration(seconds * float64(time.Second))
	}

	return defaultTimeout
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))

	for key := range headers {
		flat[key] = headers.Get(key)
	}

	return flat
}
