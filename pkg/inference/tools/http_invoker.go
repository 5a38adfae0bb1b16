package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const maxResponseBytes = 10 << 20

// PathStyle controls how tool names map to endpoint paths.
type PathStyle string

const (
	PathStyleSnake PathStyle = "snake" // /api/tools/search_members
	PathStyleKebab PathStyle = "kebab" // /api/tools/search-members
)

// InvokeError is a non-2xx answer of the operations API.
type InvokeError struct {
	Tool       string
	StatusCode int
	Message    string
}

func (e *InvokeError) Error() string {
	return e.Message
}

// IsTransient reports whether a failed invocation is worth retrying:
// network errors, timeouts, 429 and 5xx answers.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ie *InvokeError
	if errors.As(err, &ie) {
		return ie.StatusCode == http.StatusTooManyRequests || ie.StatusCode >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// HTTPInvoker binds tools to the church application's tool endpoints:
// POST {baseURL}/api/tools/{name} with the arguments as JSON body.
type HTTPInvoker struct {
	client    *http.Client
	baseURL   string
	pathStyle PathStyle
	headers   map[string]string
}

type HTTPInvokerOption func(*HTTPInvoker)

func WithHTTPClient(client *http.Client) HTTPInvokerOption {
	return func(h *HTTPInvoker) {
		h.client = client
	}
}

func WithPathStyle(style PathStyle) HTTPInvokerOption {
	return func(h *HTTPInvoker) {
		h.pathStyle = style
	}
}

// WithHeader adds a static header to every request, e.g. an API token for
// the operations API.
func WithHeader(key, value string) HTTPInvokerOption {
	return func(h *HTTPInvoker) {
		h.headers[key] = value
	}
}

func NewHTTPInvoker(baseURL string, options ...HTTPInvokerOption) *HTTPInvoker {
	h := &HTTPInvoker{
		client:    NewHTTPClient(30 * time.Second),
		baseURL:   strings.TrimRight(baseURL, "/"),
		pathStyle: PathStyleSnake,
		headers:   map[string]string{},
	}
	for _, o := range options {
		o(h)
	}
	return h
}

// NewHTTPClient returns a client with pooled keep-alive connections, shared
// by all tool calls of the process.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func (h *HTTPInvoker) Endpoint(name string) string {
	path := name
	if h.pathStyle == PathStyleKebab {
		path = strcase.ToKebab(name)
	}
	return h.baseURL + "/api/tools/" + path
}

func (h *HTTPInvoker) Invoke(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	endpoint := h.Endpoint(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(args))
	if err != nil {
		return nil, errors.Wrapf(err, "could not build request for %s", name)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrapf(err, "could not read response of %s", name)
	}

	log.Debug().
		Str("tool", name).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Msg("tools: operations API answered")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &InvokeError{
			Tool:       name,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp, body),
		}
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return json.RawMessage("{}"), nil
	}
	if json.Valid(body) {
		return body, nil
	}
	// plain text answers are passed on as a JSON string
	b, err := json.Marshal(string(body))
	if err != nil {
		return nil, err
	}
	return b, nil
}

// errorMessage extracts a human readable message from an error answer:
// the "error" or "message" field of a JSON body, the title of an HTML error
// page, or the status text.
func errorMessage(resp *http.Response, body []byte) string {
	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, key := range []string{"error", "message"} {
			switch v := obj[key].(type) {
			case string:
				if v != "" {
					return v
				}
			case map[string]interface{}:
				if msg, ok := v["message"].(string); ok && msg != "" {
					return msg
				}
			}
		}
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err == nil {
			if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
				return title
			}
			if text := strings.Join(strings.Fields(doc.Find("body").Text()), " "); text != "" {
				return truncate(text, 200)
			}
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" && obj == nil && len(text) < 200 {
		return text
	}
	return fmt.Sprintf("tool execution failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
