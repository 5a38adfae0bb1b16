package events

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/shepherd/pkg/helpers"
)

// TopicToolAudit receives one ToolAuditRecord per executed tool call.
const TopicToolAudit = "tool-audit"

// ToolAuditRecord describes one tool execution, including the (masked)
// arguments and the payload returned to the model.
type ToolAuditRecord struct {
	ID         string          `json:"id"`
	RunID      string          `json:"run_id,omitempty"`
	RequestID  string          `json:"request_id"`
	Tool       string          `json:"tool"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	Success    bool            `json:"success"`
	Error      string          `json:"error,omitempty"`
	DurationMS int64           `json:"duration_ms"`
	Retries    int             `json:"retries,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// AuditPublisher publishes tool audit records to a watermill topic.
type AuditPublisher struct {
	publisher message.Publisher
	topic     string
}

func NewAuditPublisher(publisher message.Publisher) *AuditPublisher {
	return &AuditPublisher{
		publisher: helpers.CorrelationPublisherDecorator{Publisher: publisher},
		topic:     TopicToolAudit,
	}
}

func (a *AuditPublisher) PublishToolAudit(ctx context.Context, record ToolAuditRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "could not marshal audit record")
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetadataRunID, record.RunID)
	msg.Metadata.Set(MetadataToolID, record.RequestID)
	return a.publisher.Publish(a.topic, msg)
}

// AuditHandler consumes tool audit records. Every record is logged; when a
// URL is configured it is also forwarded to the church application's audit
// log endpoint.
type AuditHandler struct {
	client *http.Client
	url    string
}

type AuditHandlerOption func(*AuditHandler)

func WithAuditURL(url string) AuditHandlerOption {
	return func(h *AuditHandler) {
		h.url = url
	}
}

func WithAuditHTTPClient(client *http.Client) AuditHandlerOption {
	return func(h *AuditHandler) {
		h.client = client
	}
}

func NewAuditHandler(options ...AuditHandlerOption) *AuditHandler {
	h := &AuditHandler{
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range options {
		o(h)
	}
	return h
}

// auditLogEntry is the body accepted by the application's audit log endpoint.
type auditLogEntry struct {
	Action    string                 `json:"action"`
	Entity    string                 `json:"entity"`
	EntityID  string                 `json:"entityId"`
	Details   map[string]interface{} `json:"details"`
	IPAddress string                 `json:"ipAddress"`
}

// Handle acks the message before it logs or forwards the record; the
// publishing tool call blocks until the ack.
func (h *AuditHandler) Handle(msg *message.Message) error {
	msg.Ack()

	var record ToolAuditRecord
	if err := json.Unmarshal(msg.Payload, &record); err != nil {
		log.Warn().Err(err).Str("message_id", msg.UUID).Msg("audit: could not decode record")
		return nil
	}

	log.Info().
		Str("audit_id", record.ID).
		Str("run_id", record.RunID).
		Str("tool", record.Tool).
		Str("request_id", record.RequestID).
		Bool("success", record.Success).
		Str("error", record.Error).
		Int64("duration_ms", record.DurationMS).
		Str("correlation_id", msg.Metadata.Get(helpers.CorrelationIDMetadataKey)).
		Msg("audit: tool call")

	if h.url == "" {
		return nil
	}

	// the message context is cancelled once acked, the client timeout bounds the call
	if err := h.forward(context.Background(), record); err != nil {
		log.Warn().Err(err).Str("url", h.url).Str("tool", record.Tool).Msg("audit: could not forward record")
	}
	return nil
}

func (h *AuditHandler) forward(ctx context.Context, record ToolAuditRecord) error {
	entry := auditLogEntry{
		Action:   "tool_call_" + record.Tool,
		Entity:   "tool",
		EntityID: record.Tool,
		Details: map[string]interface{}{
			"input":   record.Arguments,
			"output":  record.Output,
			"success": record.Success,
			"error":   record.Error,
		},
		IPAddress: "server",
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return errors.Errorf("audit endpoint returned %s", resp.Status)
	}
	return nil
}
