package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypePipelineEvent carries procurement pipeline notifications.
	TaskTypePipelineEvent = "pipeline:event"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
)

// PipelineEventPayload is the after-commit notification emitted by the
// pipeline: quotation sent/resent, approved/rejected, negotiation opened,
// purchase order created, import milestones.
type PipelineEventPayload struct {
	ID      string         `json:"id"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
	At      time.Time      `json:"at"`
}

// NewPipelineEventTask constructs an Asynq task for a pipeline event.
func NewPipelineEventTask(payload PipelineEventPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePipelineEvent, data), nil
}

// EmailEnqueuer hands follow-up emails back to the queue.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// NewPipelineEventHandler returns the TaskTypePipelineEvent handler. When a
// mailer and inbox are configured, supplier-facing events fan out to a
// transactional email for the procurement team.
func NewPipelineEventHandler(mailer EmailEnqueuer, inbox string) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PipelineEventPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if mailer == nil || inbox == "" {
			return nil
		}
		subject, ok := emailSubject(payload)
		if !ok {
			return nil
		}
		_, err := mailer.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      inbox,
			Subject: subject,
			Body:    fmt.Sprintf("Pipeline event %s at %s.", payload.Event, payload.At.Format(time.RFC3339)),
		})
		return err
	}
}

// emailSubject maps the supplier-facing events to a mail subject. Internal
// bookkeeping events produce no mail.
func emailSubject(p PipelineEventPayload) (string, bool) {
	code, _ := p.Payload["code"].(string)
	switch p.Event {
	case "quotation.sent", "quotation.resent":
		return fmt.Sprintf("RFQ %s is open for supplier offers", code), true
	case "quotation.approved":
		return fmt.Sprintf("RFQ %s approved", code), true
	case "purchase_order.created":
		return fmt.Sprintf("Purchase order %s issued", code), true
	}
	return "", false
}

// HandlePipelineEventTask processes TaskTypePipelineEvent tasks without any
// email fan-out. Workers with a configured mailer register
// NewPipelineEventHandler instead.
func HandlePipelineEventTask(ctx context.Context, t *asynq.Task) error {
	return NewPipelineEventHandler(nil, "")(ctx, t)
}

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: integrate with SMTP relay.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}
