// Package notify defines the fire-and-forget notification hook invoked after a
// state transition has committed. Delivery failure never rolls back the
// transition; it is logged and dropped.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/jobs"
)

// Pipeline event names published by the services.
const (
	EventQuotationSent      = "quotation.sent"
	EventQuotationResent    = "quotation.resent"
	EventQuotationApproved  = "quotation.approved"
	EventQuotationRejected  = "quotation.rejected"
	EventNegotiationOpened  = "quotation.negotiation_opened"
	EventQuotationCancelled = "quotation.cancelled"
	EventPurchaseOrderMade  = "purchase_order.created"
	EventImportMilestone    = "import_process.milestone"
)

// Notifier delivers pipeline events to external collaborators.
type Notifier interface {
	Notify(ctx context.Context, event string, payload map[string]any)
}

// AsynqNotifier enqueues events for the background worker.
type AsynqNotifier struct {
	client *jobs.Client
	logger *slog.Logger
}

// NewAsynqNotifier constructs the notifier.
func NewAsynqNotifier(client *jobs.Client, logger *slog.Logger) *AsynqNotifier {
	return &AsynqNotifier{client: client, logger: logger}
}

// Notify enqueues the event. Errors are logged, never returned: the caller has
// already committed its transition.
func (n *AsynqNotifier) Notify(ctx context.Context, event string, payload map[string]any) {
	if n == nil || n.client == nil {
		return
	}
	_, err := n.client.EnqueuePipelineEvent(ctx, jobs.PipelineEventPayload{
		ID:      uuid.NewString(),
		Event:   event,
		Payload: payload,
		At:      time.Now(),
	})
	if err != nil && n.logger != nil {
		n.logger.Warn("enqueue pipeline event", slog.String("event", event), slog.Any("error", err))
	}
}

// Nop discards every event. Used where notification wiring is absent.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, string, map[string]any) {}
