package domain

// Event kinds emitted by the FastPay gateway. Kinds not listed here are
// acknowledged and ignored so new gateway event types never cause retries.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.failed"
)

// Metadata keys set on every payment intent at creation time. They are the
// only linkage a webhook event has back to an order.
const (
	MetadataOrderID     = "order_id"
	MetadataOrderNumber = "order_number"
)

// WebhookEvent is the decoded body of a gateway notification. Delivery is
// at-least-once: the same event may arrive any number of times, from
// multiple gateway workers, in any order.
type WebhookEvent struct {
	ID      string         `json:"id"`
	Kind    string         `json:"kind"`
	Attempt WebhookAttempt `json:"attempt"`
}

// WebhookAttempt describes the payment attempt the event refers to.
type WebhookAttempt struct {
	ID       string            `json:"id"`
	Outcome  string            `json:"outcome"`
	Metadata map[string]string `json:"metadata"`
}
