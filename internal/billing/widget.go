package billing

import "strings"

// WidgetOptions is the configuration handed to the hosted checkout widget.
type WidgetOptions struct {
	Key         string        `json:"key"`
	Amount      int64         `json:"amount"`
	Currency    string        `json:"currency"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	OrderID     string        `json:"order_id"`
	Prefill     WidgetPrefill `json:"prefill"`
	Theme       WidgetTheme   `json:"theme"`
}

type WidgetPrefill struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type WidgetTheme struct {
	Color string `json:"color"`
}

// EventKind names a widget outcome reported by the checkout page.
type EventKind string

const (
	EventPaymentSuccess EventKind = "payment.success"
	EventPaymentFailed  EventKind = "payment.failed"
	EventModalDismiss   EventKind = "modal.dismiss"
	EventScriptError    EventKind = "script.error"
)

// Event is what the checkout page posts back once the widget settles.
type Event struct {
	Kind      EventKind   `json:"event"`
	PaymentID string      `json:"razorpay_payment_id,omitempty"`
	OrderID   string      `json:"razorpay_order_id,omitempty"`
	Signature string      `json:"razorpay_signature,omitempty"`
	Error     *EventError `json:"error,omitempty"`
}

// EventError mirrors the widget's failure payload.
type EventError struct {
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// OutcomeError maps a widget event onto the billing error taxonomy. A success
// event yields nil.
func OutcomeError(ev Event) error {
	switch ev.Kind {
	case EventPaymentSuccess:
		return nil
	case EventPaymentFailed:
		return ErrProviderPaymentFailed
	case EventModalDismiss:
		return ErrUserCancelled
	case EventScriptError:
		return ErrProviderLoadFailed
	default:
		return ErrUnknownEvent
	}
}

func (ev Event) failureMessage() string {
	switch ev.Kind {
	case EventModalDismiss:
		return MessageCancelled
	case EventScriptError:
		return MessageProviderLoadFailed
	default:
		if ev.Error != nil && strings.TrimSpace(ev.Error.Description) != "" {
			return ev.Error.Description
		}
		return MessagePaymentFailed
	}
}
