package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when the caller holds no valid access token.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrOrderCreationFailed wraps any failure to obtain a payment order.
	ErrOrderCreationFailed = errors.New("order creation failed")
	// ErrProviderLoadFailed is reported when the checkout widget script could not load.
	ErrProviderLoadFailed = errors.New("payment provider failed to load")
	// ErrProviderPaymentFailed is reported when the widget declines the payment.
	ErrProviderPaymentFailed = errors.New("payment failed")
	// ErrUserCancelled is reported when the widget is dismissed before paying.
	ErrUserCancelled = errors.New("payment cancelled")
	// ErrCheckoutInProgress is returned while the identity has a pending attempt.
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	// ErrAttemptNotFound is returned for unknown or foreign attempt IDs.
	ErrAttemptNotFound = errors.New("checkout attempt not found")
	// ErrAttemptResolved is returned when an attempt already had its outcome.
	ErrAttemptResolved = errors.New("checkout attempt already resolved")
	// ErrOrderMismatch is returned when a success event names a different order.
	ErrOrderMismatch = errors.New("payment order does not match attempt")
	// ErrUnknownEvent is returned for widget events the orchestrator does not understand.
	ErrUnknownEvent = errors.New("unknown checkout event")
	// ErrUnknownPlan is returned when a plan ID is not in the catalog.
	ErrUnknownPlan = errors.New("unknown plan")
)

// APIError is a non-2xx response from the credits backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("credits api: status %d: %s", e.Status, e.Message)
}

// Failure messages surfaced to the buyer.
const (
	MessageCancelled          = "Payment cancelled"
	MessageProviderLoadFailed = "Failed to load payment provider"
	MessagePaymentFailed      = "Payment failed"
	MessageOrderFailed        = "Failed to create order"
	MessageNotAuthenticated   = "Not authenticated"
)

// FailureMessage turns an orchestrator error into buyer-facing text.
func FailureMessage(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, ErrUnauthenticated):
		return MessageNotAuthenticated
	case errors.Is(err, ErrUserCancelled):
		return MessageCancelled
	case errors.Is(err, ErrProviderLoadFailed):
		return MessageProviderLoadFailed
	case errors.Is(err, ErrProviderPaymentFailed):
		return MessagePaymentFailed
	case errors.Is(err, ErrCheckoutInProgress):
		return "A checkout is already in progress"
	default:
		return MessageOrderFailed
	}
}
