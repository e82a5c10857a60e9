package dto

// NotificationResponse is written back to PayPal for every accepted or
// rejected notification.
type NotificationResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
