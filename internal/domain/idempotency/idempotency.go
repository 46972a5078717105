package idempotency

import "time"

// IdempotencyKey is a processed request remembered under a client supplied key
type IdempotencyKey struct {
	Key          string    `json:"key"`
	RequestHash  string    `json:"request_hash"`
	StatusCode   int       `json:"status_code"`
	ContentType  string    `json:"content_type"`
	Location     string    `json:"location,omitempty"`
	ResponseBody []byte    `json:"response_body"`
	ProcessedAt  time.Time `json:"processed_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (k *IdempotencyKey) IsExpired() bool {
	return time.Now().After(k.ExpiresAt)
}

// InProgress reports a reservation whose response has not been stored yet
func (k *IdempotencyKey) InProgress() bool {
	return k.StatusCode == 0
}
