package mqtt

import "errors"

// Sentinel errors. Wrapped errors carry the broker's reason; match with errors.Is.
var (
	ErrNotConnected      = errors.New("mqtt: client not connected")
	ErrConnectionFailed  = errors.New("mqtt: connection failed")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned for a QoS above 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	ErrInvalidTopic  = errors.New("mqtt: topic cannot be empty")
	ErrWildcardTopic = errors.New("mqtt: publish topic cannot contain wildcards")
)
