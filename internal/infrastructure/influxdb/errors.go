package influxdb

import "errors"

var (
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed wraps every error delivered to the SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: write failed")

	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
