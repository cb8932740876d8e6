package mysensors

import "errors"

// Domain errors for the MySensors gateway proxy.
var (
	// ErrMalformed is returned when a line does not split into exactly six
	// fields or a numeric field is not a decimal integer.
	ErrMalformed = errors.New("mysensors: malformed message")

	// ErrInterfaceNotFound is returned when the named network interface
	// does not exist.
	ErrInterfaceNotFound = errors.New("mysensors: interface not found")

	// ErrNoIPv4 is returned when the interface has no IPv4 address.
	ErrNoIPv4 = errors.New("mysensors: interface has no IPv4 address")

	// ErrNoBroadcastSupport is returned when dynamic discovery is enabled
	// on an interface without a broadcast address.
	ErrNoBroadcastSupport = errors.New("mysensors: interface does not support broadcast")

	// ErrBindFailed is returned when a UDP socket cannot be created or bound.
	ErrBindFailed = errors.New("mysensors: bind failed")

	// ErrUnexpectedDiscoveryType is returned when a broadcast socket receives
	// anything other than an Internal/Controller Discovery message.
	ErrUnexpectedDiscoveryType = errors.New("mysensors: unexpected message on discovery socket")

	// ErrNoBroadcastMapping is returned when a broadcast address has no
	// paired unicast socket. The event loop treats it as fatal.
	ErrNoBroadcastMapping = errors.New("mysensors: no unicast socket for broadcast address")

	// ErrLoopStopped is returned by Submit once the event loop has exited.
	ErrLoopStopped = errors.New("mysensors: event loop stopped")
)

// IsConfigError reports whether err is one of the startup configuration
// errors produced while binding an interface.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInterfaceNotFound) ||
		errors.Is(err, ErrNoIPv4) ||
		errors.Is(err, ErrNoBroadcastSupport) ||
		errors.Is(err, ErrBindFailed)
}
