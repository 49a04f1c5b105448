package utim

import "errors"

var (
	ErrQueueFull  = errors.New("utim: queue full")
	ErrQueueEmpty = errors.New("utim: queue empty")

	// Connectivity bring-up.
	ErrConnectivityConfig      = errors.New("utim: invalid connectivity config")
	ErrConnectivityHost        = errors.New("utim: invalid host")
	ErrConnectivityCredentials = errors.New("utim: invalid credentials")
	ErrConnectivityUnknown     = errors.New("utim: unknown connectivity error")
	ErrUhostConnection         = errors.New("utim: uhost connection failed")

	// Publish argument validation.
	ErrExchange = errors.New("utim: malformed publish arguments")

	// Routing.
	ErrManagerDataType = errors.New("utim: unknown data type")

	// Datalink wiring.
	ErrDataLinkWrongArgs  = errors.New("utim: datalink queues missing")
	ErrDataLinkConnection = errors.New("utim: datalink not connected")

	// Processor input.
	ErrProcessItemInput = errors.New("utim: invalid process item input")
)
