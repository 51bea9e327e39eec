package relay

import "fmt"

// DeliveryError reports that a downstream publish failed or was refused. It
// drives the admission controller and the retry buffer under the breaker
// strategy.
type DeliveryError struct {
	Topic string
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.Topic, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
