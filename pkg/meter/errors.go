package meter

import (
	"errors"
	"fmt"

	"github.com/itohio/goemon/pkg/acquisition"
	"github.com/itohio/goemon/pkg/config"
)

var (
	// ErrOverrun means the consumer fell behind the producer and a buffer
	// half may have been overwritten while it was read.
	ErrOverrun = errors.New("overrun")

	// ErrConfig is the configuration error class shared with pkg/config.
	ErrConfig = config.ErrConfig
)

// OverrunError describes one detected overrun.
type OverrunError struct {
	Half   acquisition.Half
	Reason string
}

func (e *OverrunError) Error() string {
	return fmt.Sprintf("overrun on %s half: %s", e.Half, e.Reason)
}

func (e *OverrunError) Unwrap() error {
	return ErrOverrun
}
