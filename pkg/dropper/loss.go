package dropper

import (
	"context"
	"errors"
	"fmt"
)

// Config holds the parameters that describe a connection loss.
type Config struct {
	// Interface is the network interface whose TCP traffic is intercepted.
	Interface string
	// Rate is the share, in the [0, 1] range, of connections that lose all their packets.
	Rate float64
}

// ErrInvalidRate is returned when the loss rate is outside the [0, 1] range.
var ErrInvalidRate = errors.New("loss rate must be in the range [0, 1]")

// Loss drops a fixed share of the TCP connections traversing an interface.
type Loss struct {
	Queue  Queue
	Config Config
}

// Run processes intercepted packets until the context is cancelled.
// Cancellation is the normal way to end the loss and is not reported as an error.
func (l Loss) Run(ctx context.Context) error {
	if l.Config.Rate < 0 || l.Config.Rate > 1 {
		return ErrInvalidRate
	}

	packets := make(chan Packet, 2)
	defer close(packets)

	dropper := ConnectionDropper{
		Rate: l.Config.Rate,
	}

	go func() {
		for p := range packets {
			if dropper.Drop(p.Bytes()) {
				p.Reject()
				continue
			}

			p.Accept()
		}
	}()

	err := l.Queue.Start(ctx, packets)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("packet handler: %w", err)
	}

	return nil
}
