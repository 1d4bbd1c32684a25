package dropper

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/florianl/go-nfqueue"
	"github.com/sirupsen/logrus"

	"github.com/instabilitylab/netshaker/pkg/iptables"
	"github.com/instabilitylab/netshaker/pkg/runtime"
)

// NFQConfig contains netfilter queue IDs that iptables rules and the packet handler use to communicate.
type NFQConfig struct {
	// QueueID is an arbitrary integer used to identify a queue where a handler listens and rules redirect intercepted
	// packets.
	QueueID uint16
	// DropMark is an arbitrary integer which the handler uses to mark packets that need to be dropped.
	DropMark uint32
}

// RandomNFQConfig returns a NFQConfig with two random integers to be used as queue ID and drop mark.
// To ensure the numbers are not zero they are ORed with 0b1, as adding 1 can actually result in the number overflowing
// and becoming zero.
func RandomNFQConfig() NFQConfig {
	return NFQConfig{
		QueueID:  uint16(rand.Int31()) | 0b1,
		DropMark: uint32(rand.Int31()) | 0b1,
	}
}

// Queue is the interface implemented by objects that can write packets to a channel.
type Queue interface {
	// Start starts listening to packets, blocking until an error occurs or the context is cancelled.
	Start(ctx context.Context, packets chan<- Packet) error
}

// Packet is a packet received by a Queue. It can describe itself and be accepted or rejected.
type Packet interface {
	// Bytes returns the raw bytes that make the packet.
	Bytes() []byte
	// Accept marks the packet to be accepted.
	Accept()
	// Reject marks the packet to be rejected.
	Reject()
}

// FakeQueue is a fake implementation of Queue. It stalls until the context is cancelled, never sending any packet.
type FakeQueue struct{}

// Start implements the Queue interface.
func (f FakeQueue) Start(ctx context.Context, _ chan<- Packet) error {
	<-ctx.Done()
	return ctx.Err()
}

// NFQueue implements the Queue interface using netfilter's nfqueue mechanism, reading packets sent to userspace by
// netfilter. NFQueue will process TCP packets traversing the configured interface in either direction.
// Accept()ed packets are immediately forwarded to the ACCEPT chain and do not traverse subsequent iptables rules.
// Reject()ed packets are requeued with the mark specified in NFQConfig.DropMark, and a companion rule silently
// discards marked packets before they reach the queue rule again.
type NFQueue struct {
	Executor  runtime.Executor
	NFQConfig NFQConfig
	Config    Config
}

// Start sets up a nfqueue handler and starts handling packets sent to it. It blocks until an error occurs, or until
// the supplied context is canceled. The interception rules are removed before returning.
func (q NFQueue) Start(ctx context.Context, packetChan chan<- Packet) error {
	ipt := iptables.New(q.Executor)
	defer func() {
		// rule removal must survive the cancellation that ends the loss
		_ = ipt.Remove(context.WithoutCancel(ctx))
	}()

	for _, r := range q.rules() {
		err := ipt.Add(ctx, r)
		if err != nil {
			return err
		}
	}

	queue, err := nfqueue.Open(&nfqueue.Config{
		NfQueue:  q.NFQConfig.QueueID,
		Copymode: nfqueue.NfQnlCopyPacket, // Copymode must be set to NfQnlCopyPacket to be able to read the packet.

		// TODO: Refine this magic value. Larger values will cause nfqueue to error such as:
		// netlink receive: recvmsg: no buffer space available
		// Likely this means that we're trying to use too much memory for this queue.
		MaxQueueLen:  32,
		MaxPacketLen: 0xffff, // TODO: This can probably be smaller for IPv4 on top of ethernet (1500 mtu).
	})
	if err != nil {
		return fmt.Errorf("creating nfqueue: %w", err)
	}

	//nolint:errcheck
	defer queue.Close()

	// nfqueue processes packets in order: Until a verdict is emitted for a packet, the callback function will not
	// be invoked again.
	err = queue.RegisterWithErrorFunc(ctx,
		func(packet nfqueue.Attribute) int {
			packetChan <- NFPacket{
				packet:   packet,
				queue:    queue,
				dropMark: q.NFQConfig.DropMark,
			}
			return 0
		},
		func(err error) int {
			logrus.WithError(err).Error("nfqueue handler error")
			return 0
		},
	)
	if err != nil {
		return fmt.Errorf("registering nfqueue handlers: %w", err)
	}

	<-ctx.Done()
	return ctx.Err()
}

// rules returns the iptables rules that need to be set in place for the loss to work.
// These rules are safe by default, meaning that if the handler is offline and rules are left over, no packet will be
// dropped: --queue-bypass instructs netfilter to ACCEPT packets if nothing is listening on the queue, and the
// mark-matching DROP rules only ever see packets the handler marked itself.
func (q NFQueue) rules() []iptables.Rule {
	return []iptables.Rule{
		{
			// Discard inbound packets the handler marked for dropping. Marked packets are requeued and thus
			// traverse this rule again even if they didn't the first time they arrived, when they weren't marked.
			Table: "filter", Chain: "INPUT", Args: fmt.Sprintf(
				"-i %s -p tcp -m mark --mark %d -j DROP",
				q.Config.Interface, q.NFQConfig.DropMark,
			),
		},
		{
			// Send other (non-marked) inbound traffic to the queue, so the handler can make a decision over
			// whether to drop it or not.
			Table: "filter", Chain: "INPUT", Args: fmt.Sprintf(
				"-i %s -p tcp -j NFQUEUE --queue-num %d --queue-bypass",
				q.Config.Interface, q.NFQConfig.QueueID,
			),
		},
		{
			// Same pair for outbound traffic, so both directions of an affected connection go dark.
			Table: "filter", Chain: "OUTPUT", Args: fmt.Sprintf(
				"-o %s -p tcp -m mark --mark %d -j DROP",
				q.Config.Interface, q.NFQConfig.DropMark,
			),
		},
		{
			Table: "filter", Chain: "OUTPUT", Args: fmt.Sprintf(
				"-o %s -p tcp -j NFQUEUE --queue-num %d --queue-bypass",
				q.Config.Interface, q.NFQConfig.QueueID,
			),
		},
	}
}

// NFPacket wraps nfqueue.Attribute so it implements the Packet interface.
type NFPacket struct {
	packet   nfqueue.Attribute
	queue    *nfqueue.Nfqueue
	dropMark uint32
}

// Bytes returns the payload of the packet.
func (n NFPacket) Bytes() []byte {
	return *n.packet.Payload
}

// Accept accepts the packet.
func (n NFPacket) Accept() {
	_ = n.queue.SetVerdict(*n.packet.PacketID, nfqueue.NfAccept)
}

// Reject requeues the packet and sets the configured drop mark on it.
func (n NFPacket) Reject() {
	_ = n.queue.SetVerdictWithMark(*n.packet.PacketID, nfqueue.NfRepeat, int(n.dropMark))
}
