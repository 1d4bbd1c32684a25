package dropper

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/instabilitylab/netshaker/pkg/iptables"
)

// Test_NFQueueRules checks that the queue returns the correct rules for a given config.
func Test_NFQueueRules(t *testing.T) {
	t.Parallel()

	q := NFQueue{
		NFQConfig: NFQConfig{
			QueueID:  1,
			DropMark: 2,
		},
		Config: Config{
			Interface: "eth0",
		},
	}

	actual := q.rules()
	expected := []iptables.Rule{
		{
			Table: "filter", Chain: "INPUT",
			Args: "-i eth0 -p tcp -m mark --mark 2 -j DROP",
		},
		{
			Table: "filter", Chain: "INPUT",
			Args: "-i eth0 -p tcp -j NFQUEUE --queue-num 1 --queue-bypass",
		},
		{
			Table: "filter", Chain: "OUTPUT",
			Args: "-o eth0 -p tcp -m mark --mark 2 -j DROP",
		},
		{
			Table: "filter", Chain: "OUTPUT",
			Args: "-o eth0 -p tcp -j NFQUEUE --queue-num 1 --queue-bypass",
		},
	}

	if diff := cmp.Diff(actual, expected); diff != "" {
		t.Fatalf("Generated rules do not match expected:\n%s", diff)
	}
}

func Test_RandomNFQConfigIsNeverZero(t *testing.T) {
	t.Parallel()

	for i := 0; i < 1000; i++ {
		config := RandomNFQConfig()
		if config.QueueID == 0 {
			t.Fatalf("queue ID must not be zero")
		}
		if config.DropMark == 0 {
			t.Fatalf("drop mark must not be zero")
		}
	}
}
