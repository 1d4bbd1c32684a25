// Package iptables manages netfilter rules by executing the `iptables` binary.
package iptables

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/instabilitylab/netshaker/pkg/runtime"
)

// Iptables adds and removes iptables rules by executing the `iptables` binary.
// Add()ed rules are remembered and are automatically removed when Remove is called.
type Iptables struct {
	// executor is the runtime.Executor used to run the iptables binary.
	executor runtime.Executor

	rules []Rule
}

// New returns a new Iptables ready to use.
func New(executor runtime.Executor) *Iptables {
	return &Iptables{
		executor: executor,
	}
}

// Add adds a rule. Added rule will be remembered and removed later when Remove is called.
func (i *Iptables) Add(ctx context.Context, r Rule) error {
	err := i.exec(ctx, r.add())
	if err != nil {
		return err
	}

	i.rules = append(i.rules, r)

	return nil
}

// Remove removes all added rules. If an error occurs, Remove continues to try and remove remaining rules.
func (i *Iptables) Remove(ctx context.Context) error {
	var errs []error

	var remaining []Rule
	for _, rule := range i.rules {
		err := i.exec(ctx, rule.remove())
		if err != nil {
			errs = append(errs, err)
			remaining = append(remaining, rule)
		}
	}

	i.rules = remaining

	return errors.Join(errs...)
}

// Check tells whether the rule is currently installed in the kernel,
// regardless of who installed it.
func (i *Iptables) Check(ctx context.Context, r Rule) (bool, error) {
	out, err := i.executor.Exec(ctx, "iptables", strings.Split(r.check(), " ")...)
	if err == nil {
		return true, nil
	}

	if isNoMatch(out) {
		return false, nil
	}

	return false, fmt.Errorf("%w: %q", err, out)
}

// Delete removes a single rule, including rules installed by other processes.
// It fails if the rule is not present.
func (i *Iptables) Delete(ctx context.Context, r Rule) error {
	return i.exec(ctx, r.remove())
}

// List returns the rule specifications currently installed in the given chain,
// as printed by `iptables -S`, excluding the chain policy line.
func (i *Iptables) List(ctx context.Context, table, chain string) ([]string, error) {
	out, err := i.executor.Exec(ctx, "iptables", "-t", table, "-S", chain)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, out)
	}

	var specs []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "-A ") {
			specs = append(specs, line)
		}
	}

	return specs, nil
}

func (i *Iptables) exec(ctx context.Context, args string) error {
	out, err := i.executor.Exec(ctx, "iptables", strings.Split(args, " ")...)
	if err != nil {
		return fmt.Errorf("%w: %q", err, out)
	}

	return nil
}

// isNoMatch detects the iptables diagnostics for a rule that is not installed
func isNoMatch(out []byte) bool {
	return bytes.Contains(out, []byte("does a matching rule exist")) ||
		bytes.Contains(out, []byte("No chain/target/match by that name"))
}

// Rule is a netfilter/iptables rule.
type Rule struct {
	// Table is the netfilter table to which this rule belongs. It is usually "filter".
	Table string
	// Chain is the netfilter chain to which this rule belongs. Usual values are "INPUT", "OUTPUT".
	Chain string
	// Args is the rest of the netfilter rule.
	Args string
}

func (r Rule) add() string {
	return fmt.Sprintf("-t %s -A %s %s", r.Table, r.Chain, r.Args)
}

func (r Rule) remove() string {
	return fmt.Sprintf("-t %s -D %s %s", r.Table, r.Chain, r.Args)
}

func (r Rule) check() string {
	return fmt.Sprintf("-t %s -C %s %s", r.Table, r.Chain, r.Args)
}

// ParseRuleSpec converts a rule specification line printed by `iptables -S`,
// such as "-A OUTPUT -o eth0 -j DROP", back into a Rule in the given table.
func ParseRuleSpec(table, spec string) (Rule, bool) {
	fields := strings.Fields(spec)
	if len(fields) < 3 || fields[0] != "-A" {
		return Rule{}, false
	}

	return Rule{
		Table: table,
		Chain: fields[1],
		Args:  strings.Join(fields[2:], " "),
	}, true
}
