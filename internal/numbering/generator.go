// Package numbering issues human-facing document numbers such as SO-… and PAY-….
package numbering

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Document prefixes
const (
	PrefixSalesOrder = "SO"
	PrefixPayment    = "PAY"
)

// Generator returns a number that is unique per prefix across all processes
type Generator interface {
	Next(ctx context.Context, prefix string) (string, error)
}

type snowflakeGenerator struct {
	node *snowflake.Node
}

// NewSnowflakeGenerator issues PREFIX-<snowflake id>. Every process needs its own node id (0-1023).
func NewSnowflakeGenerator(nodeID int64) (Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("invalid snowflake node %d: %w", nodeID, err)
	}
	return &snowflakeGenerator{node: node}, nil
}

func (g *snowflakeGenerator) Next(_ context.Context, prefix string) (string, error) {
	return prefix + "-" + g.node.Generate().String(), nil
}

// Sequencer hands out monotonically increasing integers per key
type Sequencer interface {
	Incr(ctx context.Context, key string) (int64, error)
}

type dailySequenceGenerator struct {
	seq   Sequencer
	clock func() time.Time
}

// NewDailySequenceGenerator issues PREFIX-YYYYMMDD-000001 style numbers from a shared counter
func NewDailySequenceGenerator(seq Sequencer, clock func() time.Time) Generator {
	if clock == nil {
		clock = time.Now
	}
	return &dailySequenceGenerator{seq: seq, clock: clock}
}

func (g *dailySequenceGenerator) Next(ctx context.Context, prefix string) (string, error) {
	day := g.clock().UTC().Format("20060102")
	n, err := g.seq.Incr(ctx, "seq:"+prefix+":"+day)
	if err != nil {
		return "", fmt.Errorf("failed to advance %s sequence: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%s-%06d", prefix, day, n), nil
}
