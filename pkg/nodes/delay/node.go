// Package delay provides the action that pauses a single traversal.
package delay

import (
	"context"
	"time"

	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/nodes"
)

// Config is the decoded action-delay config. Delay is in milliseconds.
type Config struct {
	Delay int64 `mapstructure:"delay" validate:"gte=0"`
}

// Node waits for the configured duration. Only the calling traversal is suspended.
type Node struct {
	id       string
	duration time.Duration
}

// NewNode creates a delay node from its raw config.
func NewNode(id string, config map[string]any) (*Node, error) {
	var cfg Config

	err := nodes.DecodeConfig(config, &cfg)
	if err != nil {
		return nil, err
	}

	return &Node{id: id, duration: time.Duration(cfg.Delay) * time.Millisecond}, nil
}

func (n *Node) ID() string {
	return n.id
}

func (n *Node) Type() models.NodeType {
	return models.NodeTypeActionDelay
}

// Duration returns the configured wait.
func (n *Node) Duration() time.Duration {
	return n.duration
}

// Execute blocks until the delay elapses or ctx is done.
func (n *Node) Execute(ctx context.Context, _ *models.ExecutionContext) error {
	if n.duration <= 0 {
		return nil
	}

	timer := time.NewTimer(n.duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
