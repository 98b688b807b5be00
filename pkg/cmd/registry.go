// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/dukex/botflow/pkg/nodes/condition"
	"github.com/dukex/botflow/pkg/nodes/delay"
	"github.com/dukex/botflow/pkg/nodes/message"
	"github.com/dukex/botflow/pkg/registry"
)

func registerNativeNodes(reg *registry.Registry, messageDeps message.Dependencies) {
	reg.RegisterNode(message.NewFactory(messageDeps))
	reg.RegisterNode(delay.NewFactory())
	reg.RegisterNode(condition.NewFactory())
}

// NewRegistry returns a node registry with the built-in action and condition nodes.
func NewRegistry(log *slog.Logger, messageDeps message.Dependencies) *registry.Registry {
	reg := registry.NewRegistry(log)

	registerNativeNodes(reg, messageDeps)

	return reg
}
