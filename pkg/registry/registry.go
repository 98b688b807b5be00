// Package registry holds the node factories known to the executor and validates
// node configuration against each factory's JSON schema before creation.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrUnknownNodeType is returned when no factory is registered for a type.
	ErrUnknownNodeType = errors.New("node type not registered")

	// ErrInvalidConfig is returned when a node config does not satisfy the schema.
	ErrInvalidConfig = errors.New("invalid node config")
)

type entry struct {
	factory protocol.NodeFactory
	schema  *gojsonschema.Schema
}

type Registry struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	entries map[models.NodeType]entry
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:  log.With("module", "registry"),
		entries: make(map[models.NodeType]entry),
	}
}

// RegisterNode adds or replaces a factory. A schema that fails to compile is
// logged and the type is registered without validation.
func (r *Registry) RegisterNode(factory protocol.NodeFactory) {
	var schema *gojsonschema.Schema

	if definition := factory.Schema(); len(definition) > 0 {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(definition))
		if err != nil {
			r.logger.Error("invalid node schema, validation disabled", "nodeType", factory.ID(), "error", err)
		} else {
			schema = compiled
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[factory.ID()] = entry{factory: factory, schema: schema}
}

// Has reports whether a factory is registered for the node type.
func (r *Registry) Has(nodeType models.NodeType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.entries[nodeType]

	return ok
}

// GetAvailableNodes returns all registered factories ordered by type.
func (r *Registry) GetAvailableNodes() []protocol.NodeFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factories := make([]protocol.NodeFactory, 0, len(r.entries))
	for _, e := range r.entries {
		factories = append(factories, e.factory)
	}

	sort.Slice(factories, func(i, j int) bool {
		return factories[i].ID() < factories[j].ID()
	})

	return factories
}

// CreateNode validates the config and builds a node instance.
func (r *Registry) CreateNode(ctx context.Context, nodeType models.NodeType, id string, config map[string]any) (protocol.Node, error) {
	r.mu.RLock()
	e, ok := r.entries[nodeType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNodeType, nodeType)
	}

	if config == nil {
		config = map[string]any{}
	}

	if e.schema != nil {
		err := validate(e.schema, config)
		if err != nil {
			return nil, fmt.Errorf("node %s (%s): %w", id, nodeType, err)
		}
	}

	node, err := e.factory.Create(ctx, id, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create node %s (%s): %w", id, nodeType, err)
	}

	return node, nil
}

func validate(schema *gojsonschema.Schema, config map[string]any) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(config))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			messages = append(messages, resultErr.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(messages, "; "))
	}

	return nil
}
