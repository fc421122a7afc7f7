// Package registry maps node kinds to their factories and validates node
// configuration against each factory's JSON schema before instantiation.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/protocol"
)

// Registry holds the node factories available to the engine. The kind set
// is closed: factories are registered at startup, never at runtime.
type Registry struct {
	logger    *slog.Logger
	factories map[models.NodeKind]protocol.NodeFactory
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "registry"),
		factories: make(map[models.NodeKind]protocol.NodeFactory),
	}
}

// Register adds a node factory, replacing any previous factory for the
// same kind.
func (r *Registry) Register(factory protocol.NodeFactory) {
	r.factories[factory.Kind()] = factory
}

// Factory returns the factory for a node kind.
func (r *Registry) Factory(kind models.NodeKind) (protocol.NodeFactory, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("node kind '%s' not registered", kind)
	}

	return factory, nil
}

// Kinds returns the registered node kinds.
func (r *Registry) Kinds() []models.NodeKind {
	kinds := make([]models.NodeKind, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}

	return kinds
}

// CreateNode validates the node's configuration against the factory's
// schema and builds the node instance.
func (r *Registry) CreateNode(ctx context.Context, node models.Node) (protocol.Node, error) {
	factory, err := r.Factory(node.Kind)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(factory.Schema(), node.Config); err != nil {
		return nil, fmt.Errorf("invalid configuration for node %s (%s): %w", node.ID, node.Kind, err)
	}

	instance, err := factory.Create(ctx, node.ID, node.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to create node %s (%s): %w", node.ID, node.Kind, err)
	}

	return instance, nil
}

// validateConfig checks a configuration map against a JSON schema.
func validateConfig(schema map[string]any, config map[string]any) error {
	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	configLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, configLoader)
	if err != nil {
		return fmt.Errorf("schema validation errored: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			details = append(details, resultErr.String())
		}

		return fmt.Errorf("configuration does not match schema: %s", strings.Join(details, "; "))
	}

	return nil
}
