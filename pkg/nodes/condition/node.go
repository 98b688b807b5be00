// Package condition provides the condition-if node.
//
// A node without a predicate evaluates to true. With an expression, the
// template is rendered against the execution context and coerced to a boolean.
// Otherwise a context field is compared using the configured operator.
package condition

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/nodes"
	"github.com/dukex/botflow/pkg/template"
)

// Operators supported by field comparisons.
const (
	OperatorEquals     = "equals"
	OperatorNotEquals  = "notEquals"
	OperatorContains   = "contains"
	OperatorStartsWith = "startsWith"
	OperatorRegex      = "regex"
	OperatorExists     = "exists"
)

// Config is the decoded condition-if config.
type Config struct {
	Expression    string `mapstructure:"expression"`
	Field         string `mapstructure:"field"`
	Operator      string `mapstructure:"operator"      validate:"omitempty,oneof=equals notEquals contains startsWith regex exists"`
	Value         string `mapstructure:"value"`
	CaseSensitive bool   `mapstructure:"caseSensitive"`
}

// Node evaluates one predicate.
type Node struct {
	id     string
	config Config
}

// NewNode creates a condition node from its raw config.
func NewNode(id string, config map[string]any) (*Node, error) {
	var cfg Config

	err := nodes.DecodeConfig(config, &cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Field != "" && cfg.Operator == "" {
		cfg.Operator = OperatorEquals
	}

	return &Node{id: id, config: cfg}, nil
}

func (n *Node) ID() string {
	return n.id
}

func (n *Node) Type() models.NodeType {
	return models.NodeTypeConditionIf
}

// Evaluate returns the branch to follow. Errors come with a false result.
func (n *Node) Evaluate(_ context.Context, executionCtx *models.ExecutionContext) (bool, error) {
	switch {
	case n.config.Expression != "":
		value, err := template.Render(n.config.Expression, executionCtx.TemplateData())
		if err != nil {
			return false, fmt.Errorf("condition %s: %w", n.id, err)
		}

		return template.Truthy(value), nil
	case n.config.Field != "":
		return n.compare(executionCtx)
	default:
		return true, nil
	}
}

func (n *Node) compare(executionCtx *models.ExecutionContext) (bool, error) {
	actual, found := Lookup(executionCtx, n.config.Field)

	if n.config.Operator == OperatorExists {
		return found && actual != "", nil
	}

	expected := n.config.Value

	if n.config.Operator == OperatorRegex {
		re, err := regexp.Compile(expected)
		if err != nil {
			return false, fmt.Errorf("condition %s: invalid regex %q: %w", n.id, expected, err)
		}

		return re.MatchString(actual), nil
	}

	if !n.config.CaseSensitive {
		actual = strings.ToLower(actual)
		expected = strings.ToLower(expected)
	}

	switch n.config.Operator {
	case OperatorNotEquals:
		return actual != expected, nil
	case OperatorContains:
		return strings.Contains(actual, expected), nil
	case OperatorStartsWith:
		return strings.HasPrefix(actual, expected), nil
	default:
		return actual == expected, nil
	}
}

// Lookup reads a named field from the execution context as text.
func Lookup(executionCtx *models.ExecutionContext, field string) (string, bool) {
	switch field {
	case "text":
		return executionCtx.Text, true
	case "callbackData":
		return executionCtx.CallbackData, true
	case "eventType":
		return string(executionCtx.EventType), true
	}

	if name, ok := strings.CutPrefix(field, "variables."); ok {
		value, exists := executionCtx.Variables[name]
		if !exists || value == nil {
			return "", false
		}

		return fmt.Sprint(value), true
	}

	if name, ok := strings.CutPrefix(field, "user."); ok && executionCtx.User != nil {
		user := executionCtx.User

		switch name {
		case "username":
			return user.Username, true
		case "firstName":
			return user.FirstName, true
		case "lastName":
			return user.LastName, true
		case "languageCode":
			return user.LanguageCode, true
		case "startParam":
			return user.StartParam, true
		}
	}

	if name, ok := strings.CutPrefix(field, "conversation."); ok && executionCtx.Conversation != nil {
		switch name {
		case "kind":
			return string(executionCtx.Conversation.Kind), true
		case "title":
			return executionCtx.Conversation.Title, true
		}
	}

	return "", false
}
