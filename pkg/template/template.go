// Package template renders Go text templates against an execution context.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"text/template/parse"
	"time"

	"github.com/dukex/botflow/pkg/models"
)

var funcs = template.FuncMap{
	"now": func() string {
		return time.Now().UTC().Format(time.RFC3339)
	},
	"rand": func(max int) int {
		if max <= 0 {
			return 0
		}

		num := make([]byte, 1)

		_, err := rand.Read(num)
		if err != nil {
			return 0
		}

		return int(num[0]) % max
	},
	"lower":     strings.ToLower,
	"upper":     strings.ToUpper,
	"trim":      strings.TrimSpace,
	"hasPrefix": strings.HasPrefix,
	"contains":  strings.Contains,
	"default": func(fallback, value any) any {
		if value == nil || value == "" {
			return fallback
		}

		return value
	},
	emptyFunc: func(value any) any {
		if value == nil {
			return ""
		}

		return value
	},
}

// emptyFunc is appended to every printing action so missing values render as
// nothing instead of "<no value>".
const emptyFunc = "orEmpty"

func blankMissing(tree *parse.Tree, node parse.Node) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}

		for _, child := range n.Nodes {
			blankMissing(tree, child)
		}
	case *parse.ActionNode:
		if len(n.Pipe.Decl) > 0 {
			return
		}

		n.Pipe.Cmds = append(n.Pipe.Cmds, &parse.CommandNode{
			NodeType: parse.NodeCommand,
			Pos:      n.Pos,
			Args:     []parse.Node{parse.NewIdentifier(emptyFunc).SetTree(tree).SetPos(n.Pos)},
		})
	case *parse.IfNode:
		blankMissing(tree, n.List)
		blankMissing(tree, n.ElseList)
	case *parse.RangeNode:
		blankMissing(tree, n.List)
		blankMissing(tree, n.ElseList)
	case *parse.WithNode:
		blankMissing(tree, n.List)
		blankMissing(tree, n.ElseList)
	}
}

// NeedsTemplating reports whether input contains template actions.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

// RenderString renders the template to text. Missing keys render as empty.
func RenderString(templateStr string, data any) (string, error) {
	tmpl, err := template.New("botflow").Funcs(funcs).Option("missingkey=zero").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	for _, t := range tmpl.Templates() {
		if t.Tree != nil {
			blankMissing(t.Tree, t.Tree.Root)
		}
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return buf.String(), nil
}

// Render renders the template and coerces the output to JSON, a number or a
// boolean when it parses as one; otherwise the trimmed string is returned.
func Render(templateStr string, data any) (any, error) {
	rendered, err := RenderString(templateStr, data)
	if err != nil {
		return nil, err
	}

	result := strings.TrimSpace(rendered)

	// Try to parse as JSON if it looks like JSON
	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err != nil {
			return nil, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
		}

		return jsonResult, nil
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// RenderWithContext renders text for an outbound message. Input without
// template actions is returned unchanged.
func RenderWithContext(input string, executionCtx *models.ExecutionContext) (string, error) {
	if !NeedsTemplating(input) {
		return input, nil
	}

	return RenderString(input, executionCtx.TemplateData())
}

// Truthy coerces a rendered value to a boolean. Empty strings, zero, false and
// "no"/"off" style strings are false.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "0", "false", "no", "off", "nil", "null":
			return false
		default:
			return true
		}
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}
