package workflow

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/nodes"
)

// Match types accepted by text and callback triggers.
const (
	MatchExact      = "exact"
	MatchContains   = "contains"
	MatchStartsWith = "startsWith"
	MatchRegex      = "regex"
)

type commandConfig struct {
	Command string `mapstructure:"command" validate:"required"`
}

type textConfig struct {
	MatchType string `mapstructure:"matchType" validate:"omitempty,oneof=exact contains regex"`
	Pattern   string `mapstructure:"pattern"`
}

type callbackConfig struct {
	MatchType string `mapstructure:"matchType" validate:"omitempty,oneof=exact contains startsWith regex"`
	Pattern   string `mapstructure:"pattern"`
}

// TriggerMatcher decides whether a trigger node fires for an inbound event.
// It never fails: malformed configs and patterns are no-matches.
type TriggerMatcher struct {
	logger *slog.Logger
	cache  sync.Map
}

// NewTriggerMatcher creates a new trigger matcher.
func NewTriggerMatcher(logger *slog.Logger) *TriggerMatcher {
	return &TriggerMatcher{
		logger: logger.With("module", "trigger_matcher"),
	}
}

// Match reports whether node is a trigger satisfied by the event in executionCtx.
func (tm *TriggerMatcher) Match(node *models.Node, executionCtx *models.ExecutionContext) bool {
	switch node.Type {
	case models.NodeTypeTriggerCommand:
		if executionCtx.EventType != models.EventCommand {
			return false
		}

		return tm.matchCommand(node, executionCtx.Text)
	case models.NodeTypeTriggerText:
		if executionCtx.EventType != models.EventText {
			return false
		}

		return tm.matchText(node, executionCtx.Text)
	case models.NodeTypeTriggerCallback:
		if !executionCtx.EventType.IsCallback() {
			return false
		}

		return tm.matchCallback(node, executionCtx.CallbackData)
	default:
		return false
	}
}

func (tm *TriggerMatcher) matchCommand(node *models.Node, text string) bool {
	var cfg commandConfig

	err := nodes.DecodeConfig(node.Config, &cfg)
	if err != nil {
		tm.logger.Debug("invalid command trigger config", "nodeId", node.ID, "error", err)

		return false
	}

	command := strings.ToLower(strings.TrimSpace(cfg.Command))
	if !strings.HasPrefix(command, "/") {
		command = "/" + command
	}

	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return false
	}

	first := tokens[0]
	if at := strings.IndexByte(first, '@'); at > 0 {
		first = first[:at]
	}

	return first == command
}

func (tm *TriggerMatcher) matchText(node *models.Node, text string) bool {
	var cfg textConfig

	err := nodes.DecodeConfig(node.Config, &cfg)
	if err != nil {
		tm.logger.Debug("invalid text trigger config", "nodeId", node.ID, "error", err)

		return false
	}

	text = strings.ToLower(text)

	switch cfg.MatchType {
	case MatchContains:
		return strings.Contains(text, strings.ToLower(cfg.Pattern))
	case MatchRegex:
		return tm.matchRegex(node.ID, "(?i)"+cfg.Pattern, text)
	default:
		return text == strings.ToLower(cfg.Pattern)
	}
}

// matchCallback compares callback payloads as sent by the platform. An empty
// pattern matches every payload.
func (tm *TriggerMatcher) matchCallback(node *models.Node, data string) bool {
	var cfg callbackConfig

	err := nodes.DecodeConfig(node.Config, &cfg)
	if err != nil {
		tm.logger.Debug("invalid callback trigger config", "nodeId", node.ID, "error", err)

		return false
	}

	if cfg.Pattern == "" {
		return true
	}

	switch cfg.MatchType {
	case MatchContains:
		return strings.Contains(data, cfg.Pattern)
	case MatchStartsWith:
		return strings.HasPrefix(data, cfg.Pattern)
	case MatchRegex:
		return tm.matchRegex(node.ID, cfg.Pattern, data)
	default:
		return data == cfg.Pattern
	}
}

func (tm *TriggerMatcher) matchRegex(nodeID, pattern, value string) bool {
	if cached, ok := tm.cache.Load(pattern); ok {
		re, _ := cached.(*regexp.Regexp)

		return re != nil && re.MatchString(value)
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		tm.logger.Warn("invalid trigger pattern", "nodeId", nodeID, "pattern", pattern, "error", err)
		tm.cache.Store(pattern, (*regexp.Regexp)(nil))

		return false
	}

	tm.cache.Store(pattern, re)

	return re.MatchString(value)
}
