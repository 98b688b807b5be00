// Package workflow matches inbound events against trigger nodes and walks the
// graph downstream of each match.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/botflow/pkg/eventbus"
	"github.com/dukex/botflow/pkg/events"
	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/otelhelper"
	"github.com/dukex/botflow/pkg/persistence"
	"github.com/dukex/botflow/pkg/protocol"
	"github.com/dukex/botflow/pkg/registry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxSteps bounds the nodes visited by one traversal.
const DefaultMaxSteps = 10000

var ErrNotExecutable = errors.New("node does not implement its category")

// Result summarizes one traversal.
type Result struct {
	WorkflowID    string
	ExecutionID   string
	TriggerNodeID string
	Steps         int
	Failures      int
	Truncated     bool
}

type Executor struct {
	logger    *slog.Logger
	workflows persistence.WorkflowRepository
	registry  *registry.Registry
	matcher   *TriggerMatcher
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	maxSteps  int

	inflight sync.WaitGroup
}

type Option func(*Executor)

// WithPublisher publishes traversal lifecycle events.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Executor) {
		e.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

// WithMaxSteps bounds each traversal. Zero leaves traversals unbounded.
func WithMaxSteps(steps int) Option {
	return func(e *Executor) {
		e.maxSteps = steps
	}
}

func NewExecutor(logger *slog.Logger, workflows persistence.WorkflowRepository, registry *registry.Registry, opts ...Option) *Executor {
	executor := &Executor{
		logger:    logger.With("module", "workflow_executor"),
		workflows: workflows,
		registry:  registry,
		matcher:   NewTriggerMatcher(logger),
		tracer:    otelhelper.Tracer("botflow"),
		maxSteps:  DefaultMaxSteps,
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Execute runs ExecuteForEvent as a detached task. The caller's cancellation
// does not stop it; failures are only logged.
func (e *Executor) Execute(ctx context.Context, executionCtx *models.ExecutionContext) {
	ctx = context.WithoutCancel(ctx)

	e.inflight.Add(1)

	go func() {
		defer e.inflight.Done()

		_, err := e.ExecuteForEvent(ctx, executionCtx)
		if err != nil {
			e.logger.ErrorContext(ctx, "workflow execution failed", "botId", executionCtx.BotID, "error", err)
		}
	}()
}

// Wait blocks until every detached execution has finished.
func (e *Executor) Wait() {
	e.inflight.Wait()
}

// ExecuteForEvent loads the active graphs of the event's bot and runs one
// traversal per graph whose triggers match, the first matching trigger
// winning within a graph. Graphs run concurrently; it returns when all are done.
func (e *Executor) ExecuteForEvent(ctx context.Context, executionCtx *models.ExecutionContext) ([]Result, error) {
	logger := e.logger.With("botId", executionCtx.BotID, "eventType", executionCtx.EventType)

	graphs, err := e.workflows.ActiveByBot(ctx, executionCtx.BotID)
	if err != nil {
		return nil, err
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []Result
	)

	for _, graph := range graphs {
		trigger := e.firstMatch(graph, executionCtx)
		if trigger == nil {
			continue
		}

		logger.DebugContext(ctx, "trigger matched", "workflowId", graph.ID, "nodeId", trigger.ID)

		wg.Add(1)

		go func(graph *models.WorkflowGraph, trigger *models.Node) {
			defer wg.Done()

			result := e.traverse(ctx, graph, trigger, executionCtx.Fork(graph.ID))

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(graph, trigger)
	}

	wg.Wait()

	return results, nil
}

func (e *Executor) firstMatch(graph *models.WorkflowGraph, executionCtx *models.ExecutionContext) *models.Node {
	if !graph.IsActive || !graph.AppliesTo(executionCtx.BotID) {
		return nil
	}

	for _, node := range graph.Triggers() {
		if e.matcher.Match(node, executionCtx) {
			return node
		}
	}

	return nil
}

// traverse walks the graph breadth-first from trigger. Action failures are
// recorded and the walk continues; condition nodes follow only the edges whose
// handle matches their result.
func (e *Executor) traverse(ctx context.Context, graph *models.WorkflowGraph, trigger *models.Node, executionCtx *models.ExecutionContext) Result {
	executionCtx.ID = newExecutionID()

	result := Result{
		WorkflowID:    graph.ID,
		ExecutionID:   executionCtx.ID,
		TriggerNodeID: trigger.ID,
	}

	logger := e.logger.With(
		"botId", executionCtx.BotID,
		"workflowId", graph.ID,
		"executionId", executionCtx.ID,
	)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.traverse",
		attribute.String(otelhelper.BotIDKey, executionCtx.BotID),
		attribute.String(otelhelper.WorkflowIDKey, graph.ID),
		attribute.String(otelhelper.ExecutionIDKey, executionCtx.ID),
		attribute.String(otelhelper.TriggerNodeIDKey, trigger.ID),
		attribute.String(otelhelper.EventTypeKey, string(executionCtx.EventType)),
	)
	defer span.End()

	started := time.Now()

	e.publish(ctx, logger, executionCtx.BotID, events.WorkflowTriggered{
		BaseEvent:     events.NewBaseEvent(events.WorkflowTriggeredEvent, executionCtx.BotID),
		WorkflowID:    graph.ID,
		ExecutionID:   executionCtx.ID,
		TriggerNodeID: trigger.ID,
		EventType:     string(executionCtx.EventType),
	})

	index := make(map[string]*models.Node, len(graph.Nodes))
	for _, node := range graph.Nodes {
		index[node.ID] = node
	}

	outgoing := graph.Outgoing()
	queue := []*models.Node{trigger}

	for len(queue) > 0 {
		if e.maxSteps > 0 && result.Steps >= e.maxSteps {
			result.Truncated = true

			logger.ErrorContext(ctx, "traversal step bound reached, stopping", "maxSteps", e.maxSteps, "pending", len(queue))

			break
		}

		node := queue[0]
		queue = queue[1:]
		result.Steps++

		handle, err := e.visit(ctx, logger, node, executionCtx)
		if err != nil {
			result.Failures++

			e.publish(ctx, logger, executionCtx.BotID, events.NodeFailed{
				BaseEvent:   events.NewBaseEvent(events.NodeFailedEvent, executionCtx.BotID),
				WorkflowID:  graph.ID,
				ExecutionID: executionCtx.ID,
				NodeID:      node.ID,
				NodeType:    string(node.Type),
				Error:       err.Error(),
			})
		}

		for _, connection := range outgoing[node.ID] {
			if handle != "" && connection.SourceHandle != handle {
				continue
			}

			target, ok := index[connection.TargetNodeID]
			if !ok {
				logger.WarnContext(ctx, "connection targets unknown node", "connectionId", connection.ID, "targetNodeId", connection.TargetNodeID)

				continue
			}

			queue = append(queue, target)
		}
	}

	e.publish(ctx, logger, executionCtx.BotID, events.WorkflowFinished{
		BaseEvent:   events.NewBaseEvent(events.WorkflowFinishedEvent, executionCtx.BotID),
		WorkflowID:  graph.ID,
		ExecutionID: executionCtx.ID,
		Steps:       result.Steps,
		Failures:    result.Failures,
		Truncated:   result.Truncated,
		Duration:    time.Since(started),
	})

	logger.InfoContext(ctx, "traversal finished", "steps", result.Steps, "failures", result.Failures, "truncated", result.Truncated)

	return result
}

// visit executes one node and returns the branch handle to follow, or "" to
// follow every outgoing connection.
func (e *Executor) visit(ctx context.Context, logger *slog.Logger, node *models.Node, executionCtx *models.ExecutionContext) (string, error) {
	logger = logger.With("nodeId", node.ID, "nodeType", node.Type)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
	)
	defer span.End()

	switch node.Type.Category() {
	case models.CategoryTrigger:
		return "", nil
	case models.CategoryAction:
		err := e.runAction(ctx, node, executionCtx)
		if err != nil {
			logger.ErrorContext(ctx, "action failed", "error", err)
			otelhelper.SetError(span, err)

			return "", err
		}

		return "", nil
	case models.CategoryCondition:
		result, err := e.evaluate(ctx, node, executionCtx)
		if err != nil {
			logger.WarnContext(ctx, "condition failed, taking false branch", "error", err)
			otelhelper.SetError(span, err)
		}

		span.SetAttributes(attribute.Bool("botflow.condition.result", result))

		if result {
			return models.HandleTrue, err
		}

		return models.HandleFalse, err
	default:
		logger.WarnContext(ctx, "unknown node type, skipping")

		return "", nil
	}
}

func (e *Executor) runAction(ctx context.Context, node *models.Node, executionCtx *models.ExecutionContext) error {
	created, err := e.registry.CreateNode(ctx, node.Type, node.ID, node.Config)
	if err != nil {
		return err
	}

	action, ok := created.(protocol.ActionNode)
	if !ok {
		return ErrNotExecutable
	}

	return action.Execute(ctx, executionCtx)
}

func (e *Executor) evaluate(ctx context.Context, node *models.Node, executionCtx *models.ExecutionContext) (bool, error) {
	created, err := e.registry.CreateNode(ctx, node.Type, node.ID, node.Config)
	if err != nil {
		return false, err
	}

	condition, ok := created.(protocol.ConditionNode)
	if !ok {
		return false, ErrNotExecutable
	}

	result, err := condition.Evaluate(ctx, executionCtx)
	if err != nil {
		return false, err
	}

	return result, nil
}

func (e *Executor) publish(ctx context.Context, logger *slog.Logger, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	err := e.publisher.Publish(ctx, key, event)
	if err != nil {
		logger.WarnContext(ctx, "failed to publish event", "eventType", event.GetType(), "error", err)
	}
}

func newExecutionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}

	return "exec-" + id.String()
}
