package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/modelops/pkg/telemetry"
	"github.com/openfroyo/modelops/pkg/topology"
)

// Orchestrator runs operation attempts against a loaded topology model:
// resolve, build, policy check, then execute. One attempt runs at a time.
type Orchestrator struct {
	mu       sync.Mutex
	model    *topology.Model
	builder  *Builder
	executor *Executor
	gate     PolicyGate
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	newID    func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPolicyGate installs a gate evaluated after building and before execution.
func WithPolicyGate(gate PolicyGate) Option {
	return func(o *Orchestrator) {
		o.gate = gate
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics collector used for rejections.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithIDGenerator overrides attempt ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		o.newID = fn
	}
}

// NewOrchestrator creates an orchestrator over model.
func NewOrchestrator(model *topology.Model, builder *Builder, executor *Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		model:    model,
		builder:  builder,
		executor: executor,
		logger:   zerolog.Nop(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With().Str("component", "orchestrator").Logger()
	return o
}

// Model returns the topology model the orchestrator resolves against.
func (o *Orchestrator) Model() *topology.Model {
	return o.model
}

// ExecuteOperation runs op on the default interface of node.
func (o *Orchestrator) ExecuteOperation(ctx context.Context, node, op string) Response {
	return o.ExecuteInterfaceOperation(ctx, node, topology.DefaultInterface, op)
}

// ExecuteInterfaceOperation runs iface.op on node. Failures before execution
// return StatusError and write no audit record. Attempts that reach the
// executor return StatusSuccess or StatusFailed and write exactly two.
func (o *Orchestrator) ExecuteInterfaceOperation(ctx context.Context, node, iface, op string) Response {
	return o.execute(ctx, node, iface, op, func(ctx context.Context) (Invocation, error) {
		return o.prepare(ctx, node, iface, op)
	})
}

// ExecuteTool runs a tool that is not declared in the topology document
// against target, passing params as flags. The attempt is audited under
// target, ToolInterface and the tool name, with the same failure contract
// as ExecuteInterfaceOperation.
func (o *Orchestrator) ExecuteTool(ctx context.Context, target string, tool Tool, params topology.Params) Response {
	return o.execute(ctx, target, ToolInterface, tool.Name, func(ctx context.Context) (Invocation, error) {
		desc := topology.OperationDescriptor{Implementation: tool.Implementation}
		return o.buildAndCheck(ctx, target, "", ToolInterface, tool.Name, desc, params)
	})
}

func (o *Orchestrator) execute(ctx context.Context, node, iface, op string, prepare func(context.Context) (Invocation, error)) Response {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "operation.execute",
		telemetry.AttrNode.String(node),
		telemetry.AttrInterface.String(iface),
		telemetry.AttrOperation.String(op),
	)
	defer span.End()

	inv, err := prepare(ctx)
	if err != nil {
		o.reject(span, node, iface, op, err)
		return errorResponse(err)
	}

	attempt := Attempt{
		ID:        o.newID(),
		Node:      node,
		Interface: iface,
		Operation: op,
	}
	span.SetAttributes(telemetry.AttrAttemptID.String(attempt.ID))

	res := o.executor.Run(ctx, attempt, inv)
	if res.Succeeded() {
		telemetry.RecordSuccess(span)
	} else {
		telemetry.RecordFailure(span, res.Error)
	}
	return responseFromResult(attempt.ID, res)
}

// Plan resolves, builds and policy-checks an attempt without executing or
// auditing it.
func (o *Orchestrator) Plan(ctx context.Context, node, iface, op string) (Invocation, error) {
	return o.prepare(ctx, node, iface, op)
}

func (o *Orchestrator) prepare(ctx context.Context, node, iface, op string) (Invocation, error) {
	_, span := telemetry.StartSpan(ctx, "operation.resolve")
	resolved, err := o.model.Resolve(node, iface, op)
	if err != nil {
		telemetry.RecordError(span, err)
		span.End()
		return Invocation{}, classify(err)
	}
	span.SetAttributes(telemetry.AttrNodeType.String(resolved.Type))
	span.End()

	return o.buildAndCheck(ctx, node, resolved.Type, iface, op, resolved.Descriptor, resolved.Node.Properties)
}

// buildAndCheck builds the invocation for desc and asks the policy gate.
func (o *Orchestrator) buildAndCheck(ctx context.Context, node, nodeType, iface, op string, desc topology.OperationDescriptor, properties topology.Params) (Invocation, error) {
	_, span := telemetry.StartSpan(ctx, "operation.build")
	inv, err := o.builder.Build(desc, properties)
	if err != nil {
		telemetry.RecordError(span, err)
		span.End()
		return Invocation{}, classify(err).WithResource(node).WithOperation(op)
	}
	span.SetAttributes(
		telemetry.AttrArtifactKind.String(string(inv.Kind)),
		telemetry.AttrArtifactPath.String(inv.ArtifactPath),
	)
	span.End()

	if o.gate == nil {
		return inv, nil
	}
	req := OperationRequest{
		Node:       node,
		Type:       nodeType,
		Interface:  iface,
		Operation:  op,
		BaseDir:    o.builder.BaseDir,
		Properties: properties.Map(),
		Inputs:     desc.Inputs.Map(),
		Invocation: inv,
	}
	if err := o.gate.Check(ctx, req); err != nil {
		if errors.Is(err, ErrPolicyDenied) {
			return Invocation{}, classify(err).WithResource(node).WithOperation(op)
		}
		return Invocation{}, NewTransientError("policy evaluation failed", err).
			WithCode(ErrCodeInternal).
			WithResource(node).
			WithOperation(op)
	}
	return inv, nil
}

func (o *Orchestrator) reject(span trace.Span, node, iface, op string, err error) {
	code := ErrorCode(err)
	class := ""
	var ee *EngineError
	if errors.As(err, &ee) {
		class = string(ee.Class)
	}
	telemetry.RecordError(span, err)
	span.SetAttributes(telemetry.AttrErrorCode.String(code))
	o.metrics.RecordRejection(code, class)
	o.logger.Warn().
		Err(err).
		Str("node", node).
		Str("interface", iface).
		Str("operation", op).
		Str("code", code).
		Msg("operation rejected before execution")
}
