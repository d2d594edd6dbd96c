package intent

import "strings"

// Well-known operations produced by the routers.
const (
	// OperationGetMetric asks for a resource metric rather than a topology
	// operation.
	OperationGetMetric = "get_metric"
)

// Well-known parameter keys.
const (
	ParamNode       = "node"
	ParamTarget     = "target"
	ParamMetricName = "metricName"

	ParamAggregation    = "aggregation"
	ParamTimeRangeHours = "timeRangeHours"
)

// Intent is a structured request derived from free text.
type Intent struct {
	// Operation is the topology operation (start, stop...) or a tool name
	// such as get_metric.
	Operation string

	// Params holds the routed parameters. Params["node"] names the target
	// node for topology operations.
	Params map[string]string
}

// Node returns the target node, if any.
func (i Intent) Node() string {
	return i.Params[ParamNode]
}

// IsTopologyOperation reports whether the intent targets a topology node.
func (i Intent) IsTopologyOperation() bool {
	return i.Operation != "" && i.Node() != "" && i.Operation != OperationGetMetric
}

// Router maps free text to an intent. The boolean is false when nothing
// matched.
type Router interface {
	Route(text string) (Intent, bool)
}

// RouterFunc adapts a function to the Router interface.
type RouterFunc func(text string) (Intent, bool)

// Route implements Router.
func (f RouterFunc) Route(text string) (Intent, bool) {
	return f(text)
}

// Chain tries each router in order and returns the first match.
type Chain []Router

// Route implements Router.
func (c Chain) Route(text string) (Intent, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Intent{}, false
	}
	for _, r := range c {
		if r == nil {
			continue
		}
		if in, ok := r.Route(text); ok {
			return in, true
		}
	}
	return Intent{}, false
}
