package intent

import (
	"regexp"
	"sort"
	"strings"
)

var (
	lifecyclePattern = regexp.MustCompile(`(?i)\b(start|stop|restart)\s+(?:the\s+)?(?:vm\s+)?(\w+)`)
	metricPattern    = regexp.MustCompile(`(?i)\b(check|get|show)\s+(cpu|memory)\s+(?:for\s+)?(\S+)`)
)

// DefaultAliases maps nicknames to node names.
func DefaultAliases() map[string]string {
	return map[string]string{
		"ops":        "MyOperationsVM",
		"operations": "MyOperationsVM",
		"prod":       "MyProdApp",
	}
}

type alias struct {
	match string
	node  string
}

// RegexRouter recognises lifecycle and metric requests with regular
// expressions.
type RegexRouter struct {
	aliases []alias
}

// NewRegexRouter creates a router. An alias applies when its key is a
// substring of the target word; longer keys are tried first. A nil map uses
// DefaultAliases.
func NewRegexRouter(aliases map[string]string) *RegexRouter {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	r := &RegexRouter{aliases: make([]alias, 0, len(aliases))}
	for k, v := range aliases {
		r.aliases = append(r.aliases, alias{match: strings.ToLower(k), node: v})
	}
	sort.Slice(r.aliases, func(i, j int) bool {
		a, b := r.aliases[i], r.aliases[j]
		if len(a.match) != len(b.match) {
			return len(a.match) > len(b.match)
		}
		return a.match < b.match
	})
	return r
}

// Route implements Router.
func (r *RegexRouter) Route(text string) (Intent, bool) {
	if m := lifecyclePattern.FindStringSubmatch(text); m != nil {
		target := m[2]
		return Intent{
			Operation: strings.ToLower(m[1]),
			Params: map[string]string{
				ParamNode:   r.resolveNode(target),
				ParamTarget: target,
			},
		}, true
	}

	if m := metricPattern.FindStringSubmatch(text); m != nil {
		metric := "Available Memory Bytes"
		if strings.EqualFold(m[2], "cpu") {
			metric = "Percentage CPU"
		}
		target := m[3]
		params := map[string]string{
			ParamMetricName:     metric,
			ParamTarget:         target,
			ParamAggregation:    "Average",
			ParamTimeRangeHours: "1",
		}
		if node := r.aliasFor(target); node != "" {
			params[ParamNode] = node
		}
		return Intent{Operation: OperationGetMetric, Params: params}, true
	}

	return Intent{}, false
}

// resolveNode maps a target word to a node name, falling back to the word
// itself.
func (r *RegexRouter) resolveNode(target string) string {
	if node := r.aliasFor(target); node != "" {
		return node
	}
	return target
}

func (r *RegexRouter) aliasFor(target string) string {
	lower := strings.ToLower(target)
	for _, a := range r.aliases {
		if a.match != "" && strings.Contains(lower, a.match) {
			return a.node
		}
	}
	return ""
}
