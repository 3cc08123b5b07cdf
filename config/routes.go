package config

import "strings"

// ContextRoutes resolves the context budget for a model. Routes are keyed
// by model-name prefix; the longest matching prefix wins and unset route
// fields inherit the process-wide defaults.
type ContextRoutes struct {
	defaults ContextConfig
	routes   map[string]ContextConfig
}

func NewContextRoutes(defaults ContextConfig, routes map[string]ContextConfig) *ContextRoutes {
	return &ContextRoutes{defaults: defaults, routes: routes}
}

// For returns the resolved config for model. No matching route returns
// the defaults unchanged.
func (r *ContextRoutes) For(model string) ContextConfig {
	matched := ""
	var route ContextConfig
	found := false
	for prefix, cfg := range r.routes {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(matched) {
			matched = prefix
			route = cfg
			found = true
		}
	}
	if !found {
		return r.defaults
	}
	return mergeContext(r.defaults, route)
}

// mergeContext overlays a route's set fields onto the defaults. The
// boolean switches (preserve_system_message, memory_zone_enabled) stay
// process-wide: a zero value is indistinguishable from unset.
func mergeContext(defaults, route ContextConfig) ContextConfig {
	out := defaults
	if route.MaxTurns > 0 {
		out.MaxTurns = route.MaxTurns
	}
	if route.MaxTokens > 0 {
		out.MaxTokens = route.MaxTokens
	}
	if route.ReductionMode != "" {
		out.ReductionMode = route.ReductionMode
	}
	if route.SummarizationModel != "" {
		out.SummarizationModel = route.SummarizationModel
	}
	if route.TokenEstimator != "" {
		out.TokenEstimator = route.TokenEstimator
	}
	return out
}
