// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrParamFailed is returned for unanswered or refused parameter requests,
	// unless the Gateway's ReturnNullOnFailedResponse option is set.
	ErrParamFailed = errors.New("parameter request failed")

	// ErrLengthMismatch is returned if the number of parameters and values
	// differ.
	ErrLengthMismatch = errors.New("parameters and values differ in length")
)

// undefined is the type of Undefined.
type undefined struct{}

func (undefined) String() string {
	return "undefined"
}

// Undefined is returned for requested parameters missing in a response.
var Undefined = undefined{}

// Parameter fields of ParameterReq and ParameterRsp.
const (
	paramParam    = "param"
	paramValue    = "value"
	paramValues   = "values"
	paramRequests = "requests"
	paramIndex    = "index"
)

// paramConfig is built from ParamOptions.
type paramConfig struct {
	index      int
	timeout    time.Duration
	timeoutSet bool
	maxAge     time.Duration
}

// ParamOption configures a parameter request.
type ParamOption func(*paramConfig)

// WithIndex selects an element of an indexed parameter. The default -1
// addresses unindexed parameters.
func WithIndex(index int) ParamOption {
	return func(pc *paramConfig) {
		pc.index = index
	}
}

// WithTimeout overrides the owning Gateway's default timeout.
func WithTimeout(timeout time.Duration) ParamOption {
	return func(pc *paramConfig) {
		pc.timeout = timeout
		pc.timeoutSet = true
	}
}

// WithMaxAge limits the age of values read from a CachingAgentID's cache. Zero
// disables cache reads. It is ignored by a plain AgentID.
func WithMaxAge(maxAge time.Duration) ParamOption {
	return func(pc *paramConfig) {
		pc.maxAge = maxAge
	}
}

func (aid AgentID) paramConfig(opts []ParamOption) paramConfig {
	pc := paramConfig{index: -1, maxAge: DefaultMaxAge}
	for _, opt := range opts {
		opt(&pc)
	}
	if !pc.timeoutSet {
		pc.timeout = aid.timeout()
	}
	return pc
}

// bareName strips a dotted prefix, e.g., "org.arl.unet.phy.PhysicalParam.MTU"
// becomes "MTU".
func bareName(param string) string {
	if i := strings.LastIndex(param, "."); i >= 0 {
		return param[i+1:]
	}
	return param
}

// paramRequest performs the round trip of a ParameterReq. Empty params request
// all parameters. With values, the parameters are set. A nil response indicates
// a failure.
func (aid AgentID) paramRequest(
	ctx context.Context, params []string, values []any, pc paramConfig,
) (*Message, error) {
	if aid.owner == nil {
		return nil, ErrUnowned
	}

	req := ParameterReq.New(nil)
	if len(params) > 0 {
		req.Set(paramParam, params[0])
		if values != nil {
			req.Set(paramValue, values[0])
		}

		if len(params) > 1 {
			requests := make([]any, 0, len(params)-1)
			for i, p := range params[1:] {
				entry := map[string]any{paramParam: p}
				if values != nil {
					entry[paramValue] = values[i+1]
				}
				requests = append(requests, entry)
			}
			req.Set(paramRequests, requests)
		}
	}
	req.Set(paramIndex, pc.index)

	rsp, err := aid.Request(ctx, req, pc.timeout)
	if err != nil {
		return nil, err
	}
	if rsp == nil || rsp.Perf != Inform || !rsp.Has(paramParam) {
		return nil, nil
	}
	return rsp, nil
}

// failedParams creates the result of a failed request, either nil or an error.
func (aid AgentID) failedParams(op string, params []string) error {
	if aid.owner == nil || aid.owner.opts.ReturnNullOnFailedResponse {
		return nil
	}
	return fmt.Errorf("%w: %s %s.%s", ErrParamFailed, op, aid.name, strings.Join(params, ","))
}

// responseValues merges a response's primary parameter into its values map.
func responseValues(rsp *Message) map[string]any {
	values := make(map[string]any)
	if m, ok := rsp.Get(paramValues).(map[string]any); ok {
		for k, v := range m {
			values[k] = v
		}
	}
	if p, ok := rsp.String(paramParam); ok {
		values[p] = rsp.Get(paramValue)
	}
	return values
}

// matchValues orders the values of a response like the requested params. Names
// are compared without their dotted prefix; unmatched names result in
// Undefined.
func matchValues(params []string, values map[string]any) []any {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]any, len(params))
	for i, p := range params {
		out[i] = Undefined

		name := bareName(p)
		for _, k := range keys {
			if bareName(k) == name {
				out[i] = values[k]
				break
			}
		}
	}
	return out
}

// Get a parameter of this agent.
func (aid AgentID) Get(
	ctx context.Context, param string, opts ...ParamOption,
) (any, error) {
	rsp, err := aid.paramRequest(ctx, []string{param}, nil, aid.paramConfig(opts))
	if err != nil {
		return nil, err
	} else if rsp == nil {
		return nil, aid.failedParams("get", []string{param})
	}
	return rsp.Get(paramValue), nil
}

// GetMany parameters of this agent within a single request. The values are
// ordered like params.
func (aid AgentID) GetMany(
	ctx context.Context, params []string, opts ...ParamOption,
) ([]any, error) {
	if len(params) == 0 {
		return []any{}, nil
	}

	rsp, err := aid.paramRequest(ctx, params, nil, aid.paramConfig(opts))
	if err != nil {
		return nil, err
	} else if rsp == nil {
		if err := aid.failedParams("get", params); err != nil {
			return nil, err
		}
		return make([]any, len(params)), nil
	}
	return matchValues(params, responseValues(rsp)), nil
}

// GetAll parameters of this agent, keyed by their fully-qualified names.
func (aid AgentID) GetAll(
	ctx context.Context, opts ...ParamOption,
) (map[string]any, error) {
	rsp, err := aid.paramRequest(ctx, nil, nil, aid.paramConfig(opts))
	if err != nil {
		return nil, err
	} else if rsp == nil {
		return nil, aid.failedParams("get", []string{"*"})
	}
	return responseValues(rsp), nil
}

// Set a parameter of this agent. The new value, as confirmed by the agent, is
// returned.
func (aid AgentID) Set(
	ctx context.Context, param string, value any, opts ...ParamOption,
) (any, error) {
	rsp, err := aid.paramRequest(ctx, []string{param}, []any{value}, aid.paramConfig(opts))
	if err != nil {
		return nil, err
	} else if rsp == nil {
		return nil, aid.failedParams("set", []string{param})
	}
	return rsp.Get(paramValue), nil
}

// SetMany parameters of this agent within a single request. The confirmed
// values are ordered like params.
func (aid AgentID) SetMany(
	ctx context.Context, params []string, values []any, opts ...ParamOption,
) ([]any, error) {
	if len(params) != len(values) {
		return nil, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(params), len(values))
	}
	if len(params) == 0 {
		return []any{}, nil
	}

	rsp, err := aid.paramRequest(ctx, params, values, aid.paramConfig(opts))
	if err != nil {
		return nil, err
	} else if rsp == nil {
		if err := aid.failedParams("set", params); err != nil {
			return nil, err
		}
		return make([]any, len(params)), nil
	}
	return matchValues(params, responseValues(rsp)), nil
}
