// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxAge of cached parameter values.
const DefaultMaxAge = 5 * time.Second

// dynamicParams are never answered from a greedily filled cache.
var dynamicParams = map[string]bool{
	"name":    true,
	"version": true,
}

// cacheKey addresses a cached value by the parameter's index and its bare name.
type cacheKey struct {
	index int
	name  string
}

type cacheEntry struct {
	value any
	ctime time.Time
}

// CachingAgentID is an AgentID keeping the agent's parameters in a local cache.
//
// A greedy CachingAgentID fetches all parameters of the agent at once on a
// cache miss, unless one of the requested parameters is dynamic, i.e., "name"
// or "version". Values being set are cached after the agent confirmed them. A
// CachingAgentID is safe for concurrent use.
type CachingAgentID struct {
	AgentID

	greedy bool

	mutex sync.Mutex
	cache map[cacheKey]cacheEntry
}

// NewCachingAgentID wraps an AgentID.
func NewCachingAgentID(aid AgentID, greedy bool) *CachingAgentID {
	return &CachingAgentID{
		AgentID: aid,
		greedy:  greedy,
		cache:   make(map[cacheKey]cacheEntry),
	}
}

// Greedy reports if all parameters are fetched on a cache miss.
func (c *CachingAgentID) Greedy() bool {
	return c.greedy
}

// cached returns the values of params if all of them are cached and not older
// than maxAge.
func (c *CachingAgentID) cached(
	params []string, index int, maxAge time.Duration,
) ([]any, bool) {
	if maxAge <= 0 || len(params) == 0 {
		return nil, false
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	values := make([]any, len(params))
	for i, p := range params {
		entry, ok := c.cache[cacheKey{index, bareName(p)}]
		if !ok || now.Sub(entry.ctime) > maxAge {
			return nil, false
		}
		values[i] = entry.value
	}
	return values, true
}

// update the cache with confirmed values. Missing values, nil or Undefined, are
// skipped.
func (c *CachingAgentID) update(params []string, values []any, index int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	for i, p := range params {
		if i >= len(values) || values[i] == nil || values[i] == Undefined {
			continue
		}
		c.cache[cacheKey{index, bareName(p)}] = cacheEntry{value: values[i], ctime: now}
	}
}

// updateAll refreshes the cache from a complete parameter listing.
func (c *CachingAgentID) updateAll(all map[string]any, index int) {
	params := make([]string, 0, len(all))
	values := make([]any, 0, len(all))
	for k, v := range all {
		params = append(params, k)
		values = append(values, v)
	}
	c.update(params, values, index)
}

// Invalidate drops all cached values.
func (c *CachingAgentID) Invalidate() {
	c.mutex.Lock()
	c.cache = make(map[cacheKey]cacheEntry)
	c.mutex.Unlock()
}

// greedyFor reports if a request for params should fetch all parameters.
func (c *CachingAgentID) greedyFor(params []string) bool {
	if !c.greedy {
		return false
	}
	for _, p := range params {
		if dynamicParams[bareName(p)] {
			return false
		}
	}
	return true
}

// Get a parameter, from the cache if possible.
func (c *CachingAgentID) Get(
	ctx context.Context, param string, opts ...ParamOption,
) (any, error) {
	values, err := c.GetMany(ctx, []string{param}, opts...)
	if err != nil || values == nil {
		return nil, err
	}
	if values[0] == Undefined {
		return nil, nil
	}
	return values[0], nil
}

// GetMany parameters, from the cache if all of them are cached and not older
// than the maximum age.
func (c *CachingAgentID) GetMany(
	ctx context.Context, params []string, opts ...ParamOption,
) ([]any, error) {
	pc := c.paramConfig(opts)

	if values, ok := c.cached(params, pc.index, pc.maxAge); ok {
		return values, nil
	}

	if c.greedyFor(params) {
		all, err := c.AgentID.GetAll(ctx, opts...)
		if err != nil {
			return nil, err
		}
		if all == nil {
			return make([]any, len(params)), nil
		}
		c.updateAll(all, pc.index)

		values := matchValues(params, all)
		for i, v := range values {
			if v == Undefined {
				values[i] = nil
			}
		}
		return values, nil
	}

	values, err := c.AgentID.GetMany(ctx, params, opts...)
	if err != nil {
		return nil, err
	}
	c.update(params, values, pc.index)
	return values, nil
}

// GetAll parameters of the agent and refresh the cache with them.
func (c *CachingAgentID) GetAll(
	ctx context.Context, opts ...ParamOption,
) (map[string]any, error) {
	pc := c.paramConfig(opts)

	all, err := c.AgentID.GetAll(ctx, opts...)
	if err != nil || all == nil {
		return all, err
	}
	c.updateAll(all, pc.index)
	return all, nil
}

// Set a parameter and cache the confirmed value.
func (c *CachingAgentID) Set(
	ctx context.Context, param string, value any, opts ...ParamOption,
) (any, error) {
	pc := c.paramConfig(opts)

	v, err := c.AgentID.Set(ctx, param, value, opts...)
	if err != nil {
		return nil, err
	}
	c.update([]string{param}, []any{v}, pc.index)
	return v, nil
}

// SetMany parameters and cache the confirmed values.
func (c *CachingAgentID) SetMany(
	ctx context.Context, params []string, values []any, opts ...ParamOption,
) ([]any, error) {
	pc := c.paramConfig(opts)

	confirmed, err := c.AgentID.SetMany(ctx, params, values, opts...)
	if err != nil {
		return nil, err
	}
	c.update(params, confirmed, pc.index)
	return confirmed, nil
}
