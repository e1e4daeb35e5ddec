// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// Registry keeps at most one live Gateway per master container URL. A Gateway
// opened through a Registry removes itself on Close.
type Registry struct {
	mutex    sync.Mutex
	gateways map[string]*Gateway
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]*Gateway)}
}

// Open returns the live Gateway for the Options' URL or creates a new one.
func (r *Registry) Open(opts Options) (*Gateway, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	url := opts.URL()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if g, ok := r.gateways[url]; ok {
		log.WithField("gateway", url).Debug("Reusing registered Gateway")
		return g, nil
	}

	g, err := NewGateway(opts)
	if err != nil {
		return nil, err
	}

	g.registry = r
	r.gateways[url] = g
	return g, nil
}

// Lookup the live Gateway for a URL, or nil.
func (r *Registry) Lookup(url string) *Gateway {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.gateways[url]
}

// URLs of all live Gateways, sorted.
func (r *Registry) URLs() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	urls := make([]string, 0, len(r.gateways))
	for url := range r.gateways {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// CloseAll closes every registered Gateway.
func (r *Registry) CloseAll() (err error) {
	r.mutex.Lock()
	gateways := make([]*Gateway, 0, len(r.gateways))
	for _, g := range r.gateways {
		gateways = append(gateways, g)
	}
	r.mutex.Unlock()

	for _, g := range gateways {
		if closeErr := g.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
	}
	return
}

// remove a closing Gateway.
func (r *Registry) remove(g *Gateway) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if cur, ok := r.gateways[g.URL()]; ok && cur == g {
		delete(r.gateways, g.URL())
	}
}
