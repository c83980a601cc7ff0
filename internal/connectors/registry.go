package connectors

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry holds the configured connectors keyed by platform name. Adding a
// platform means registering its connector; callers never enumerate platform
// types themselves.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

func NewRegistry() *Registry {
	return &Registry{connectors: make(map[string]Connector)}
}

// Register adds or replaces the connector for its platform.
func (r *Registry) Register(c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := c.PlatformName()
	if _, exists := r.connectors[name]; exists {
		logrus.Warnf("replacing existing connector for platform %s", name)
	}
	r.connectors[name] = c
}

// Get looks up a connector by platform name.
func (r *Registry) Get(platform string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[platform]
	return c, ok
}

// Platforms returns the registered platform names, sorted.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered connector in platform-name order.
func (r *Registry) All() []Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Connector, 0, len(names))
	for _, name := range names {
		out = append(out, r.connectors[name])
	}
	return out
}

// Configured returns the connectors whose credentials are present.
func (r *Registry) Configured() []Connector {
	var out []Connector
	for _, c := range r.All() {
		if c.IsConfigured() {
			out = append(out, c)
		}
	}
	return out
}
