package connector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Slithercze/everytrade-plugins/internal/ports"
)

// Factory builds a connector instance from resolved parameters.
type Factory func(instanceID string, params map[string]string, env Environment) (ports.Connector, error)

// Registry maps descriptor ids to connector factories.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
	factories   map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]Descriptor),
		factories:   make(map[string]Factory),
	}
}

// Register adds a connector type. Registering the same id twice is an error.
func (r *Registry) Register(d Descriptor, f Factory) error {
	if d.ID == "" || f == nil {
		return fmt.Errorf("descriptor id and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptors[d.ID]; exists {
		return fmt.Errorf("connector %s is already registered", d.ID)
	}
	r.descriptors[d.ID] = d
	r.factories[d.ID] = f
	return nil
}

// Descriptors returns all registered descriptors sorted by id.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Descriptor looks up a descriptor by id.
func (r *Registry) Descriptor(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[id]
	return d, ok
}

// Create validates params against the descriptor and builds a connector.
// instanceID keys the connector's cursor; it defaults to the descriptor id.
func (r *Registry) Create(descriptorID, instanceID string, params map[string]string, env Environment) (ports.Connector, error) {
	r.mu.RLock()
	d, ok := r.descriptors[descriptorID]
	f := r.factories[descriptorID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown connector %s", ports.ErrNotFound, descriptorID)
	}
	if env.Logger == nil {
		return nil, fmt.Errorf("logger is required to create connector %s", descriptorID)
	}

	resolved, err := d.ResolveParameters(params)
	if err != nil {
		return nil, err
	}
	if instanceID == "" {
		instanceID = d.ID
	}
	return f(instanceID, resolved, env)
}
