// Package registry implements the service registry: per-service instance
// lists with health flags and pluggable selection strategies, grounded on
// the teacher's internal/gateway/backend/loadbalancer.go load balancers
// (RoundRobin/WeightedRoundRobin/LeastConnections/Random), adapted from
// the teacher's *Endpoint type to the spec's ServiceInstance shape.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vyrodovalexey/avapigw/internal/observability"
)

// Errors returned by the registry.
var (
	// ErrServiceNotFound indicates no instances are registered for a service.
	ErrServiceNotFound = errors.New("registry: service not found")

	// ErrInstanceNotFound indicates the named instance id is not registered.
	ErrInstanceNotFound = errors.New("registry: instance not found")
)

// ServiceInstance is a single backend endpoint for a named service.
type ServiceInstance struct {
	ID           string
	BaseURL      string
	Healthy      bool
	RegisteredAt time.Time
	Weight       int
	Metadata     map[string]string
}

// Strategy selects one instance from a candidate set. Implementations must
// be safe for concurrent use.
type Strategy interface {
	Select(instances []*ServiceInstance) *ServiceInstance
}

// StrategyName identifies a selection strategy for NewStrategy.
type StrategyName string

// Supported selection strategies.
const (
	RoundRobin         StrategyName = "RoundRobin"
	WeightedRoundRobin StrategyName = "WeightedRoundRobin"
	LeastConnections   StrategyName = "LeastConnections"
	Random             StrategyName = "Random"
)

// NewStrategy builds the named strategy, defaulting to RoundRobin for an
// unrecognized or empty name.
func NewStrategy(name StrategyName) Strategy {
	switch name {
	case WeightedRoundRobin:
		return newWeightedRoundRobin()
	case LeastConnections:
		return newLeastConnections()
	case Random:
		return newRandomStrategy()
	case RoundRobin, "":
		return newRoundRobin()
	default:
		return newRoundRobin()
	}
}

// serviceEntry tracks one service's instance list and its own strategy and
// round-robin state; mutation is serialized per service name as required by
// spec.md 4.2 ("Concurrent updates to the instance list are serialized per
// service name").
type serviceEntry struct {
	mu        sync.RWMutex
	instances []*ServiceInstance
	strategy  Strategy
}

// Registry is the per-service instance directory.
type Registry struct {
	logger   observability.Logger
	mu       sync.RWMutex
	services map[string]*serviceEntry
	routes   map[string]RouteDefinition
	strategy StrategyName
}

// Option configures a Registry.
type Option func(*Registry)

// WithStrategy sets the default selection strategy new services are
// created with.
func WithStrategy(name StrategyName) Option {
	return func(r *Registry) {
		r.strategy = name
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(logger observability.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = observability.NopLogger()
	}
	r := &Registry{
		logger:   logger,
		services: make(map[string]*serviceEntry),
		routes:   make(map[string]RouteDefinition),
		strategy: RoundRobin,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) entry(serviceName string, create bool) *serviceEntry {
	r.mu.RLock()
	e, ok := r.services[serviceName]
	r.mu.RUnlock()
	if ok || !create {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.services[serviceName]; ok {
		return e
	}
	e = &serviceEntry{strategy: NewStrategy(r.strategy)}
	r.services[serviceName] = e
	return e
}

// Register adds or replaces instance within serviceName's instance list.
func (r *Registry) Register(serviceName string, instance *ServiceInstance) error {
	if serviceName == "" || instance == nil || instance.ID == "" {
		return fmt.Errorf("registry: service name and instance id are required")
	}
	if instance.RegisteredAt.IsZero() {
		instance.RegisteredAt = time.Now().UTC()
	}

	e := r.entry(serviceName, true)
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, existing := range e.instances {
		if existing.ID == instance.ID {
			e.instances[i] = instance
			return nil
		}
	}
	e.instances = append(e.instances, instance)
	r.logger.Info("registered service instance",
		observability.String("service", serviceName),
		observability.String("instance", instance.ID),
	)
	return nil
}

// Deregister removes instanceID from serviceName's instance list.
func (r *Registry) Deregister(serviceName, instanceID string) error {
	e := r.entry(serviceName, false)
	if e == nil {
		return ErrServiceNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.instances {
		if existing.ID == instanceID {
			e.instances = append(e.instances[:i], e.instances[i+1:]...)
			return nil
		}
	}
	return ErrInstanceNotFound
}

// InstancesOf returns a snapshot of serviceName's instances.
func (r *Registry) InstancesOf(serviceName string) []*ServiceInstance {
	e := r.entry(serviceName, false)
	if e == nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*ServiceInstance, len(e.instances))
	copy(out, e.instances)
	return out
}

// UpdateHealth flips the healthy flag for a registered instance.
func (r *Registry) UpdateHealth(serviceName, instanceID string, healthy bool) error {
	e := r.entry(serviceName, false)
	if e == nil {
		return ErrServiceNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.instances {
		if existing.ID == instanceID {
			existing.Healthy = healthy
			return nil
		}
	}
	return ErrInstanceNotFound
}

// URLFor selects one instance's base URL for serviceName using the
// service's configured strategy. Healthy instances are preferred; if none
// are healthy the full (unhealthy) set is used as a last resort, per
// spec.md's ServiceInstance invariant and boundary behavior ("a service
// with zero healthy instances still returns a URL").
func (r *Registry) URLFor(serviceName string) (string, error) {
	e := r.entry(serviceName, false)
	if e == nil {
		return "", ErrServiceNotFound
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.instances) == 0 {
		return "", ErrServiceNotFound
	}

	candidates := make([]*ServiceInstance, 0, len(e.instances))
	for _, inst := range e.instances {
		if inst.Healthy {
			candidates = append(candidates, inst)
		}
	}
	if len(candidates) == 0 {
		candidates = e.instances
	}

	selected := e.strategy.Select(candidates)
	if selected == nil {
		return "", ErrServiceNotFound
	}
	return selected.BaseURL, nil
}

// RouteDefinition mirrors spec.md's data-model RouteDefinition entry. The
// registry keeps this table (distinct from internal/router's compiled
// pattern table) purely for introspection/listing — e.g. the `GET /`
// control endpoint's route count — and for callers that want the
// registered shape without a compiled matcher.
type RouteDefinition struct {
	ID                 string
	Pattern            string
	ServiceName        string
	BaseURL            string
	TargetPathTemplate string
	AllowedMethods     []string
	RequiredScopes     []string
	Priority           int
	Timeout            time.Duration
	Active             bool
}

// RegisterRoute records rd, replacing any prior registration with the same
// ID in place (invariant #2: idempotent route registration — registering
// the same id twice leaves exactly one entry with the latest contents).
func (r *Registry) RegisterRoute(rd RouteDefinition) error {
	if rd.ID == "" {
		return fmt.Errorf("registry: route id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[rd.ID] = rd
	return nil
}

// UnregisterRoute removes a previously registered route definition.
func (r *Registry) UnregisterRoute(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.routes, id)
}

// RouteDefinitions returns a snapshot of all registered route definitions.
func (r *Registry) RouteDefinitions() []RouteDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RouteDefinition, 0, len(r.routes))
	for _, rd := range r.routes {
		out = append(out, rd)
	}
	return out
}
