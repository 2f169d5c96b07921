package registry

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// roundRobinStrategy cycles through instances in order.
type roundRobinStrategy struct {
	counter uint64
}

func newRoundRobin() *roundRobinStrategy {
	return &roundRobinStrategy{}
}

func (s *roundRobinStrategy) Select(instances []*ServiceInstance) *ServiceInstance {
	if len(instances) == 0 {
		return nil
	}
	idx := atomic.AddUint64(&s.counter, 1) % uint64(len(instances))
	return instances[idx]
}

// weightedRoundRobinStrategy implements smooth weighted round-robin,
// falling back to plain round-robin when every candidate carries weight 0.
type weightedRoundRobinStrategy struct {
	mu            sync.Mutex
	currentWeight int
	index         int
}

func newWeightedRoundRobin() *weightedRoundRobinStrategy {
	return &weightedRoundRobinStrategy{index: -1}
}

func (s *weightedRoundRobinStrategy) Select(instances []*ServiceInstance) *ServiceInstance {
	if len(instances) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g := weightGCD(instances)
	maxWeight := weightMax(instances)

	if maxWeight == 0 || g == 0 {
		s.index = (s.index + 1) % len(instances)
		return instances[s.index]
	}

	maxIterations := len(instances) * (maxWeight/g + 1)
	for i := 0; i < maxIterations; i++ {
		s.index = (s.index + 1) % len(instances)
		if s.index == 0 {
			s.currentWeight -= g
			if s.currentWeight <= 0 {
				s.currentWeight = maxWeight
			}
		}
		if instanceWeight(instances[s.index]) >= s.currentWeight {
			return instances[s.index]
		}
	}
	return instances[0]
}

// instanceWeight returns an instance's configured weight, preferring the
// struct field and falling back to a "weight" metadata key (spec.md 3.1:
// weighted-round-robin consults Metadata["weight"]).
func instanceWeight(inst *ServiceInstance) int {
	if inst.Weight > 0 {
		return inst.Weight
	}
	if inst.Metadata != nil {
		if w, ok := inst.Metadata["weight"]; ok {
			n := 0
			for _, c := range w {
				if c < '0' || c > '9' {
					return 0
				}
				n = n*10 + int(c-'0')
			}
			return n
		}
	}
	return 0
}

func weightGCD(instances []*ServiceInstance) int {
	if len(instances) == 0 {
		return 1
	}
	result := instanceWeight(instances[0])
	for i := 1; i < len(instances); i++ {
		result = gcd(result, instanceWeight(instances[i]))
	}
	if result == 0 {
		return 1
	}
	return result
}

func weightMax(instances []*ServiceInstance) int {
	max := 0
	for _, inst := range instances {
		if w := instanceWeight(inst); w > max {
			max = w
		}
	}
	return max
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// leastConnectionsStrategy tracks in-flight selections per instance id and
// always picks the instance with the fewest outstanding connections.
type leastConnectionsStrategy struct {
	mu          sync.Mutex
	connections map[string]*int64
}

func newLeastConnections() *leastConnectionsStrategy {
	return &leastConnectionsStrategy{connections: make(map[string]*int64)}
}

func (s *leastConnectionsStrategy) Select(instances []*ServiceInstance) *ServiceInstance {
	if len(instances) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var selected *ServiceInstance
	var minConns int64 = -1
	for _, inst := range instances {
		counter, ok := s.connections[inst.ID]
		if !ok {
			var zero int64
			counter = &zero
			s.connections[inst.ID] = counter
		}
		conns := atomic.LoadInt64(counter)
		if minConns == -1 || conns < minConns {
			minConns = conns
			selected = inst
		}
	}
	if selected != nil {
		atomic.AddInt64(s.connections[selected.ID], 1)
	}
	return selected
}

// Release decrements the in-flight count recorded for inst, to be called
// once the proxied call completes.
func (s *leastConnectionsStrategy) Release(inst *ServiceInstance) {
	if inst == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if counter, ok := s.connections[inst.ID]; ok {
		atomic.AddInt64(counter, -1)
	}
}

// randomStrategy picks a uniformly random instance.
type randomStrategy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newRandomStrategy() *randomStrategy {
	//nolint:gosec // weak random is acceptable for load balancing
	return &randomStrategy{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *randomStrategy) Select(instances []*ServiceInstance) *ServiceInstance {
	if len(instances) == 0 {
		return nil
	}
	s.mu.Lock()
	idx := s.rng.Intn(len(instances))
	s.mu.Unlock()
	return instances[idx]
}
