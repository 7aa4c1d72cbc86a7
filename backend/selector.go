package backend

// Selector resolves "the current backend" once per call: the distributed
// store when it is configured and healthy, the local fallback otherwise.
//
// No migration between backends is attempted. Sessions created on the local
// fallback during an outage stay there and are orphaned once the distributed
// backend recovers; they age out through their own TTLs. This is a deliberate
// availability-over-consistency trade-off.
type Selector struct {
	distributed *Redis
	local       *Memory
}

// NewSelector pairs an optional distributed backend with the mandatory local
// one. distributed may be nil for a local-only deployment.
func NewSelector(distributed *Redis, local *Memory) *Selector {
	if local == nil {
		local = NewMemory()
	}
	return &Selector{distributed: distributed, local: local}
}

// Current returns the backend all reads and writes of this call should use.
func (s *Selector) Current() Backend {
	if s.distributed != nil && s.distributed.Healthy() {
		return s.distributed
	}
	return s.local
}

// UsingFallback reports whether Current would route to the local store even
// though a distributed backend is configured.
func (s *Selector) UsingFallback() bool {
	return s.distributed != nil && !s.distributed.Healthy()
}

// Distributed exposes the distributed backend for health probing; nil in
// local-only deployments.
func (s *Selector) Distributed() *Redis {
	return s.distributed
}
