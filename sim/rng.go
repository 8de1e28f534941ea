package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync/atomic"
)

// SimulationKey is the master seed of a run. Equal keys and equal inputs
// replay the same simulation draw for draw.
type SimulationKey int64

// NewSimulationKey wraps a seed.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// Random stream names.
const (
	// SubsystemArrivals drives arrival gaps. It is seeded with the key itself.
	SubsystemArrivals = "arrivals"
	// SubsystemInfection drives the infection draw on every exposure.
	SubsystemInfection = "infection"
)

// SubsystemEnvironment names the stream private to one microenvironment.
func SubsystemEnvironment(name string) string {
	return fmt.Sprintf("environment_%s", name)
}

// PartitionedRNG splits one SimulationKey into independent named streams, so
// extra draws in one part of the model never shift another part's sequence.
// A stream's seed is the key XOR the FNV-1a hash of its name; the arrivals
// stream uses the key unchanged.
//
// Not safe for concurrent use. Within a simulation only one process runs at
// a time, which is sufficient.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates the streams of key lazily.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{key: key, streams: make(map[string]*rand.Rand)}
}

// ForSubsystem returns the stream called name, creating it on first use.
// Repeated calls return the same *rand.Rand.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if r, ok := p.streams[name]; ok {
		return r
	}
	r := rand.New(rand.NewSource(p.seedFor(name)))
	p.streams[name] = r
	return r
}

func (p *PartitionedRNG) seedFor(name string) int64 {
	if name == SubsystemArrivals {
		return int64(p.key)
	}
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(p.key) ^ int64(h.Sum64())
}

// Key returns the master seed.
func (p *PartitionedRNG) Key() SimulationKey { return p.key }

// IDGen hands out unique, increasing identifiers. One generator is owned by
// each simulation and passed to the constructors that need IDs, so independent
// runs never share a counter.
type IDGen struct {
	next atomic.Int64
}

// NewIDGen creates a generator whose first ID is 0.
func NewIDGen() *IDGen {
	return &IDGen{}
}

// Next returns a fresh identifier.
func (g *IDGen) Next() int64 {
	return g.next.Add(1) - 1
}
