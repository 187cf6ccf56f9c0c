package host

import (
	"fmt"
	"math"
	"sync"
)

// Memory is an in-process DataAccess backed by a map. Only refs that have
// been defined exist; writes to undefined refs fail like they would in the
// simulator.
type Memory struct {
	mu     sync.Mutex
	values map[string]float64
	writes int
}

// NewMemory returns an empty host.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]float64)}
}

// NewSimulatorMemory returns a host publishing every required dataref, with
// the view set to the 3D cockpit.
func NewSimulatorMemory() *Memory {
	m := NewMemory()
	for _, ref := range RequiredRefs {
		m.Define(ref, 0)
	}
	m.Define(RefViewType, 1026)
	return m
}

// Define creates or overwrites a ref without counting it as a write.
func (m *Memory) Define(ref string, v float64) {
	m.mu.Lock()
	m.values[ref] = v
	m.mu.Unlock()
}

// Remove deletes a ref.
func (m *Memory) Remove(ref string) {
	m.mu.Lock()
	delete(m.values, ref)
	m.mu.Unlock()
}

// Writes returns the number of successful Set calls.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Values returns a copy of every defined ref.
func (m *Memory) Values() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

func (m *Memory) Has(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[ref]
	return ok
}

func (m *Memory) GetFloat(ref string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[ref]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingDataRef, ref)
	}
	return v, nil
}

func (m *Memory) GetInt(ref string) (int, error) {
	v, err := m.GetFloat(ref)
	if err != nil {
		return 0, err
	}
	return int(math.Round(v)), nil
}

func (m *Memory) SetFloat(ref string, v float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[ref]; !ok {
		return fmt.Errorf("%w: %s", ErrMissingDataRef, ref)
	}
	m.values[ref] = v
	m.writes++
	return nil
}

func (m *Memory) SetInt(ref string, v int) error {
	return m.SetFloat(ref, float64(v))
}
