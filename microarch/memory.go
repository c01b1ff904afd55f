package microarch

import "github.com/sarchlab/wcet/platform"

// PendingAccess is one in-flight load or store occupying a memory
// system buffer slot.
type PendingAccess struct {
	Block           MemoryBlock
	CyclesRemaining uint64
}

// MemorySystemState tracks the load and store buffers feeding the
// memory stage, per spec.md §3. IssueLoad and IssueStore refuse a full
// buffer (returning false) rather than growing it past its capacity.
type MemorySystemState struct {
	LoadBufferCap  int
	StoreBufferCap int
	LoadBuffer     []PendingAccess
	StoreBuffer    []PendingAccess
}

func NewMemorySystemState(cfg platform.MemoryConfig) MemorySystemState {
	return MemorySystemState{
		LoadBufferCap:  cfg.LoadBufferSize,
		StoreBufferCap: cfg.StoreBufferSize,
	}
}

func (m MemorySystemState) Clone() MemorySystemState {
	out := m
	out.LoadBuffer = append([]PendingAccess(nil), m.LoadBuffer...)
	out.StoreBuffer = append([]PendingAccess(nil), m.StoreBuffer...)
	return out
}

// LoadBufferFull reports whether issuing another load would overflow
// the configured buffer (0 capacity means unbounded).
func (m MemorySystemState) LoadBufferFull() bool {
	return m.LoadBufferCap > 0 && len(m.LoadBuffer) >= m.LoadBufferCap
}

func (m MemorySystemState) StoreBufferFull() bool {
	return m.StoreBufferCap > 0 && len(m.StoreBuffer) >= m.StoreBufferCap
}

// IssueLoad enqueues a pending load, if the buffer has room.
func (m *MemorySystemState) IssueLoad(block MemoryBlock, latency uint64) bool {
	if m.LoadBufferFull() {
		return false
	}
	m.LoadBuffer = append(m.LoadBuffer, PendingAccess{Block: block, CyclesRemaining: latency})
	return true
}

func (m *MemorySystemState) IssueStore(block MemoryBlock, latency uint64) bool {
	if m.StoreBufferFull() {
		return false
	}
	m.StoreBuffer = append(m.StoreBuffer, PendingAccess{Block: block, CyclesRemaining: latency})
	return true
}

// Tick advances every pending access by one cycle and drains any that
// complete.
func (m *MemorySystemState) Tick() {
	m.LoadBuffer = tickBuffer(m.LoadBuffer)
	m.StoreBuffer = tickBuffer(m.StoreBuffer)
}

func tickBuffer(buf []PendingAccess) []PendingAccess {
	out := buf[:0]
	for _, p := range buf {
		if p.CyclesRemaining == 0 {
			continue
		}
		p.CyclesRemaining--
		if p.CyclesRemaining > 0 {
			out = append(out, p)
		}
	}
	return out
}

// IsJoinable reports whether two memory-system states were configured
// with the same buffer capacities.
func (m MemorySystemState) IsJoinable(other MemorySystemState) bool {
	return m.LoadBufferCap == other.LoadBufferCap && m.StoreBufferCap == other.StoreBufferCap
}

// Join unions pending accesses from both sides, capped at the
// configured capacity (overflow is dropped conservatively rather than
// exceeding the modeled buffer size).
func (m MemorySystemState) Join(other MemorySystemState) MemorySystemState {
	out := MemorySystemState{LoadBufferCap: m.LoadBufferCap, StoreBufferCap: m.StoreBufferCap}
	out.LoadBuffer = joinBuffers(m.LoadBuffer, other.LoadBuffer, m.LoadBufferCap)
	out.StoreBuffer = joinBuffers(m.StoreBuffer, other.StoreBuffer, m.StoreBufferCap)
	return out
}

func joinBuffers(a, b []PendingAccess, cap int) []PendingAccess {
	out := append([]PendingAccess(nil), a...)
	out = append(out, b...)
	if cap > 0 && len(out) > cap {
		out = out[:cap]
	}
	return out
}

func (m MemorySystemState) Hash() uint64 {
	h := uint64(1469598103934665603)
	for _, p := range m.LoadBuffer {
		h = fnvMix(h, uint64(p.Block))
		h = fnvMix(h, p.CyclesRemaining)
	}
	for _, p := range m.StoreBuffer {
		h = fnvMix(h, uint64(p.Block)+1)
		h = fnvMix(h, p.CyclesRemaining)
	}
	return h
}
