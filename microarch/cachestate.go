package microarch

import "github.com/sarchlab/wcet/platform"

// CacheLevelState is one configured cache level's array of congruence
// sets, sized from platform.CacheLevelConfig.
type CacheLevelState struct {
	Config *platform.CacheLevelConfig
	Sets   []CacheSet
}

func newCacheLevelState(cfg *platform.CacheLevelConfig) *CacheLevelState {
	if cfg == nil {
		return nil
	}
	numSets := cfg.NumSets()
	if numSets == 0 {
		numSets = 1
	}
	sets := make([]CacheSet, numSets)
	for i := range sets {
		sets[i] = NewCacheSet(cfg.Associativity)
	}
	return &CacheLevelState{Config: cfg, Sets: sets}
}

func (l *CacheLevelState) clone() *CacheLevelState {
	if l == nil {
		return nil
	}
	sets := make([]CacheSet, len(l.Sets))
	for i, s := range l.Sets {
		sets[i] = s.Clone()
	}
	return &CacheLevelState{Config: l.Config, Sets: sets}
}

func (l *CacheLevelState) setIndex(block MemoryBlock) int {
	if len(l.Sets) == 0 {
		return 0
	}
	return int(uint64(block) % uint64(len(l.Sets)))
}

// Access performs a cache access at the given block, updating ages and
// returning the classification the access would have had beforehand.
func (l *CacheLevelState) Access(block MemoryBlock) AccessClass {
	idx := l.setIndex(block)
	return l.Sets[idx].Access(block, l.Config.Associativity)
}

// Classify reports the access class without mutating state.
func (l *CacheLevelState) Classify(block MemoryBlock) AccessClass {
	idx := l.setIndex(block)
	return l.Sets[idx].Classify(block, l.Config.Associativity)
}

func (l *CacheLevelState) isJoinable(other *CacheLevelState) bool {
	if (l == nil) != (other == nil) {
		return false
	}
	if l == nil {
		return true
	}
	if len(l.Sets) != len(other.Sets) {
		return false
	}
	for i := range l.Sets {
		if !l.Sets[i].IsJoinable(other.Sets[i]) {
			return false
		}
	}
	return true
}

func (l *CacheLevelState) join(other *CacheLevelState) *CacheLevelState {
	if l == nil || other == nil {
		return nil
	}
	out := &CacheLevelState{Config: l.Config, Sets: make([]CacheSet, len(l.Sets))}
	for i := range l.Sets {
		out.Sets[i] = l.Sets[i].Join(other.Sets[i])
	}
	return out
}

func (l *CacheLevelState) hash() uint64 {
	if l == nil {
		return 0
	}
	var h uint64 = 1469598103934665603
	for _, s := range l.Sets {
		h = fnvMix(h, s.Hash())
	}
	return h
}

// CacheState is the full cache hierarchy's abstract state: instruction,
// data, and an optional unified L2, per platform.CacheConfig.
type CacheState struct {
	Instruction *CacheLevelState
	Data        *CacheLevelState
	L2          *CacheLevelState
}

// NewCacheState builds an empty (cold) cache state for the platform's
// configured hierarchy.
func NewCacheState(cfg platform.CacheConfig) CacheState {
	return CacheState{
		Instruction: newCacheLevelState(cfg.Instruction),
		Data:        newCacheLevelState(cfg.Data),
		L2:          newCacheLevelState(cfg.L2),
	}
}

func (c CacheState) Clone() CacheState {
	return CacheState{
		Instruction: c.Instruction.clone(),
		Data:        c.Data.clone(),
		L2:          c.L2.clone(),
	}
}

func (c CacheState) IsJoinable(other CacheState) bool {
	return c.Instruction.isJoinable(other.Instruction) &&
		c.Data.isJoinable(other.Data) &&
		c.L2.isJoinable(other.L2)
}

func (c CacheState) Join(other CacheState) CacheState {
	return CacheState{
		Instruction: c.Instruction.join(other.Instruction),
		Data:        c.Data.join(other.Data),
		L2:          c.L2.join(other.L2),
	}
}

func (c CacheState) Hash() uint64 {
	h := uint64(1469598103934665603)
	h = fnvMix(h, c.Instruction.hash())
	h = fnvMix(h, c.Data.hash())
	h = fnvMix(h, c.L2.hash())
	return h
}
