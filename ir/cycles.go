package ir

// Cycles is a best-case/worst-case cycle pair. Invariant: BestCase <=
// WorstCase. Sums over a block are componentwise, the way the teacher
// sums register-lane values in cgra.Data.
type Cycles struct {
	BestCase  uint64
	WorstCase uint64
}

// NewCycles builds a Cycles pair, clamping BestCase down to WorstCase if
// the caller passes an inconsistent pair rather than panicking — platform
// timing tables are external data and should degrade safely.
func NewCycles(best, worst uint64) Cycles {
	if best > worst {
		best = worst
	}
	return Cycles{BestCase: best, WorstCase: worst}
}

// Add returns the componentwise sum of two Cycles.
func (c Cycles) Add(other Cycles) Cycles {
	return Cycles{
		BestCase:  c.BestCase + other.BestCase,
		WorstCase: c.WorstCase + other.WorstCase,
	}
}

// SumCycles folds Add over a slice, starting from the zero value.
func SumCycles(cs []Cycles) Cycles {
	var total Cycles
	for _, c := range cs {
		total = total.Add(c)
	}
	return total
}
