package microarch_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/wcet/microarch"
)

var _ = Describe("CacheSet", func() {
	It("misses on a block never seen", func() {
		s := microarch.NewCacheSet(2)
		Expect(s.Classify(microarch.MemoryBlock(1), 2)).To(Equal(microarch.AlwaysMiss))
	})

	It("hits on a just-accessed block", func() {
		s := microarch.NewCacheSet(2)
		s.Access(microarch.MemoryBlock(1), 2)
		Expect(s.Classify(microarch.MemoryBlock(1), 2)).To(Equal(microarch.AlwaysHit))
	})

	It("evicts (drops) a block aged past twice associativity", func() {
		s := microarch.NewCacheSet(1)
		s.Access(microarch.MemoryBlock(1), 1)
		for i := 0; i < 5; i++ {
			s.Access(microarch.MemoryBlock(uint64(i)+100), 1)
		}
		Expect(s.Classify(microarch.MemoryBlock(1), 1)).To(Equal(microarch.AlwaysMiss))
	})

	It("joins must as intersection and may as union", func() {
		a := microarch.NewCacheSet(2)
		a.Access(microarch.MemoryBlock(1), 2)
		b := microarch.NewCacheSet(2)
		b.Access(microarch.MemoryBlock(2), 2)

		joined := a.Join(b)
		// Neither block is in both musts, so neither is AlwaysHit in the
		// joined must, but both should be reachable via may (Unknown
		// rather than AlwaysMiss).
		Expect(joined.Classify(microarch.MemoryBlock(1), 2)).To(Equal(microarch.Unknown))
		Expect(joined.Classify(microarch.MemoryBlock(2), 2)).To(Equal(microarch.Unknown))
		Expect(joined.Classify(microarch.MemoryBlock(3), 2)).To(Equal(microarch.AlwaysMiss))
	})

	It("keeps a block in the joined must when present in both sides", func() {
		a := microarch.NewCacheSet(2)
		a.Access(microarch.MemoryBlock(1), 2)
		b := microarch.NewCacheSet(2)
		b.Access(microarch.MemoryBlock(1), 2)

		joined := a.Join(b)
		Expect(joined.Classify(microarch.MemoryBlock(1), 2)).To(Equal(microarch.AlwaysHit))
	})

	It("produces a stable hash for equal contents", func() {
		a := microarch.NewCacheSet(2)
		a.Access(microarch.MemoryBlock(7), 2)
		b := microarch.NewCacheSet(2)
		b.Access(microarch.MemoryBlock(7), 2)
		Expect(a.Hash()).To(Equal(b.Hash()))
	})
})
