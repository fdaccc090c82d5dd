package cache_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lighthouse.app/cityintel/internal/cache"
)

var _ = Describe("Cache", func() {
	var (
		now time.Time
		c   *cache.Cache
	)

	BeforeEach(func() {
		now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		c = cache.New(5*time.Minute, cache.WithClock(func() time.Time { return now }))
	})

	It("returns a value stored within the TTL", func() {
		c.Set("PS_DATA", `{"a":1}`)
		now = now.Add(4 * time.Minute)

		v, ok := c.Get("PS_DATA")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(`{"a":1}`))
	})

	It("treats entries older than the TTL as absent and evicts them", func() {
		c.Set("PS_DATA", `{"a":1}`)
		now = now.Add(5*time.Minute + time.Second)

		_, ok := c.Get("PS_DATA")
		Expect(ok).To(BeFalse())
		Expect(c.Len()).To(Equal(0))
	})

	It("reports absent keys", func() {
		_, ok := c.Get("IU_DATA")
		Expect(ok).To(BeFalse())
	})

	Describe("Changed", func() {
		It("is true when no entry exists", func() {
			Expect(c.Changed("LZ_DATA", "x")).To(BeTrue())
		})

		It("compares content hashes", func() {
			c.Set("LZ_DATA", "payload")
			Expect(c.Changed("LZ_DATA", "payload")).To(BeFalse())
			Expect(c.Changed("LZ_DATA", "payload-2")).To(BeTrue())
		})

		It("sees differences beyond the first thousand characters", func() {
			prefix := string(make([]byte, 1200))
			c.Set("LZ_DATA", prefix+"a")
			Expect(c.Changed("LZ_DATA", prefix+"b")).To(BeTrue())
		})
	})

	It("clears every key", func() {
		for _, key := range []string{"PS_DATA", "IU_DATA", "LZ_DATA"} {
			c.Set(key, key)
		}
		c.Clear()

		for _, key := range []string{"PS_DATA", "IU_DATA", "LZ_DATA"} {
			_, ok := c.Get(key)
			Expect(ok).To(BeFalse())
		}
	})

	It("falls back to the default TTL", func() {
		c = cache.New(0, cache.WithClock(func() time.Time { return now }))
		c.Set("k", "v")
		now = now.Add(cache.DefaultTTL - time.Second)
		_, ok := c.Get("k")
		Expect(ok).To(BeTrue())
	})
})
