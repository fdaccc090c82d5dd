package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lighthouse.app/cityintel/core/config"
)

var _ = Describe("Load", func() {
	BeforeEach(func() {
		// Any env other than development skips .env loading.
		GinkgoT().Setenv("LIGHTHOUSE_ENV", "test")
	})

	It("requires an OpenAI key", func() {
		GinkgoT().Setenv("OPENAI_API_KEY", "")
		_, err := config.Load(config.ServiceTypeServer)
		Expect(err).To(MatchError(ContainSubstring("OPENAI_API_KEY")))
	})

	It("applies defaults", func() {
		GinkgoT().Setenv("OPENAI_API_KEY", "sk-test")

		cfg, err := config.Load(config.ServiceTypeServer)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Port).To(Equal("8080"))
		Expect(cfg.Pipeline.CacheTTL).To(Equal(5 * time.Minute))
		Expect(cfg.Pipeline.FetchStagger).To(Equal(100 * time.Millisecond))
		Expect(cfg.Pipeline.PastIssuesLimit).To(Equal(50))
		Expect(cfg.Sources.GovBudget).To(Equal(90 * time.Second))
		Expect(cfg.Redis.PastIssuesKey).To(Equal("lighthouse_past_issues"))
		Expect(cfg.Archive.Driver).To(Equal(config.ArchiveDriverSQLite))
		Expect(cfg.Redis.Enabled()).To(BeFalse())
		Expect(cfg.MinIO.Enabled()).To(BeFalse())
	})

	It("rejects an unknown archive driver", func() {
		GinkgoT().Setenv("OPENAI_API_KEY", "sk-test")
		GinkgoT().Setenv("ARCHIVE_DRIVER", "mongo")

		_, err := config.Load(config.ServiceTypeServer)
		Expect(err).To(MatchError(ContainSubstring("ARCHIVE_DRIVER")))
	})

	It("disables the marathon loop with a zero interval", func() {
		GinkgoT().Setenv("OPENAI_API_KEY", "sk-test")
		GinkgoT().Setenv("MARATHON_INTERVAL_SECONDS", "0")

		cfg, err := config.Load(config.ServiceTypeServer)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Pipeline.MarathonEnabled()).To(BeFalse())
	})
})

var _ = Describe("Catalog", func() {
	It("loads the embedded catalog for all three areas", func() {
		catalog, err := config.LoadCatalog("")
		Expect(err).NotTo(HaveOccurred())

		for _, area := range []string{"PS", "IU", "LZ"} {
			Expect(catalog.Datasets).To(HaveKey(area))
			Expect(catalog.News.Keywords).To(HaveKey(area))
			Expect(catalog.Gov).To(HaveKey(area))
		}
		Expect(catalog.Datasets["PS"].CacheKey).To(Equal("PS_DATA"))
		Expect(catalog.Datasets["PS"].Datasets).To(HaveLen(2))
		Expect(catalog.News.MaxArticles).To(Equal(5))
	})

	It("fills dataset defaults", func() {
		catalog, err := config.ParseCatalog([]byte(`
datasets:
  LZ:
    datasets:
      - id: abcd-1234
        dateField: filed_date
`))
		Expect(err).NotTo(HaveOccurred())

		group := catalog.Datasets["LZ"]
		Expect(group.CacheKey).To(Equal("LZ_DATA"))
		Expect(group.Datasets[0].Limit).To(Equal(50))
		Expect(group.Datasets[0].OrderField).To(Equal("filed_date"))
		Expect(group.Datasets[0].Key).To(Equal("abcd-1234"))
	})

	It("rejects datasets without an id", func() {
		_, err := config.ParseCatalog([]byte("datasets:\n  PS:\n    datasets:\n      - name: nameless\n"))
		Expect(err).To(MatchError(ContainSubstring("has no id")))
	})

	It("reads a catalog file from disk", func() {
		path := filepath.Join(GinkgoT().TempDir(), "sources.yaml")
		Expect(os.WriteFile(path, []byte("news:\n  maxArticles: 3\n"), 0o600)).To(Succeed())

		catalog, err := config.LoadCatalog(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(catalog.News.MaxArticles).To(Equal(3))
	})
})
