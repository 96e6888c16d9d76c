package ignore_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shipit-dev/shipit/pkg/ignore"
)

var _ = Describe("Parse", func() {
	It("should skip comments and blank lines", func() {
		rs := ignore.Parse("# a comment\n\n   \n# another\n")
		Expect(rs.Len()).To(BeZero())
	})

	It("should trim surrounding whitespace before classifying", func() {
		rs := ignore.Parse("  build/  \n")
		Expect(rs.Match("build", true)).To(Equal(ignore.Prune))
	})

	It("should ignore a bare separator line", func() {
		rs := ignore.Parse("/\n")
		Expect(rs.Len()).To(BeZero())
	})
})

var _ = Describe("Match", func() {
	Context("with a directory-prune rule", func() {
		rs := ignore.Parse("build/\n")

		It("should prune a matching directory at the top level", func() {
			Expect(rs.Match("build", true)).To(Equal(ignore.Prune))
		})

		It("should prune a matching directory at any depth", func() {
			Expect(rs.Match("sub/build", true)).To(Equal(ignore.Prune))
		})

		It("should not exclude a file with the same name", func() {
			Expect(rs.Match("build", false)).To(Equal(ignore.Include))
		})

		It("should not match a different directory", func() {
			Expect(rs.Match("src", true)).To(Equal(ignore.Include))
		})
	})

	Context("with a dotted rule", func() {
		rs := ignore.Parse(".log\n")

		It("should exclude files by extension at any depth", func() {
			Expect(rs.Match("app.log", false)).To(Equal(ignore.Exclude))
			Expect(rs.Match("sub/deep/app.log", false)).To(Equal(ignore.Exclude))
		})

		It("should exclude the bare dotted name", func() {
			Expect(rs.Match(".log", false)).To(Equal(ignore.Exclude))
		})

		It("should not match a partial extension", func() {
			Expect(rs.Match("app.logs", false)).To(Equal(ignore.Include))
		})

		It("should prune a matching directory", func() {
			Expect(rs.Match("cache.log", true)).To(Equal(ignore.Prune))
		})
	})

	Context("with a plain name rule", func() {
		rs := ignore.Parse("README.md\nnode_modules\n")

		It("should exclude a matching file at any depth", func() {
			Expect(rs.Match("README.md", false)).To(Equal(ignore.Exclude))
			Expect(rs.Match("docs/README.md", false)).To(Equal(ignore.Exclude))
		})

		It("should match on base name only, without glob expansion", func() {
			Expect(rs.Match("README.md.bak", false)).To(Equal(ignore.Include))
		})

		It("should prune a matching directory", func() {
			Expect(rs.Match("node_modules", true)).To(Equal(ignore.Prune))
			Expect(rs.Match("web/node_modules", true)).To(Equal(ignore.Prune))
		})
	})

	Context("version control metadata", func() {
		It("should always prune .git, even with no rules", func() {
			rs := ignore.Parse("")
			Expect(rs.Match(".git", true)).To(Equal(ignore.Prune))
		})
	})
})

var _ = Describe("ReadRules", func() {
	It("should yield an empty rule set when the ignore file is absent", func() {
		dir := GinkgoT().TempDir()
		rs, err := ignore.ReadRules(dir, ".shipignore")
		Expect(err).NotTo(HaveOccurred())
		Expect(rs.Len()).To(BeZero())
	})

	It("should read rules from the directory's ignore file", func() {
		dir := GinkgoT().TempDir()
		err := os.WriteFile(filepath.Join(dir, ".shipignore"), []byte("vendor/\n.tmp\n"), 0644)
		Expect(err).NotTo(HaveOccurred())

		rs, err := ignore.ReadRules(dir, ".shipignore")
		Expect(err).NotTo(HaveOccurred())
		Expect(rs.Len()).To(Equal(2))
		Expect(rs.Match("vendor", true)).To(Equal(ignore.Prune))
		Expect(rs.Match("scratch.tmp", false)).To(Equal(ignore.Exclude))
	})
})
