package detect_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shipit-dev/shipit/pkg/detect"
	"github.com/shipit-dev/shipit/pkg/state"
)

var _ = Describe("Detector", func() {
	var (
		dir      string
		detector *detect.Detector
	)

	write := func(rel, content string) {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		Expect(os.MkdirAll(filepath.Dir(path), 0755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		detector = &detect.Detector{IgnoreFile: ".shipignore"}
		write("main.go", "package main")
	})

	It("should report a never-built directory as changed", func() {
		changed, digest, err := detector.Changed(dir, "svca", state.New())
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
		Expect(digest).NotTo(BeEmpty())
	})

	It("should report an unchanged directory as unchanged", func() {
		st := state.New()
		_, digest, err := detector.Changed(dir, "svca", st)
		Expect(err).NotTo(HaveOccurred())
		st.Put("svca", digest)

		changed, _, err := detector.Changed(dir, "svca", st)
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeFalse())
	})

	It("should report a modified directory as changed", func() {
		st := state.New()
		_, digest, err := detector.Changed(dir, "svca", st)
		Expect(err).NotTo(HaveOccurred())
		st.Put("svca", digest)

		write("main.go", "package main // edited")

		changed, _, err := detector.Changed(dir, "svca", st)
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
	})

	It("should never mutate the store", func() {
		st := state.New()
		_, _, err := detector.Changed(dir, "svca", st)
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Len()).To(BeZero())
	})

	It("should honor the directory's ignore file", func() {
		write(".shipignore", "tmp/\n")
		write("tmp/scratch", "v1")

		st := state.New()
		_, digest, err := detector.Changed(dir, "svca", st)
		Expect(err).NotTo(HaveOccurred())
		st.Put("svca", digest)

		write("tmp/scratch", "v2")

		changed, _, err := detector.Changed(dir, "svca", st)
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeFalse())
	})
})
