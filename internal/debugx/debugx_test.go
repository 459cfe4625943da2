package debugx_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/james-lawrence/tpm/internal/debugx"
)

var _ = Describe("DumpRoutines", func() {
	It("should write the goroutine stacks into the directory", func() {
		dir := GinkgoT().TempDir()
		path, err := debugx.DumpRoutines(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(filepath.Dir(path)).To(Equal(dir))

		encoded, err := os.ReadFile(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(encoded)).To(ContainSubstring("goroutine"))
	})

	It("should fail for a missing directory", func() {
		_, err := debugx.DumpRoutines(filepath.Join(GinkgoT().TempDir(), "missing"))
		Expect(err).To(HaveOccurred())
	})
})
