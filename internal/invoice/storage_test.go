package invoice

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage *LocalStorage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "files"))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		It("should write the file under the base path", func() {
			name, err := storage.Save("a_factura.sql", []byte("SELECT 1;"))
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("a_factura.sql"))

			data, err := os.ReadFile(filepath.Join(tmpDir, "files", "a_factura.sql"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("SELECT 1;"))
		})

		It("should reject names that leave the base path", func() {
			_, err := storage.Save("../escape.sql", []byte("x"))
			Expect(err).To(HaveOccurred())
			Expect(filepath.Join(tmpDir, "escape.sql")).NotTo(BeAnExistingFile())
		})

		It("should reject empty names", func() {
			_, err := storage.Save("", []byte("x"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Get", func() {
		It("should read a saved file", func() {
			_, err := storage.Save("f.txt", []byte("hola"))
			Expect(err).NotTo(HaveOccurred())

			data, err := storage.Get("f.txt")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("hola"))
		})

		It("should return not found for a missing file", func() {
			_, err := storage.Get("missing.txt")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("should reject nested paths", func() {
			_, err := storage.Get(`sub\f.txt`)
			Expect(err).To(HaveOccurred())
			Expect(err).NotTo(MatchError(ErrNotFound))
		})
	})

	Describe("Delete", func() {
		It("should remove a saved file", func() {
			_, err := storage.Save("f.txt", []byte("hola"))
			Expect(err).NotTo(HaveOccurred())

			Expect(storage.Delete("f.txt")).To(Succeed())
			Expect(filepath.Join(tmpDir, "files", "f.txt")).NotTo(BeAnExistingFile())
		})

		It("should fail for a missing file", func() {
			Expect(storage.Delete("missing.txt")).NotTo(Succeed())
		})
	})
})
