package scanning

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type runCall struct {
	name string
	args []string
}

// mockRunner answers tesseract calls with canned output per language
type mockRunner struct {
	outputs map[string]string
	err     error
	calls   []runCall
	sawFile bool
}

func (m *mockRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	m.calls = append(m.calls, runCall{name: name, args: args})
	if _, err := os.Stat(args[0]); err == nil {
		m.sawFile = true
	}
	if m.err != nil {
		return nil, []byte("Error opening data file"), m.err
	}
	lang := ""
	for i, a := range args {
		if a == "-l" && i+1 < len(args) {
			lang = args[i+1]
		}
	}
	return []byte(m.outputs[lang]), nil, nil
}

func testPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, 4, color.Black)
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Tesseract", func() {
	var (
		runner  *mockRunner
		cfg     TesseractConfig
		scanner *Tesseract
		doc     *Document
		err     error
	)

	BeforeEach(func() {
		runner = &mockRunner{outputs: map[string]string{}}
		cfg = TesseractConfig{}
	})

	JustBeforeEach(func() {
		var newErr error
		scanner, newErr = NewTesseractWithRunner(cfg, runner)
		Expect(newErr).NotTo(HaveOccurred())
		doc, err = scanner.ScanText(testPNG(), "image/png")
	})

	When("the Spanish pass reads more words", func() {
		BeforeEach(func() {
			runner.outputs["eng"] = "Factura No INV"
			runner.outputs["spa"] = "Factura No.: INV-001\nTotal: 119.00"
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should keep the Spanish text", func() {
			Expect(doc.Text).To(Equal(runner.outputs["spa"]))
			Expect(doc.Language).To(Equal("spa"))
		})

		It("should describe the recognition", func() {
			Expect(doc.Method).To(Equal("tesseract"))
			Expect(doc.Pages).To(Equal(1))
		})

		It("should run one pass per language on a real file", func() {
			Expect(runner.calls).To(HaveLen(2))
			Expect(runner.calls[0].name).To(Equal("tesseract"))
			Expect(runner.sawFile).To(BeTrue())
		})
	})

	When("both passes read the same number of words", func() {
		BeforeEach(func() {
			runner.outputs["eng"] = "Total 119.00"
			runner.outputs["spa"] = "Totál 119,00"
		})

		It("should prefer English", func() {
			Expect(doc.Language).To(Equal("eng"))
		})
	})

	When("options are configured", func() {
		BeforeEach(func() {
			cfg = TesseractConfig{
				Binary:      "/opt/bin/tesseract",
				Languages:   []string{"spa"},
				TessdataDir: "/usr/share/tessdata",
				PSM:         6,
				Enhance:     true,
			}
		})

		It("should pass them on the command line", func() {
			Expect(runner.calls).To(HaveLen(1))
			call := runner.calls[0]
			Expect(call.name).To(Equal("/opt/bin/tesseract"))
			Expect(call.args[1:]).To(Equal([]string{
				"stdout", "-l", "spa",
				"--tessdata-dir", "/usr/share/tessdata",
				"--psm", "6",
				"-c", "preserve_interword_spaces=1",
			}))
		})
	})

	When("tesseract fails", func() {
		BeforeEach(func() {
			runner.err = errors.New("exit status 1")
		})

		It("should return an error with the stderr output", func() {
			Expect(err).To(MatchError(ContainSubstring("Error opening data file")))
			Expect(doc).To(BeNil())
		})
	})
})

var _ = Describe("NewTesseractWithRunner", func() {
	It("should reject an empty language", func() {
		_, err := NewTesseractWithRunner(TesseractConfig{Languages: []string{"spa", " "}}, &mockRunner{})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("decodePages", func() {
	It("should reject empty input", func() {
		_, err := decodePages(nil, "image/png", 0, 0)
		Expect(err).To(HaveOccurred())
	})

	It("should reject data that is not an image", func() {
		_, err := decodePages([]byte("hello"), "image/jpeg", 0, 0)
		Expect(err).To(MatchError(ContainSubstring("unsupported image format")))
	})

	It("should decode a PNG into a single page", func() {
		pages, err := decodePages(testPNG(), "image/png; charset=binary", 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(pages).To(HaveLen(1))
	})
})

var _ = Describe("isHEICFormat", func() {
	It("should detect the ftyp brand", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypheic\x00\x00"))).To(BeTrue())
	})

	It("should ignore other data", func() {
		Expect(isHEICFormat(testPNG())).To(BeFalse())
	})
})
