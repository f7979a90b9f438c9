package scanning

import (
	"strings"
	"unicode/utf8"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// word places s at column col of row line, 10 units per character.
func word(line, col int, s string) fragment {
	return fragment{X: float64(col * 10), Y: float64(line * 20), W: float64(utf8.RuneCountInString(s) * 10), H: 12, Text: s}
}

var _ = Describe("layoutText", func() {
	When("laying out word fragments", func() {
		var text string

		BeforeEach(func() {
			text = layoutText([]fragment{
				word(1, 0, "Widget"),
				word(0, 0, "Descripción"),
				word(0, 14, "Cantidad"),
				word(1, 14, "2"),
				word(0, 24, "Precio"),
				word(1, 24, "50.00"),
			}, 1)
		})

		It("should order rows top to bottom", func() {
			lines := strings.Split(text, "\n")
			Expect(lines).To(HaveLen(2))
			Expect(lines[0]).To(HavePrefix("Descripción"))
			Expect(lines[1]).To(HavePrefix("Widget"))
		})

		It("should keep columns aligned with runs of spaces", func() {
			lines := strings.Split(text, "\n")
			Expect(lines[0]).To(Equal("Descripción   Cantidad  Precio"))
			Expect(lines[1]).To(Equal("Widget        2         50.00"))
		})
	})

	When("fragments on one row overlap", func() {
		It("should still separate words", func() {
			text := layoutText([]fragment{
				{X: 0, Y: 0, W: 50, H: 12, Text: "Hello"},
				{X: 45, Y: 1, W: 50, H: 12, Text: "World"},
			}, 1)
			Expect(text).To(Equal("Hello World"))
		})
	})

	When("laying out glyph fragments", func() {
		It("should not force gaps between adjacent glyphs", func() {
			text := layoutText([]fragment{
				{X: 0, Y: 0, W: 10, H: 12, Text: "N"},
				{X: 10, Y: 0, W: 10, H: 12, Text: "I"},
				{X: 20, Y: 0, W: 10, H: 12, Text: "T"},
			}, 0)
			Expect(text).To(Equal("NIT"))
		})
	})

	When("there are no fragments", func() {
		It("should return an empty string", func() {
			Expect(layoutText(nil, 1)).To(BeEmpty())
		})
	})
})

var _ = Describe("ocrFragments", func() {
	str := func(s string) *string { return &s }

	It("should read every word with its bounding box", func() {
		result := computervision.OcrResult{
			Regions: &[]computervision.OcrRegion{{
				Lines: &[]computervision.OcrLine{{
					Words: &[]computervision.OcrWord{
						{BoundingBox: str("10,20,30,12"), Text: str("Total:")},
						{BoundingBox: str("50,20,40,12"), Text: str("119.00")},
						{BoundingBox: str("broken"), Text: str("skipped")},
					},
				}},
			}},
		}

		frags := ocrFragments(result)
		Expect(frags).To(HaveLen(2))
		Expect(frags[1]).To(Equal(fragment{X: 50, Y: 20, W: 40, H: 12, Text: "119.00"}))
	})

	It("should tolerate an empty result", func() {
		Expect(ocrFragments(computervision.OcrResult{})).To(BeEmpty())
	})
})

var _ = Describe("NewAzure", func() {
	It("should let the service detect the language when none is given", func() {
		a, err := NewAzure("https://example.cognitiveservices.azure.com/", "key", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(a.language).To(Equal(computervision.OcrLanguagesUnk))
	})

	It("should keep an explicit language", func() {
		a, err := NewAzure("https://example.cognitiveservices.azure.com/", "key", "es")
		Expect(err).NotTo(HaveOccurred())
		Expect(a.language).To(Equal(computervision.OcrLanguagesEs))
	})

	It("should require an endpoint and key", func() {
		_, err := NewAzure("", "key", "es")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("pdfText", func() {
	It("should return an error for data that is not a PDF", func() {
		_, _, err := pdfText([]byte("definitely not a pdf"), 0)
		Expect(err).To(HaveOccurred())
	})
})
