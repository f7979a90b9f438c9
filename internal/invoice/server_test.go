package invoice

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/invoice-sql/internal/extraction"
	"github.com/zombor/invoice-sql/internal/sqlgen"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		scanner     *mockScanner
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		service = NewServiceWithDeps(db, scanner, storage, extraction.DefaultExtractor(),
			&mockIDGenerator{id: "conv-1"},
			&mockTimeSource{now: time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)})
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	// seed stores a converted sample invoice under id "conv-1"
	seed := func() {
		_, err := service.ConvertText("factura.txt", sampleText)
		Expect(err).NotTo(HaveOccurred())
	}

	upload := func(filename, contentType string, data []byte) *http.Response {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := writer.CreatePart(h)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(ghttpServer.URL()+"/api/conversions", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		scanner = newMockScanner()
		auth = BasicAuth{}
	})

	JustBeforeEach(func() {
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
			ghttpServer = nil
		}
	})

	Describe("handleHealth", func() {
		It("should return ok", func() {
			resp, err := http.Get(ghttpServer.URL() + "/healthz")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("handleSchema", func() {
		It("should return the table definitions", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/schema")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("CREATE TABLE IF NOT EXISTS ItemsFactura"))
		})
	})

	Describe("handleUpload", func() {
		When("an image is uploaded", func() {
			It("should return the conversion with its script", func() {
				resp := upload("factura.jpg", "image/jpeg", []byte("jpeg-bytes"))
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

				var result map[string]any
				Expect(json.NewDecoder(resp.Body).Decode(&result)).To(Succeed())
				Expect(result["id"]).To(Equal("conv-1"))
				Expect(result["method"]).To(Equal("tesseract"))
				Expect(result["script"]).To(HavePrefix(sqlgen.Banner))
				Expect(result["script"]).To(ContainSubstring("'INV-001'"))
			})
		})

		When("a text file is uploaded", func() {
			It("should convert it without scanning", func() {
				resp := upload("factura.txt", "application/octet-stream", []byte(sampleText))
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(scanner.calls).To(BeZero())
			})
		})

		When("the scanner fails", func() {
			BeforeEach(func() {
				scanner.scanErr = errors.New("unreadable")
			})

			It("should return status Unprocessable Entity", func() {
				resp := upload("factura.png", "image/png", []byte("png"))
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

				var result map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&result)).To(Succeed())
				Expect(result["error"]).To(ContainSubstring("unreadable"))
			})
		})

		When("no file is provided", func() {
			It("should return status Bad Request", func() {
				body := &bytes.Buffer{}
				writer := multipart.NewWriter(body)
				Expect(writer.WriteField("other", "x")).To(Succeed())
				Expect(writer.Close()).To(Succeed())

				resp, err := http.Post(ghttpServer.URL()+"/api/conversions", writer.FormDataContentType(), body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleConvertText", func() {
		When("text is posted", func() {
			It("should return status Created", func() {
				payload, err := json.Marshal(map[string]string{"filename": "ocr.txt", "text": sampleText})
				Expect(err).NotTo(HaveOccurred())

				resp, err := http.Post(ghttpServer.URL()+"/api/conversions/text", "application/json", bytes.NewReader(payload))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var result map[string]any
				Expect(json.NewDecoder(resp.Body).Decode(&result)).To(Succeed())
				Expect(result["warnings"]).To(Or(BeNil(), BeEmpty()))
			})
		})

		When("the body is not JSON", func() {
			It("should return status Bad Request", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/conversions/text", "application/json", strings.NewReader("nope"))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the text is empty", func() {
			It("should return status Bad Request", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/conversions/text", "application/json", strings.NewReader(`{"text":""}`))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleListConversions", func() {
		When("no conversions exist", func() {
			It("should return an empty JSON array", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/conversions")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(strings.TrimSpace(string(body))).To(Equal("[]"))
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("boom")
			})

			It("should return status Internal Server Error", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/conversions")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("handleGetConversion", func() {
		When("the conversion exists", func() {
			JustBeforeEach(seed)

			It("should return the extracted fields", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/conversions/conv-1")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var result struct {
					Factura extraction.InvoiceRecord `json:"factura"`
				}
				Expect(json.NewDecoder(resp.Body).Decode(&result)).To(Succeed())
				Expect(result.Factura.ClientName).To(Equal("Acme Corp"))
				Expect(result.Factura.Tax.Normalized).To(Equal("19.00"))
			})
		})

		When("the conversion does not exist", func() {
			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/conversions/missing")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("handleGetScript", func() {
		When("the conversion exists", func() {
			JustBeforeEach(seed)

			It("should download the script", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/conversions/conv-1/script")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("factura_script.sql"))

				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(ContainSubstring(
					"INSERT INTO ItemsFactura (factura_numero, descripcion, cantidad, precio) VALUES ('INV-001', 'Widget', 2, 50.00);"))
			})
		})

		When("the conversion does not exist", func() {
			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/conversions/missing/script")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("handleGetWorkbook", func() {
		JustBeforeEach(seed)

		It("should download a spreadsheet", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/conversions/conv-1/workbook")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("spreadsheetml"))
		})
	})

	Describe("handleGetSourceFile", func() {
		JustBeforeEach(seed)

		It("should return the recognized text", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/conversions/conv-1/file")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(sampleText))
		})
	})

	Describe("handleVerify", func() {
		When("the conversion exists", func() {
			JustBeforeEach(seed)

			It("should report a valid script", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/conversions/conv-1/verify", "application/json", nil)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var result map[string]any
				Expect(json.NewDecoder(resp.Body).Decode(&result)).To(Succeed())
				Expect(result["valid"]).To(BeTrue())
				Expect(result).NotTo(HaveKey("error"))
			})
		})

		When("the conversion does not exist", func() {
			It("should return status Not Found", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/conversions/missing/verify", "application/json", nil)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("handleDeleteConversion", func() {
		When("the conversion exists", func() {
			JustBeforeEach(seed)

			It("should return status No Content", func() {
				req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/conversions/conv-1", nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
				Expect(db.conversions).To(BeEmpty())
			})
		})

		When("the conversion does not exist", func() {
			It("should return status Not Found", func() {
				req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/conversions/missing", nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "pass"}
		})

		When("credentials are missing", func() {
			It("should return status Unauthorized", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/conversions")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Invoice SQL"))
			})
		})

		When("credentials are wrong", func() {
			It("should return status Unauthorized", func() {
				req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/conversions", nil)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:nope")))
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			})
		})

		When("credentials are correct", func() {
			It("should return status OK", func() {
				req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/conversions", nil)
				Expect(err).NotTo(HaveOccurred())
				req.SetBasicAuth("user", "pass")
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
			})
		})

		When("the health check is requested", func() {
			It("should not require credentials", func() {
				resp, err := http.Get(ghttpServer.URL() + "/healthz")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
			})
		})
	})
})

var _ = Describe("ContentTypeFor", func() {
	It("should prefer the declared type", func() {
		Expect(ContentTypeFor("Image/PNG", "x.pdf")).To(Equal("image/png"))
	})

	It("should fall back to the extension", func() {
		Expect(ContentTypeFor("application/octet-stream", "SCAN.HEIC")).To(Equal("image/heic"))
		Expect(ContentTypeFor("", "ocr.txt")).To(Equal("text/plain"))
	})
})
