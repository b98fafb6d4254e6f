package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github/itish2003/pdfchat/config"

	"github.com/apex/log"
	"github.com/ledongthuc/pdf"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

const (
	BackendUniPDF     = "unipdf"
	BackendLangChain  = "langchain"
	BackendLedongthuc = "ledongthuc"
)

// Extractor turns raw PDF bytes into the document's plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// ExtractionError is returned when the bytes are not a PDF the backend can
// parse. Its message is what the uploader sees.
type ExtractionError struct {
	Backend string
	Err     error
}

func (e *ExtractionError) Error() string { return e.Err.Error() }
func (e *ExtractionError) Unwrap() error { return e.Err }

// pageTexter returns the plain text of every page, in document order.
type pageTexter func(ctx context.Context, data []byte) ([]string, error)

type pdfExtractor struct {
	backend string
	pages   pageTexter
}

// NewExtractor builds the extractor selected by cfg.PDFExtractor. "auto" uses
// UniPDF when a license key is configured and the pure-Go loader otherwise.
func NewExtractor(cfg *config.Config) (Extractor, error) {
	backend := cfg.PDFExtractor
	if backend == "" || backend == "auto" {
		backend = BackendLangChain
		if cfg.UnidocLicenseKey != "" {
			backend = BackendUniPDF
		}
	}

	switch backend {
	case BackendUniPDF:
		if err := setUnidocLicense(cfg.UnidocLicenseKey); err != nil {
			return nil, err
		}
		return &pdfExtractor{backend: BackendUniPDF, pages: uniPDFPages}, nil
	case BackendLangChain:
		return &pdfExtractor{backend: BackendLangChain, pages: langChainPages}, nil
	case BackendLedongthuc:
		return &pdfExtractor{backend: BackendLedongthuc, pages: ledongthucPages}, nil
	default:
		return nil, fmt.Errorf("unsupported pdf extractor: %s", backend)
	}
}

// Extract concatenates the page texts with no separator and trims the result.
// Pages without a text layer contribute an empty string.
func (e *pdfExtractor) Extract(ctx context.Context, data []byte) (text string, err error) {
	defer func() {
		// ledongthuc/pdf reports some malformed objects by panicking.
		if r := recover(); r != nil {
			text, err = "", &ExtractionError{Backend: e.backend, Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	pages, err := e.pages(ctx, data)
	if err != nil {
		return "", &ExtractionError{Backend: e.backend, Err: err}
	}
	text = joinPages(pages)
	log.WithFields(log.Fields{
		"backend":    e.backend,
		"pages":      len(pages),
		"characters": len([]rune(text)),
	}).Debug("extracted pdf text")
	return text, nil
}

func joinPages(pages []string) string {
	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString(p)
	}
	return strings.TrimSpace(sb.String())
}

var (
	licenseOnce sync.Once
	licenseErr  error
)

func setUnidocLicense(key string) error {
	licenseOnce.Do(func() {
		if key == "" {
			licenseErr = fmt.Errorf("UNIDOC_LICENSE_KEY is required for the %s extractor", BackendUniPDF)
			return
		}
		if err := license.SetMeteredKey(key); err != nil {
			licenseErr = fmt.Errorf("failed to set Unidoc license key: %w", err)
		}
	})
	return licenseErr
}

// uniPDFPages uses UniPDF to get the text of each page.
func uniPDFPages(_ context.Context, data []byte) ([]string, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, err
	}

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return nil, err
		}

		ex, err := extractor.New(page)
		if err != nil {
			return nil, err
		}

		text, err := ex.ExtractText()
		if err != nil {
			return nil, err
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// langChainPages loads one document per page through langchaingo's PDF loader.
func langChainPages(ctx context.Context, data []byte) ([]string, error) {
	loader := documentloaders.NewPDF(bytes.NewReader(data), int64(len(data)))
	docs, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	pages := make([]string, 0, len(docs))
	for _, doc := range docs {
		pages = append(pages, doc.PageContent)
	}
	return pages, nil
}

// ledongthucPages reads each page's text layer directly. Fonts are shared
// across pages so each one is decoded once.
func ledongthucPages(_ context.Context, data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	fonts := make(map[string]*pdf.Font)
	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
