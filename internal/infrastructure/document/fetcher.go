package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"ScholarshipScanner/internal/domain"
	"ScholarshipScanner/internal/ports"
)

const maxDocumentBytes = 32 << 20

var spaceRun = regexp.MustCompile(`[ \t\x{00a0}]+`)

// Fetcher downloads announcement attachments and keeps their text layer.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

var _ ports.DocumentFetcher = (*Fetcher)(nil)

// NewFetcher wires an HTTP client; nil gets a client with a 30s timeout.
func NewFetcher(client *http.Client, userAgent string, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if userAgent == "" {
		userAgent = "ScholarshipScanner/1.0"
	}
	return &Fetcher{client: client, userAgent: userAgent, logger: logger}
}

// Fetch downloads ref and decodes it as PDF or HTML.
func (f *Fetcher) Fetch(ctx context.Context, ref domain.DocumentRef) (domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return domain.Document{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Document{}, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Document{}, fmt.Errorf("document %s returned %s", ref.URL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return domain.Document{}, fmt.Errorf("read document: %w", err)
	}

	var text string
	if isPDF(resp.Header.Get("Content-Type"), ref.URL, body) {
		text, err = PDFText(body)
	} else {
		text, err = HTMLText(bytes.NewReader(body))
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("decode %s: %w", ref.URL, err)
	}

	if f.logger != nil {
		f.logger.Debug("document fetched", "url", ref.URL, "bytes", len(body), "chars", len(text))
	}
	return domain.Document{Ref: ref, Text: text}, nil
}

// PDFText extracts the plain text layer of a PDF.
func PDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return CleanText(string(raw)), nil
}

// HTMLText returns the visible text of an HTML page.
func HTMLText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	return CleanText(doc.Find("body").Text()), nil
}

// CleanText collapses runs of spaces inside each line and trims lines, keeping line breaks.
func CleanText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	return strings.Join(lines, "\n")
}

func isPDF(contentType, url string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return true
	}
	if strings.HasSuffix(strings.ToLower(url), ".pdf") {
		return true
	}
	return bytes.HasPrefix(body, []byte("%PDF-"))
}
