package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ScholarshipScanner/internal/domain"
	"ScholarshipScanner/internal/extraction"
	"ScholarshipScanner/internal/scanner"
)

const (
	listingSelector = "div.elementor-widget-theme-post-title h2 a"
	dateSelector    = "span.elementor-post-info__item--type-date"
	defaultPages    = 5
)

var (
	excludedLinks = []string{"boletim", "epidemiológico", "errata"}
	// Longest first so "ccta" is not read as "cct".
	orgUnits = []string{"ccta", "cct", "cch", "cbb"}
)

// UenfScanner crawls the paginated announcement listing of the university portal.
type UenfScanner struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// NewUenfScanner wires an HTTP client; nil gets a client with a 30s timeout.
func NewUenfScanner(client *http.Client, logger *slog.Logger) *UenfScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &UenfScanner{client: client, userAgent: "ScholarshipScanner/1.0", logger: logger}
}

// Name identifies the strategy inside the registry.
func (u *UenfScanner) Name() string {
	return "uenf"
}

// Scan walks listing pages newest first and returns program announcements published
// after req.Since, oldest first. Paging stops at the first page that adds nothing.
func (u *UenfScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Listing, error) {
	if req.BaseURL == "" {
		return nil, fmt.Errorf("no base url provided for site %s", req.SiteName)
	}
	u.userAgent = req.Option("userAgent", u.userAgent)
	pages := req.Pages
	if pages <= 0 {
		pages = defaultPages
	}

	var perPage [][]domain.Listing
	seen := map[string]struct{}{}
	for page := 1; page <= pages; page++ {
		pageURL := buildPageURL(req.BaseURL, page)
		doc, err := u.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("listing page %d: %w", page, err)
		}

		var fresh []domain.Listing
		for _, entry := range listingEntries(doc, pageURL) {
			if _, ok := seen[entry.Link]; ok {
				continue
			}
			seen[entry.Link] = struct{}{}

			listing, ok := u.describe(ctx, entry, req.Since)
			if ok {
				fresh = append(fresh, listing)
			}
		}
		u.debug("listing page scanned", "site", req.SiteName, "page", page, "fresh", len(fresh))

		if len(fresh) == 0 && page > 1 {
			break
		}
		perPage = append(perPage, fresh)
	}

	var results []domain.Listing
	for i := len(perPage) - 1; i >= 0; i-- {
		results = append(results, perPage[i]...)
	}
	return results, nil
}

// describe loads the announcement page of entry. Pages that fail to load are skipped.
func (u *UenfScanner) describe(ctx context.Context, entry domain.Listing, since *time.Time) (domain.Listing, bool) {
	if !extraction.IsProgramTitle(entry.Title) {
		return domain.Listing{}, false
	}
	stage, ok := extraction.ClassifyStage(entry.Title)
	if !ok || (stage != domain.StageInscription && stage != domain.StageResult) {
		return domain.Listing{}, false
	}

	doc, err := u.fetchDocument(ctx, entry.Link)
	if err != nil {
		u.warn("announcement page unavailable", "link", entry.Link, "error", err)
		return domain.Listing{}, false
	}

	entry.Stage = stage
	entry.Modality = extraction.ClassifyModality(entry.Title)
	entry.PublishedAt, _ = extraction.ParsePublicationDate(doc.Find(dateSelector).First().Text())
	if since != nil && entry.PublishedAt != nil && !entry.PublishedAt.After(*since) {
		u.debug("announcement already covered", "title", entry.Title, "published_at", entry.PublishedAt.Format("2006-01-02"))
		return domain.Listing{}, false
	}
	entry.Documents = documentLinks(doc, entry.Link)
	return entry, true
}

func (u *UenfScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", u.userAgent)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("portal returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// listingEntries returns the entries of a listing page, oldest first.
func listingEntries(doc *goquery.Document, pageURL string) []domain.Listing {
	var entries []domain.Listing
	doc.Find(listingSelector).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		title := strings.TrimSpace(a.Text())
		if !ok || title == "" {
			return
		}
		entries = append(entries, domain.Listing{Title: title, Link: resolveURL(pageURL, href)})
	})
	slices.Reverse(entries)
	return entries
}

// documentLinks classifies the PDF attachments of an announcement page. Links naming
// an org unit are project documents; the first other link is the main document.
func documentLinks(doc *goquery.Document, pageURL string) []domain.DocumentRef {
	var (
		refs    []domain.DocumentRef
		hasMain bool
	)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.HasSuffix(strings.ToLower(href), ".pdf") {
			return
		}
		text := strings.ToLower(strings.TrimSpace(a.Text()))
		for _, kw := range excludedLinks {
			if strings.Contains(text, kw) {
				return
			}
		}

		link := resolveURL(pageURL, href)
		if unit := orgUnitOf(text); unit != "" {
			refs = append(refs, domain.DocumentRef{URL: link, Role: domain.DocumentProject, OrgUnit: unit})
			return
		}
		if !hasMain {
			hasMain = true
			refs = append(refs, domain.DocumentRef{URL: link, Role: domain.DocumentMain})
		}
	})
	return refs
}

func orgUnitOf(text string) string {
	for _, unit := range orgUnits {
		if strings.Contains(text, unit) {
			return unit
		}
	}
	return ""
}

func buildPageURL(base string, page int) string {
	return fmt.Sprintf("%s/%d/", strings.TrimSuffix(base, "/"), page)
}

func resolveURL(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func (u *UenfScanner) debug(msg string, args ...any) {
	if u.logger != nil {
		u.logger.Debug(msg, args...)
	}
}

func (u *UenfScanner) warn(msg string, args ...any) {
	if u.logger != nil {
		u.logger.Warn(msg, args...)
	}
}
