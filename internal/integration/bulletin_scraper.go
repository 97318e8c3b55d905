package integration

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/extract"
)

// BulletinScraper finds and downloads the criticality bulletin PDFs
type BulletinScraper struct {
	fetcher    *Fetcher
	listURL    string
	feedURL    string
	pdfPattern string
	layout     extract.ListingLayout
}

// NewBulletinScraper creates a scraper for the bulletin listing page.
// feedURL is optional; pdfPattern must contain {date}.
func NewBulletinScraper(fetcher *Fetcher, listURL, feedURL, pdfPattern string, layout extract.ListingLayout) *BulletinScraper {
	return &BulletinScraper{
		fetcher:    fetcher,
		listURL:    listURL,
		feedURL:    feedURL,
		pdfPattern: pdfPattern,
		layout:     layout,
	}
}

// LatestPDFURL returns the link of the newest bulletin. The listing page is
// tried first, the RSS feed (when configured) second.
func (s *BulletinScraper) LatestPDFURL(ctx context.Context) (string, error) {
	link, listErr := s.fromListing(ctx)
	if listErr == nil {
		return link, nil
	}
	if s.feedURL == "" {
		return "", listErr
	}

	slog.Warn("bulletin: listing failed, trying feed", "error", listErr)
	resp, err := s.fetcher.Get(ctx, s.feedURL, nil)
	if err != nil {
		return "", err
	}
	return extract.FindBulletinInFeed(string(resp.Body), s.layout)
}

func (s *BulletinScraper) fromListing(ctx context.Context) (string, error) {
	base, err := url.Parse(s.listURL)
	if err != nil {
		return "", &entities.FetchError{URL: s.listURL, Err: err}
	}
	resp, err := s.fetcher.Get(ctx, s.listURL, map[string]string{"Referer": base.Scheme + "://" + base.Host + "/it/"})
	if err != nil {
		return "", err
	}
	doc, err := resp.Document()
	if err != nil {
		return "", err
	}
	link, ok := extract.FindBulletinLink(doc, base, s.layout)
	if !ok {
		return "", &entities.ParseError{Source: s.listURL, Reason: "no bulletin link on listing page"}
	}
	return link, nil
}

// PDFURLForDay returns the templated archive URL of the bulletin issued on day
func (s *BulletinScraper) PDFURLForDay(day time.Time) string {
	return strings.ReplaceAll(s.pdfPattern, "{date}", day.Format("02_01_2006"))
}

// DownloadPDF fetches a bulletin and checks it looks like a PDF
func (s *BulletinScraper) DownloadPDF(ctx context.Context, pdfURL string) ([]byte, error) {
	resp, err := s.fetcher.Get(ctx, pdfURL, nil)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(string(resp.Body[:min(len(resp.Body), 5)]), "%PDF") {
		return nil, &entities.ParseError{Source: pdfURL, Reason: fmt.Sprintf("not a pdf (%s)", resp.ContentType)}
	}
	return resp.Body, nil
}

// FetchPublished downloads an already published dati_bollettino.json
func (s *BulletinScraper) FetchPublished(ctx context.Context, rawURL string) (entities.Bulletin, error) {
	var b entities.Bulletin
	if err := s.fetcher.GetJSON(ctx, rawURL, &b); err != nil {
		return entities.Bulletin{}, err
	}
	if b.Date == "" || len(b.Zones) == 0 {
		return entities.Bulletin{}, &entities.ParseError{Source: rawURL, Reason: "missing data_bollettino or zone"}
	}
	return b, nil
}
