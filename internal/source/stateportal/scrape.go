package stateportal

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"grantsync/internal/domain"
	"grantsync/internal/normalize"
	"grantsync/internal/source"
)

// Structural markers for listing-style elements on portal pages.
const (
	listingSelector     = ".grant-listing, .opportunity-item, .grant-item"
	titleSelector       = ".title, h3, h2"
	descriptionSelector = ".description, .summary, p"
	deadlineSelector    = ".deadline, .due-date"
)

func scrapeStrategy(portal PortalConfig, fetcher *source.Fetcher) fetchFunc {
	return func(ctx context.Context) ([]domain.Grant, error) {
		body, err := fetcher.GetHTML(ctx, portal.URL)
		if err != nil {
			return nil, fmt.Errorf("portal scrape: %w", err)
		}
		return extractListings(body)
	}
}

// extractListings pulls listing elements out of a portal page. Entries with
// no extractable title are discarded.
func extractListings(body []byte) ([]domain.Grant, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var grants []domain.Grant

	doc.Find(listingSelector).Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find(titleSelector).First().Text())
		if title == "" {
			return
		}

		link, _ := sel.Find("a").First().Attr("href")
		deadline := strings.TrimSpace(sel.Find(deadlineSelector).First().Text())

		grants = append(grants, domain.Grant{
			// Scraped listings carry no native id; key on the link when one
			// exists, otherwise on the title, so re-scrapes update in place.
			SourceID:    listingKey(link, title),
			SourceURL:   link,
			Title:       title,
			Description: strings.TrimSpace(sel.Find(descriptionSelector).First().Text()),
			Deadline:    normalize.ParseDate(deadline),
			ApplyURL:    link,
		})
	})

	return grants, nil
}

func listingKey(link, title string) string {
	basis := normalize.FirstNonEmpty(link, title)
	sum := sha256.Sum256([]byte(basis))
	return hex.EncodeToString(sum[:16])
}
