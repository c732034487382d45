package scraper

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ummahlocal/scout-cli/internal/model"
)

// ZabihahScraper walks zabihah listing pages for a region. Static family:
// the listing markup is server-rendered, so plain HTTP plus selectors is
// enough.
type ZabihahScraper struct {
	// BaseURL overrides the live site root. Tests point it at a local
	// server.
	BaseURL string
}

// NewZabihahScraper creates the adapter against the live site.
func NewZabihahScraper() *ZabihahScraper {
	return &ZabihahScraper{BaseURL: "https://www.zabihah.com"}
}

func (z *ZabihahScraper) Name() model.Source { return model.SourceZabihah }
func (z *ZabihahScraper) Kind() Kind         { return KindStatic }

// SupportsState is always true: listings carry full addresses, so a state
// filter applies via the search query.
func (z *ZabihahScraper) SupportsState(string) bool { return true }

// Scrape fetches the search results for cfg.Region and follows pagination
// until MaxResults or the last page.
func (z *ZabihahScraper) Scrape(ctx context.Context, cfg RunConfig, emit EmitFunc) error {
	fetcher := NewFetcher(z.Name(), cfg)

	query := cfg.Region
	if cfg.State != "" {
		query = query + ", " + strings.ToUpper(cfg.State)
	}
	searchPath := "/search?t=r&q=" + url.QueryEscape(query)

	if cfg.RespectRobots {
		if err := fetcher.CheckRobots(ctx, z.BaseURL, "/search"); err != nil {
			return err
		}
	}

	emitted := 0
	pageURL := z.BaseURL + searchPath
	for pageURL != "" {
		doc, err := fetcher.Document(ctx, pageURL)
		if err != nil {
			return err
		}

		listings := doc.Find("div.restaurant-listing")
		if listings.Length() == 0 && emitted == 0 {
			return NewStructuralError(z.Name(), "no listing elements at %s", pageURL)
		}

		var emitErr error
		listings.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if cfg.MaxResults > 0 && emitted >= cfg.MaxResults {
				return false
			}

			c := z.parseListing(s)
			if c.Name == "" {
				return true
			}
			c.SourceURL = pageURL

			if err := emit(c); err != nil {
				emitErr = err
				return false
			}
			emitted++
			return true
		})
		if emitErr != nil {
			return emitErr
		}
		if cfg.MaxResults > 0 && emitted >= cfg.MaxResults {
			return nil
		}

		pageURL = z.nextPage(doc)
	}
	return nil
}

func (z *ZabihahScraper) parseListing(s *goquery.Selection) RawCandidate {
	c := RawCandidate{Source: z.Name()}

	c.Name = strings.TrimSpace(s.Find("a.listing-name").First().Text())
	c.RawAddress = strings.TrimSpace(s.Find("div.listing-address").First().Text())
	c.Phone = strings.TrimSpace(s.Find("div.listing-phone").First().Text())
	c.Description = strings.TrimSpace(s.Find("div.listing-description").First().Text())
	c.Category = strings.TrimSpace(s.Find("span.listing-cuisine").First().Text())

	if href, ok := s.Find("a.listing-website").First().Attr("href"); ok {
		c.Website = strings.TrimSpace(href)
	}

	s.Find("span.listing-tag").Each(func(_ int, tag *goquery.Selection) {
		if t := strings.TrimSpace(tag.Text()); t != "" {
			c.Services = append(c.Services, t)
		}
	})

	return c
}

// nextPage returns the absolute URL of the next results page, or "".
func (z *ZabihahScraper) nextPage(doc *goquery.Document) string {
	href, ok := doc.Find("a.pagination-next").First().Attr("href")
	if !ok || href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http") {
		return href
	}
	return z.BaseURL + href
}
