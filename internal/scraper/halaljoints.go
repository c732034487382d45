package scraper

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ummahlocal/scout-cli/internal/model"
)

// HalalJointsScraper reads the halaljoints city directory. The site embeds
// each listing as JSON-LD LocalBusiness markup, which is far more stable
// than the visible HTML, so we parse that first and fall back to selectors.
type HalalJointsScraper struct {
	BaseURL string
}

// NewHalalJointsScraper creates the adapter against the live site.
func NewHalalJointsScraper() *HalalJointsScraper {
	return &HalalJointsScraper{BaseURL: "https://halaljoints.com"}
}

func (h *HalalJointsScraper) Name() model.Source { return model.SourceHalalJoints }
func (h *HalalJointsScraper) Kind() Kind         { return KindStatic }

// SupportsState is false: the directory is organized by city page only, so
// a state filter cannot be honored and the adapter is skipped when one is
// set.
func (h *HalalJointsScraper) SupportsState(string) bool { return false }

// localBusinessLD mirrors the subset of schema.org LocalBusiness the site
// embeds per listing.
type localBusinessLD struct {
	Type        string `json:"@type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Telephone   string `json:"telephone"`
	URL         string `json:"url"`
	Address     struct {
		Street string `json:"streetAddress"`
		City   string `json:"addressLocality"`
		State  string `json:"addressRegion"`
		Zip    string `json:"postalCode"`
	} `json:"address"`
	ServesCuisine string `json:"servesCuisine"`
}

// Scrape fetches the city page for cfg.Region and emits every listing it
// can decode.
func (h *HalalJointsScraper) Scrape(ctx context.Context, cfg RunConfig, emit EmitFunc) error {
	fetcher := NewFetcher(h.Name(), cfg)

	citySlug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(cfg.Region), " ", "-"))
	cityPath := "/city/" + url.PathEscape(citySlug)

	if cfg.RespectRobots {
		if err := fetcher.CheckRobots(ctx, h.BaseURL, cityPath); err != nil {
			return err
		}
	}

	pageURL := h.BaseURL + cityPath
	doc, err := fetcher.Document(ctx, pageURL)
	if err != nil {
		return err
	}

	candidates := h.parseJSONLD(doc, pageURL)
	if len(candidates) == 0 {
		candidates = h.parseCards(doc, pageURL)
	}
	if len(candidates) == 0 {
		return NewStructuralError(h.Name(), "no listings found at %s", pageURL)
	}

	for i, c := range candidates {
		if cfg.MaxResults > 0 && i >= cfg.MaxResults {
			return nil
		}
		if err := emit(c); err != nil {
			return err
		}
	}
	return nil
}

func (h *HalalJointsScraper) parseJSONLD(doc *goquery.Document, pageURL string) []RawCandidate {
	var out []RawCandidate
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var ld localBusinessLD
		if err := json.Unmarshal([]byte(s.Text()), &ld); err != nil {
			return
		}
		if ld.Type != "LocalBusiness" && ld.Type != "Restaurant" {
			return
		}
		if ld.Name == "" {
			return
		}

		addr := ld.Address
		parts := make([]string, 0, 3)
		if addr.Street != "" {
			parts = append(parts, addr.Street)
		}
		if addr.City != "" {
			parts = append(parts, addr.City)
		}
		if addr.State != "" || addr.Zip != "" {
			parts = append(parts, strings.TrimSpace(addr.State+" "+addr.Zip))
		}

		out = append(out, RawCandidate{
			Name:        ld.Name,
			RawAddress:  strings.Join(parts, ", "),
			Phone:       ld.Telephone,
			Website:     ld.URL,
			Description: ld.Description,
			Category:    ld.ServesCuisine,
			Source:      h.Name(),
			SourceURL:   pageURL,
		})
	})
	return out
}

// parseCards is the selector fallback for pages without JSON-LD.
func (h *HalalJointsScraper) parseCards(doc *goquery.Document, pageURL string) []RawCandidate {
	var out []RawCandidate
	doc.Find("div.joint-card").Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Find("h3.joint-name").First().Text())
		if name == "" {
			return
		}
		c := RawCandidate{
			Name:        name,
			RawAddress:  strings.TrimSpace(s.Find("p.joint-address").First().Text()),
			Phone:       strings.TrimSpace(s.Find("p.joint-phone").First().Text()),
			Description: strings.TrimSpace(s.Find("p.joint-blurb").First().Text()),
			Source:      h.Name(),
			SourceURL:   pageURL,
		}
		if href, ok := s.Find("a.joint-link").First().Attr("href"); ok {
			c.Website = strings.TrimSpace(href)
		}
		out = append(out, c)
	})
	return out
}
