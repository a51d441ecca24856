package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/dealalert/helpers"
	"sjsage522/dealalert/internal/deal"
	"sjsage522/dealalert/logger"
	perrors "sjsage522/dealalert/pkg/errors"
	"sjsage522/dealalert/services/cache"
)

var discountBadgePattern = regexp.MustCompile(`\d+%\s*off`)

// FetchFunc retrieves a page body as UTF-8
type FetchFunc func(ctx context.Context, url string) (io.Reader, error)

// HTMLExtractor extracts candidates from a deals grid page
type HTMLExtractor struct {
	cfg      Config
	cacheSvc cache.CacheService
	fetch    FetchFunc
	log      *logger.Logger
}

// NewHTMLExtractor creates a new HTML extractor
func NewHTMLExtractor(cfg Config, cacheSvc cache.CacheService) *HTMLExtractor {
	if cfg.Name == "" {
		cfg.Name = "deals"
	}
	if cfg.Selectors.Card == "" {
		cfg.Selectors = DefaultSelectors()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &HTMLExtractor{
		cfg:      cfg,
		cacheSvc: cacheSvc,
		fetch:    helpers.FetchWithRandomHeaders,
		log:      logger.ForExtractor(cfg.Name),
	}
}

// Name returns the extractor's name
func (e *HTMLExtractor) Name() string {
	return e.cfg.Name
}

// FetchCandidates fetches the page and extracts one candidate per deal card
func (e *HTMLExtractor) FetchCandidates(ctx context.Context) ([]deal.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	body, err := e.fetchWithCache(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, perrors.NewFetch("parse deals page", err)
	}

	cards := doc.Find(e.cfg.Selectors.Card)
	candidates := e.processCards(cards)

	e.log.Debug().
		Int("cards", cards.Length()).
		Int("candidates", len(candidates)).
		Msg("Extracted candidates")

	return candidates, nil
}

// fetchWithCache fetches the page unless a previous throttling response blocked it
func (e *HTMLExtractor) fetchWithCache(ctx context.Context) (io.Reader, error) {
	if e.cacheSvc != nil && e.cfg.CacheKey != "" {
		if _, err := e.cacheSvc.Get(e.cfg.CacheKey); err == nil {
			return nil, perrors.NewRateLimit(e.cfg.Name, e.cfg.BlockTime)
		}
	}

	body, err := e.fetch(ctx, e.cfg.URL)
	if err != nil {
		var rl *helpers.RateLimitError
		if errors.As(err, &rl) {
			if e.cacheSvc != nil && e.cfg.CacheKey != "" && e.cfg.BlockTime > 0 {
				value := []byte(strconv.Itoa(int(e.cfg.BlockTime / time.Second)))
				if cerr := e.cacheSvc.Set(e.cfg.CacheKey, value, e.cfg.BlockTime); cerr != nil {
					e.log.Warn().Err(cerr).Msg("Failed to set rate limit block")
				}
			}
			rle := perrors.NewRateLimit(e.cfg.Name, e.cfg.BlockTime)
			rle.Err = err
			return nil, rle
		}
		return nil, perrors.NewFetch("fetch deals page", err)
	}
	return body, nil
}

// processCards processes cards in parallel, preserving page order
func (e *HTMLExtractor) processCards(cards *goquery.Selection) []deal.Candidate {
	results := make([]*deal.Candidate, cards.Length())
	var wg sync.WaitGroup

	cards.Each(func(i int, s *goquery.Selection) {
		wg.Add(1)
		go func(i int, s *goquery.Selection) {
			defer wg.Done()
			results[i] = e.processCard(s)
		}(i, s)
	})
	wg.Wait()

	candidates := make([]deal.Candidate, 0, len(results))
	for _, c := range results {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}
	return candidates
}

// processCard extracts raw fields from one card; validation happens downstream
func (e *HTMLExtractor) processCard(s *goquery.Selection) *deal.Candidate {
	sel := e.cfg.Selectors

	itemID := strings.TrimSpace(s.AttrOr(sel.ItemAttr, ""))
	if itemID == "" && sel.Link != "" {
		if href, ok := s.Find(sel.Link).First().Attr("href"); ok {
			itemID, _ = helpers.ItemIDFromPath(href, "/dp/")
		}
	}

	c := &deal.Candidate{
		ItemID:          itemID,
		RawTitle:        e.title(s),
		RawDiscountText: e.discount(s),
		RawPriceText:    strings.TrimSpace(s.Find(sel.Price).First().Text()),
		RawCouponText:   e.coupon(s),
		ImageURL:        e.image(s),
	}
	if itemID != "" {
		c.Link = e.itemLink(itemID)
	}
	return c
}

func (e *HTMLExtractor) title(s *goquery.Selection) string {
	titleSel := s.Find(e.cfg.Selectors.Title).First()
	if titleSel.Length() == 0 {
		return ""
	}
	if html, err := titleSel.Html(); err == nil {
		return html
	}
	return titleSel.Text()
}

// discount prefers a badge span shaped like "NN% off", falling back to any badge text
func (e *HTMLExtractor) discount(s *goquery.Selection) string {
	badges := s.Find(e.cfg.Selectors.Discount)
	var fallback string
	var found string
	badges.EachWithBreak(func(_ int, b *goquery.Selection) bool {
		text := strings.TrimSpace(b.Text())
		if discountBadgePattern.MatchString(text) {
			found = text
			return false
		}
		if fallback == "" && strings.Contains(text, "%") {
			fallback = text
		}
		return true
	})
	if found != "" {
		return found
	}
	return fallback
}

// coupon returns the shortest element text mentioning a coupon
func (e *HTMLExtractor) coupon(s *goquery.Selection) string {
	var best string
	s.Find(e.cfg.Selectors.Coupon).Each(func(_ int, el *goquery.Selection) {
		text := strings.TrimSpace(el.Text())
		if !strings.Contains(strings.ToLower(text), "coupon") {
			return
		}
		if best == "" || len(text) < len(best) {
			best = text
		}
	})
	return best
}

func (e *HTMLExtractor) image(s *goquery.Selection) string {
	img := s.Find(e.cfg.Selectors.Image).First()
	src := img.AttrOr("src", "")
	if src == "" {
		src = img.AttrOr("data-src", "")
	}
	return e.absolute(strings.TrimSpace(src))
}

// itemLink builds the canonical item link with the affiliate tag
func (e *HTMLExtractor) itemLink(itemID string) string {
	link := fmt.Sprintf("%s/dp/%s/", e.cfg.BaseURL, url.PathEscape(itemID))
	if e.cfg.AffiliateTag != "" {
		link += "?tag=" + url.QueryEscape(e.cfg.AffiliateTag)
	}
	return link
}

func (e *HTMLExtractor) absolute(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	return e.cfg.BaseURL + "/" + strings.TrimLeft(ref, "/")
}
