// Package news collects RSS headlines and tags them with the tracked symbols they mention.
package news

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"cryptoagents-go/internal/signal"
)

// Source is one RSS feed. MaxItems <= 0 keeps every item.
type Source struct {
	Name     string
	URL      string
	MaxItems int
}

var knownAliases = map[string][]string{
	"BTC":  {"BTC", "BITCOIN"},
	"ETH":  {"ETH", "ETHEREUM"},
	"XRP":  {"XRP", "RIPPLE"},
	"ADA":  {"ADA", "CARDANO"},
	"DOGE": {"DOGE", "DOGECOIN"},
	"SOL":  {"SOL", "SOLANA"},
}

// DefaultAliases maps each symbol to its well known names, or to itself when unknown.
func DefaultAliases(symbols []string) map[string][]string {
	out := make(map[string][]string, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(sym)
		if names, ok := knownAliases[sym]; ok {
			out[sym] = append([]string(nil), names...)
			continue
		}
		out[sym] = []string{sym}
	}
	return out
}

type rssFeed struct {
	Channel *struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// Collector fetches every source once per call.
type Collector struct {
	sources     []Source
	tracked     []string
	aliases     map[string][]string
	maxArticles int
	client      *resty.Client
	log         zerolog.Logger
	now         func() time.Time
}

// Options tunes a Collector. Zero values fall back to defaults.
type Options struct {
	Aliases     map[string][]string
	MaxArticles int
	Timeout     time.Duration
}

// NewCollector builds a Collector for the tracked symbols.
func NewCollector(sources []Source, tracked []string, opts Options, log zerolog.Logger) *Collector {
	upper := make([]string, 0, len(tracked))
	for _, sym := range tracked {
		upper = append(upper, strings.ToUpper(strings.TrimSpace(sym)))
	}
	aliases := opts.Aliases
	if len(aliases) == 0 {
		aliases = DefaultAliases(upper)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Collector{
		sources:     sources,
		tracked:     upper,
		aliases:     aliases,
		maxArticles: opts.MaxArticles,
		client: resty.New().
			SetTimeout(opts.Timeout).
			SetHeader("User-Agent", "cryptoagents/1.0"),
		log: log,
		now: time.Now,
	}
}

// Name identifies the collector in logs.
func (c *Collector) Name() string { return "news" }

// Collect fetches all sources and returns the newest articles first, capped at MaxArticles.
// A failing source is logged and skipped.
func (c *Collector) Collect(ctx context.Context) []signal.Article {
	var all []signal.Article
	for _, src := range c.sources {
		articles, err := c.fetch(ctx, src)
		if err != nil {
			c.log.Warn().Err(err).Str("source", src.Name).Msg("news fetch failed")
			continue
		}
		all = append(all, articles...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].PublishedAt.After(all[j].PublishedAt) })
	if c.maxArticles > 0 && len(all) > c.maxArticles {
		all = all[:c.maxArticles]
	}
	return all
}

func (c *Collector) fetch(ctx context.Context, src Source) ([]signal.Article, error) {
	resp, err := c.client.R().SetContext(ctx).Get(src.URL)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", src.URL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get %s: http %d", src.URL, resp.StatusCode())
	}
	return c.Parse(resp.Body(), src)
}

// Parse decodes an RSS 2.0 document. A document without a channel yields no articles.
func (c *Collector) Parse(raw []byte, src Source) ([]signal.Article, error) {
	var feed rssFeed
	if err := xml.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("parse %s feed: %w", src.Name, err)
	}
	if feed.Channel == nil {
		return nil, nil
	}
	items := feed.Channel.Items
	if src.MaxItems > 0 && len(items) > src.MaxItems {
		items = items[:src.MaxItems]
	}
	out := make([]signal.Article, 0, len(items))
	for _, it := range items {
		title := strings.TrimSpace(it.Title)
		link := strings.TrimSpace(it.Link)
		summary := StripHTML(it.Description)
		out = append(out, signal.Article{
			ID:          ArticleID(src.Name, link, title),
			Title:       title,
			URL:         link,
			Summary:     summary,
			Source:      src.Name,
			PublishedAt: c.published(it.PubDate),
			Symbols:     c.DetectSymbols(title, summary),
		})
	}
	return out, nil
}

func (c *Collector) published(raw string) time.Time {
	if raw = strings.TrimSpace(raw); raw != "" {
		if ts, err := mail.ParseDate(raw); err == nil {
			return ts.UTC()
		}
	}
	return c.now().UTC()
}

// DetectSymbols returns the tracked symbols whose aliases appear in title or summary, in
// tracked order.
func (c *Collector) DetectSymbols(title, summary string) []string {
	text := strings.ToUpper(title + " " + summary)
	var found []string
	for _, sym := range c.tracked {
		names := c.aliases[sym]
		if len(names) == 0 {
			names = []string{sym}
		}
		for _, alias := range names {
			if strings.Contains(text, strings.ToUpper(alias)) {
				found = append(found, sym)
				break
			}
		}
	}
	return found
}

// ArticleID is the hex sha256 of "source:link", or "source:title" when the link is empty.
func ArticleID(source, link, title string) string {
	basis := link
	if basis == "" {
		basis = title
	}
	sum := sha256.Sum256([]byte(source + ":" + basis))
	return hex.EncodeToString(sum[:])
}

// StripHTML reduces an HTML fragment to its text with whitespace collapsed.
func StripHTML(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" || !strings.ContainsAny(fragment, "<&") {
		return fragment
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
