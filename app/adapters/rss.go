package adapters

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lysyi3m/signal-comb/app/signals"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"golang.org/x/time/rate"
)

// RSSAdapter polls one or more feeds. Each feed URL is one source.
type RSSAdapter struct {
	config     *Config
	httpClient *http.Client
	parser     *gofeed.Parser
	limiter    *rate.Limiter
	classifier *Classifier
	filterer   *Filterer
	extractor  *ArticleExtractor
	userAgent  string
	now        func() time.Time
}

// NewRSSAdapter creates an adapter polling the feeds of config.
func NewRSSAdapter(config *Config, deps Deps) *RSSAdapter {
	return &RSSAdapter{
		config:     config,
		httpClient: deps.httpClient(),
		parser:     gofeed.NewParser(),
		limiter:    rate.NewLimiter(rate.Limit(config.Settings.RequestsPerSecond), 1),
		classifier: NewClassifier(config.RSS.Categories, config.RSS.DefaultCategory),
		filterer:   NewFilterer(config.RSS.Filters),
		extractor:  NewArticleExtractor(),
		userAgent:  deps.UserAgent,
		now:        deps.clock(),
	}
}

func (a *RSSAdapter) Name() string {
	return a.config.Name
}

// FetchSignals fails only when every configured feed fails.
func (a *RSSAdapter) FetchSignals(ctx context.Context) ([]signals.RawSignal, error) {
	var (
		raws []signals.RawSignal
		errs []error
	)

	for _, url := range a.config.RSS.URLs {
		items, err := a.fetchURL(ctx, url)
		if err != nil {
			slog.Warn("Feed fetch failed", "source", a.Name(), "url", url, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
			continue
		}

		slog.Debug("Feed fetched", "source", a.Name(), "url", url, "signals", len(items))
		raws = append(raws, items...)
	}

	if len(errs) > 0 && len(errs) == len(a.config.RSS.URLs) {
		return nil, &signals.FetchError{Adapter: a.Name(), Err: errors.Join(errs...)}
	}

	return raws, nil
}

func (a *RSSAdapter) NormalizeSignal(raw signals.RawSignal) (signals.NormalizedSignal, error) {
	category, err := signals.ParseCategory(cmp.Or(raw.Category, a.config.RSS.DefaultCategory))
	if err != nil {
		return signals.NormalizedSignal{}, &signals.NormalizationError{Field: "category", Reason: "unmapped category", Err: err}
	}
	if raw.Published.IsZero() {
		return signals.NormalizedSignal{}, &signals.NormalizationError{Field: "published", Reason: "entry has no timestamp"}
	}
	if raw.SourceName == "" {
		return signals.NormalizedSignal{}, &signals.NormalizationError{Field: "source_name", Reason: "entry has no feed URL"}
	}

	return signals.NormalizedSignal{
		Title:            raw.Title,
		Category:         category,
		Description:      cmp.Or(raw.Description, raw.Title),
		Timestamp:        raw.Published.UTC(),
		Location:         raw.Location,
		SourcePlatform:   TypeRSS,
		SourceIdentifier: raw.SourceName,
		AdditionalData:   additionalData(raw),
	}, nil
}

func (a *RSSAdapter) fetchURL(ctx context.Context, url string) ([]signals.RawSignal, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	data, err := a.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	feed, err := a.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	fetchedAt := a.now()
	raws := make([]signals.RawSignal, 0, len(feed.Items))
	for _, item := range feed.Items {
		if len(raws) >= a.config.Settings.MaxItems {
			break
		}
		if item == nil {
			continue
		}

		raw, ok := a.toRaw(ctx, url, item, fetchedAt)
		if !ok {
			continue
		}
		raws = append(raws, raw)
	}

	return raws, nil
}

func (a *RSSAdapter) fetch(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(a.config.Settings.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func (a *RSSAdapter) toRaw(ctx context.Context, feedURL string, item *gofeed.Item, fetchedAt time.Time) (signals.RawSignal, bool) {
	description := inspectHTML(item.Description)
	content := inspectHTML(item.Content)

	if a.config.RSS.ExtractContent && description.Text == "" && content.Text == "" && item.Link != "" {
		if article, ok := a.extractArticle(ctx, item.Link); ok {
			content = article
		}
	}

	entry := Item{
		Title:       strings.TrimSpace(item.Title),
		Description: cmp.Or(description.Text, content.Text),
		Content:     content.Text,
		Link:        item.Link,
		Categories:  item.Categories,
	}

	if filtered, reason := a.filterer.Run(entry); filtered {
		slog.Debug("Feed item filtered", "source", a.Name(), "link", item.Link, "reason", reason)
		return signals.RawSignal{}, false
	}

	location := extractLocation(item)
	if location == nil && a.config.RSS.SkipUnlocated {
		slog.Debug("Feed item without location skipped", "source", a.Name(), "link", item.Link)
		return signals.RawSignal{}, false
	}

	photo, video := enclosureMedia(item)

	published := fetchedAt
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	return signals.RawSignal{
		Title:       entry.Title,
		Description: entry.Description,
		Category:    string(a.classifier.Classify(entry)),
		Link:        item.Link,
		Published:   published,
		SourceName:  feedURL,
		Location:    location,
		HasPhoto:    photo || description.HasPhoto || content.HasPhoto,
		HasVideo:    video || description.HasVideo || content.HasVideo,
	}, true
}

// extractArticle fetches the page an entry links to and returns its main article.
func (a *RSSAdapter) extractArticle(ctx context.Context, link string) (htmlSummary, bool) {
	if err := a.limiter.Wait(ctx); err != nil {
		return htmlSummary{}, false
	}

	data, err := a.fetch(ctx, link)
	if err != nil {
		slog.Warn("Article fetch failed", "source", a.Name(), "link", link, "error", err)
		return htmlSummary{}, false
	}

	article, err := a.extractor.Run(data)
	if err != nil {
		slog.Warn("Article extraction failed", "source", a.Name(), "link", link, "error", err)
		return htmlSummary{}, false
	}

	return article, true
}

// extractLocation reads GeoRSS simple points and W3C geo coordinates.
func extractLocation(item *gofeed.Item) *signals.Point {
	if georss, ok := item.Extensions["georss"]; ok {
		for _, point := range georss["point"] {
			fields := strings.Fields(point.Value)
			if len(fields) != 2 {
				continue
			}
			if p, ok := parsePoint(fields[0], fields[1]); ok {
				return p
			}
		}
	}

	if geo, ok := item.Extensions["geo"]; ok {
		if lat, lon := firstValue(geo["lat"]), firstValue(geo["long"]); lat != "" && lon != "" {
			if p, ok := parsePoint(lat, lon); ok {
				return p
			}
		}
		for _, point := range geo["Point"] {
			if p, ok := parsePoint(firstValue(point.Children["lat"]), firstValue(point.Children["long"])); ok {
				return p
			}
		}
	}

	return nil
}

func parsePoint(latValue, lonValue string) (*signals.Point, bool) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latValue), 64)
	if err != nil {
		return nil, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonValue), 64)
	if err != nil {
		return nil, false
	}

	p := &signals.Point{Lon: lon, Lat: lat}
	if p.Validate() != nil {
		return nil, false
	}
	return p, true
}

func enclosureMedia(item *gofeed.Item) (photo, video bool) {
	if item.Image != nil && item.Image.URL != "" {
		photo = true
	}

	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}
		switch {
		case strings.HasPrefix(enclosure.Type, "image/"):
			photo = true
		case strings.HasPrefix(enclosure.Type, "video/"):
			video = true
		}
	}

	if media, ok := item.Extensions["media"]; ok {
		if len(media["thumbnail"]) > 0 {
			photo = true
		}
		for _, content := range media["content"] {
			medium := content.Attrs["medium"]
			mimeType := content.Attrs["type"]
			switch {
			case medium == "image" || strings.HasPrefix(mimeType, "image/"):
				photo = true
			case medium == "video" || strings.HasPrefix(mimeType, "video/"):
				video = true
			}
		}
	}

	return photo, video
}

func firstValue(values []ext.Extension) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0].Value)
}
