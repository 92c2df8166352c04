package cms

import (
	"context"
	"strings"
	"unicode/utf8"

	strip "github.com/grokify/html-strip-tags-go"
	"golang.org/x/sync/errgroup"
)

const (
	featuredLimit = 6
	homeNewsLimit = 3
	newsLimit     = 50
	excerptLength = 180
)

func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var products []Product
	err := c.Query(ctx, "products", queryProducts, nil, []string{TagProducts}, &products)
	return products, err
}

func (c *Client) FeaturedProducts(ctx context.Context, limit int) ([]Product, error) {
	var products []Product
	err := c.Query(ctx, "products", queryFeaturedProducts, map[string]interface{}{"limit": limit},
		[]string{TagProducts}, &products)
	return products, err
}

func (c *Client) Product(ctx context.Context, slug string) (*Product, error) {
	var p Product
	if err := c.Query(ctx, "product", queryProduct, map[string]interface{}{"slug": slug},
		[]string{TagProducts, TagAssociations}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Associations(ctx context.Context) ([]Association, error) {
	var list []Association
	err := c.Query(ctx, "associations", queryAssociations, nil, []string{TagAssociations}, &list)
	return list, err
}

// Association returns one association with the products it references.
func (c *Client) Association(ctx context.Context, slug string) (*Association, error) {
	var a Association
	if err := c.Query(ctx, "association", queryAssociation, map[string]interface{}{"slug": slug},
		[]string{TagAssociations, TagProducts}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// News returns the latest posts, newest first, with excerpts and without bodies.
func (c *Client) News(ctx context.Context, limit int) ([]NewsPost, error) {
	if limit <= 0 {
		limit = newsLimit
	}
	var posts []NewsPost
	if err := c.Query(ctx, "news", queryNews, map[string]interface{}{"limit": limit},
		[]string{TagNews}, &posts); err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].Excerpt = Excerpt(posts[i].Body, excerptLength)
		posts[i].Body = ""
	}
	return posts, nil
}

func (c *Client) NewsPost(ctx context.Context, slug string) (*NewsPost, error) {
	var post NewsPost
	if err := c.Query(ctx, "news post", queryNewsPost, map[string]interface{}{"slug": slug},
		[]string{TagNews}, &post); err != nil {
		return nil, err
	}
	post.Excerpt = Excerpt(post.Body, excerptLength)
	return &post, nil
}

func (c *Client) Settings(ctx context.Context) (*SiteSettings, error) {
	var s SiteSettings
	if err := c.Query(ctx, "settings", querySettings, nil, []string{TagSettings}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Home loads settings, featured products and latest news concurrently.
func (c *Client) Home(ctx context.Context) (*HomePage, error) {
	var (
		home     HomePage
		settings *SiteSettings
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		settings, err = c.Settings(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		home.Featured, err = c.FeaturedProducts(gctx, featuredLimit)
		return err
	})
	g.Go(func() error {
		var err error
		home.LatestNews, err = c.News(gctx, homeNewsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	home.Settings = *settings
	return &home, nil
}

// History loads the history text and the association list.
func (c *Client) History(ctx context.Context) (*HistoryPage, error) {
	var (
		settings *SiteSettings
		page     HistoryPage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		settings, err = c.Settings(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		page.Associations, err = c.Associations(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	page.Title = settings.Title
	page.History = settings.History
	return &page, nil
}

// Warm loads every listing so the cache is hot after an invalidation.
func (c *Client) Warm(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { _, err := c.Home(gctx); return err })
	g.Go(func() error { _, err := c.Products(gctx); return err })
	g.Go(func() error { _, err := c.Associations(gctx); return err })
	g.Go(func() error { _, err := c.News(gctx, 0); return err })
	if err := g.Wait(); err != nil {
		return err
	}
	c.logger.Debug("CMS cache warmed")
	return nil
}

// Excerpt strips HTML from s and cuts it to at most max runes at a word
// boundary, appending an ellipsis when shortened.
func Excerpt(s string, max int) string {
	text := strings.Join(strings.Fields(strip.StripTags(s)), " ")
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)[:max]
	cut := string(runes)
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, ",.;:") + "…"
}
