package revalidation

import (
	"github.com/samber/lo"
)

// Targets is the set of paths and tags a change makes stale.
type Targets struct {
	Paths []string
	Tags  []string
}

// Empty reports whether nothing needs invalidating.
func (t Targets) Empty() bool {
	return len(t.Paths) == 0 && len(t.Tags) == 0
}

type route struct {
	listing string
	tag     string
	detail  string // prefix of the per-document page, empty when there is none
}

var routes = map[string]route{
	TypeProduct:     {listing: "/catalog", tag: "products", detail: "/product/"},
	TypeAssociation: {listing: "/associations", tag: "associations", detail: "/association/"},
	TypeNews:        {listing: "/news", tag: "news", detail: "/news/"},
	TypeSettings:    {tag: "settings"},
}

// Known reports whether events of docType invalidate anything.
func Known(docType string) bool {
	_, ok := routes[docType]
	return ok
}

// TargetsFor maps an event to what it invalidates. Unknown types map to no
// targets. The result depends only on the event.
func TargetsFor(event WebhookEvent) Targets {
	r, ok := routes[event.Type]
	if !ok {
		return Targets{}
	}

	var paths []string
	if r.listing != "" {
		paths = append(paths, r.listing)
	}
	// The home page shows featured products, associations, news and settings.
	paths = append(paths, "/")
	// Paths are decoded, the form the page cache tags them with.
	if r.detail != "" && event.Slug != "" {
		paths = append(paths, r.detail+event.Slug)
	}

	return Targets{
		Paths: lo.Uniq(paths),
		Tags:  []string{r.tag},
	}
}
