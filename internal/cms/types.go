package cms

import "time"

// Image is a resolved Sanity image asset.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Slug        string          `json:"slug"`
	Description string          `json:"description,omitempty"`
	Price       float64         `json:"price,omitempty"`
	Featured    bool            `json:"featured"`
	Images      []Image         `json:"images,omitempty"`
	Association *AssociationRef `json:"association,omitempty"`
}

// AssociationRef is the short form of an association embedded in products.
type AssociationRef struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Association struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	Image       *Image    `json:"image,omitempty"`
	Products    []Product `json:"products,omitempty"`
}

type NewsPost struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	PublishedAt time.Time `json:"publishedAt"`
	Cover       *Image    `json:"cover,omitempty"`
	Body        string    `json:"body,omitempty"` // HTML
	Excerpt     string    `json:"excerpt"`
}

// SiteSettings is the singleton settings document.
type SiteSettings struct {
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	WhatsAppNumber  string `json:"whatsappNumber,omitempty"`
	WhatsAppMessage string `json:"whatsappMessage,omitempty"`
	History         string `json:"history,omitempty"` // HTML
	Email           string `json:"email,omitempty"`
	Instagram       string `json:"instagram,omitempty"`
}

// HomePage is everything the landing page renders.
type HomePage struct {
	Settings   SiteSettings `json:"settings"`
	Featured   []Product    `json:"featured"`
	LatestNews []NewsPost   `json:"latestNews"`
}

// HistoryPage is the cooperative history page.
type HistoryPage struct {
	Title        string        `json:"title"`
	History      string        `json:"history"`
	Associations []Association `json:"associations"`
}
