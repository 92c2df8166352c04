package cms

// GROQ projections. Slugs are flattened to strings and image assets resolved
// to URLs so the JSON maps straight onto the Go types.
const (
	productFields = `"id": _id, title, "slug": slug.current, description, price, featured,
  "images": images[]{"url": asset->url, alt},
  "association": association->{name, "slug": slug.current}`

	associationFields = `"id": _id, name, "slug": slug.current, location, description,
  "image": image{"url": asset->url, alt}`

	newsFields = `"id": _id, title, "slug": slug.current, publishedAt,
  "cover": cover{"url": asset->url, alt}, body`

	queryProducts = `*[_type == "product" && defined(slug.current)] | order(title asc){` + productFields + `}`

	queryFeaturedProducts = `*[_type == "product" && featured == true && defined(slug.current)] | order(_updatedAt desc)[0...$limit]{` + productFields + `}`

	queryProduct = `*[_type == "product" && slug.current == $slug][0]{` + productFields + `}`

	queryAssociations = `*[_type == "association" && defined(slug.current)] | order(name asc){` + associationFields + `}`

	queryAssociation = `*[_type == "association" && slug.current == $slug][0]{` + associationFields + `,
  "products": *[_type == "product" && references(^._id)] | order(title asc){` + productFields + `}}`

	queryNews = `*[_type == "news" && defined(slug.current)] | order(publishedAt desc)[0...$limit]{` + newsFields + `}`

	queryNewsPost = `*[_type == "news" && slug.current == $slug][0]{` + newsFields + `}`

	querySettings = `*[_type == "settings"][0]{title, description, whatsappNumber, whatsappMessage, history, email, instagram}`
)
