// Command renda-edge serves the Renda de Filé site API: page data from the
// CMS behind a tagged cache, revalidation webhooks, contact and WhatsApp
// lead capture, favorites, analytics and the admin area.
//
//	@title						Renda de Filé edge API
//	@version					1.0
//	@description				Page data, CMS revalidation webhooks and lead capture for the Renda de Filé site.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"log"

	_ "renda-edge/docs"
	"renda-edge/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
