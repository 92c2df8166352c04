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
