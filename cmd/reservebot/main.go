package main

import (
	"log"

	"github.com/wikidot-tools/reservebot/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("reservebot failed: %v", err)
	}
}
