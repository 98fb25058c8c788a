package main

import (
	"log"

	"github.com/fieldops/scheduler/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ scheduler failed to start: %v", err)
	}
}
