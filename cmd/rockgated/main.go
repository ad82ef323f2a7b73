package main

import (
	"context"
	"log"

	"github.com/neogan74/rockgate/internal/app"
	"github.com/neogan74/rockgate/internal/config"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	builder := app.NewBuilder(cfg, version)
	application, err := builder.Build()
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	if err := application.Run(context.Background()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
