package main

import (
	"log"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"

	_ "github.com/klipach/courier"
	"github.com/klipach/courier/config"
)

func main() {
	// also applies .env
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config.Load: %v\n", err)
	}
	log.Printf("Started on :%s with %s backend\n", cfg.Port, cfg.Backend)

	if err := funcframework.Start(cfg.Port); err != nil {
		log.Fatalf("funcframework.Start: %v\n", err)
	}

	log.Println("Done")
}
