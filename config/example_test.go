package config_test

import (
	"context"
	"fmt"
	"log"

	"github.com/sagarc03/edgeshelf/config"
)

func ExampleLoad() {
	// Load with defaults only (no config file)
	cfg, err := config.Load(nil, nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Port: %d, Origin: %s, Cache: %s\n", cfg.Server.Port, cfg.Origin.Type, cfg.Cache.Backend)
	// Output: Port: 5708, Origin: local, Cache: memory
}

func ExampleWithContext() {
	cfg, _ := config.Load(nil, nil)

	ctx := config.WithContext(context.Background(), cfg)

	retrieved, err := config.FromContext(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Retrieved port: %d\n", retrieved.Server.Port)
	// Output: Retrieved port: 5708
}
