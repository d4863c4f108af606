package main

import (
	"context"
	"flag"
	"log"

	"github.com/AnishMulay/blockfs/internal/config"
	"github.com/AnishMulay/blockfs/servers/simple"
)

func main() {
	var (
		configPath = flag.String("config", config.DefaultPath(), "Config file")
		listen     = flag.String("listen", "", "Listen address, overrides server.address")
		nodeID     = flag.String("node-id", "", "Node ID used for log file names")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.Server.Address = *listen
	}
	if *nodeID != "" {
		cfg.Server.NodeID = *nodeID
	}

	node, err := simple.Build(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}
	log.Printf("Starting blockfs server on %s (%s store)", cfg.Server.Address, cfg.Store.Type)
	if err := node.Run(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
