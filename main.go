package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("waypoint planner server starting",
		zap.String("listen", cfg.Listen),
		zap.Int("maxChildren", cfg.Graph.MaxChildren),
		zap.Int("maxLevels", cfg.Graph.MaxLevels),
		zap.Int("maxNodes", cfg.Route.MaxNodes))

	s := newServer(cfg, logger)
	if err := s.load(); err != nil {
		logger.Fatal("failed to load graph", zap.Error(err))
	}
	if s.leafCount() == 0 {
		logger.Info("no graph loaded, call POST /graph/roadmap or POST /graph/waypoints to create one")
	}

	logger.Info("endpoints",
		zap.Strings("routes", []string{
			"POST /graph/roadmap",
			"POST /graph/waypoints",
			"DELETE /graph/waypoints/{id}",
			"POST /graph/edges",
			"GET /graph/lines?level=N",
			"POST /graph/save",
			"POST /route",
			"GET /health",
		}))

	if err := http.ListenAndServe(cfg.Listen, s.routes()); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
