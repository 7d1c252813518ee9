package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v3"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/talentfold/pulse/internal/config"
	"github.com/talentfold/pulse/internal/model"
	"github.com/talentfold/pulse/internal/repository"
	"github.com/talentfold/pulse/internal/service"
)

// Publishes every YAML graph definition in a directory. Already-published
// graph ids are skipped, so the seed is safe to rerun.
func main() {
	defaults := config.Load()

	fs := flag.NewFlagSet("pulse-seed", flag.ExitOnError)
	var (
		mongoURI = fs.String("mongo-uri", defaults.MongoURI, "MongoDB connection URI")
		mongoDB  = fs.String("mongo-db", defaults.MongoDB, "MongoDB database name")
		dir      = fs.String("dir", "graphs", "directory of YAML graph definitions")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("PULSE")); err != nil {
		os.Exit(2)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(*mongoURI))
	if err != nil {
		log.Error("failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer client.Disconnect(ctx)

	db := client.Database(*mongoDB)
	graphSvc := service.NewGraphService(repository.NewGraphRepo(db), log)

	entries, err := os.ReadDir(*dir)
	if err != nil {
		log.Error("failed to read graph directory", "dir", *dir, "error", err)
		os.Exit(1)
	}

	published := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(*dir, name))
		if err != nil {
			log.Error("failed to read graph file", "file", name, "error", err)
			os.Exit(1)
		}

		graph, err := service.ParseGraphYAML(data)
		if err != nil {
			log.Error("failed to parse graph file", "file", name, "error", err)
			os.Exit(1)
		}

		if err := graphSvc.Publish(ctx, graph); err != nil {
			if errors.Is(err, model.ErrConflict) {
				log.Info("graph already published, skipping", "file", name, "graphId", graph.ID)
				continue
			}
			log.Error("failed to publish graph", "file", name, "error", err)
			os.Exit(1)
		}
		log.Info("graph published", "file", name, "graphId", graph.ID)
		published++
	}

	log.Info("seed finished", "published", published)
}
