package main

import (
	"context"
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/knowledge-engine/recommender/internal/config"
	"github.com/knowledge-engine/recommender/internal/importer"
	"github.com/knowledge-engine/recommender/internal/logging"
)

func main() {
	cfg, err := importer.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		logrus.WithError(err).Fatal("Invalid arguments")
	}

	entry, err := logging.New(config.Default().Log, "catalog-import")
	if err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	if err := importer.Run(context.Background(), cfg, os.Stdout, entry); err != nil {
		entry.WithError(err).Fatal("Import failed")
	}
}
