// casectl manages cases from the command line: creating them, uploading
// audio for processing and clearing files. The worker picks uploads up from
// the queue.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"casefile/internal/casedb"
	"casefile/internal/cases"
	"casefile/internal/config"
	"casefile/internal/queue"
	"casefile/internal/storage"
	"casefile/pkg/logger"
	"casefile/pkg/logger/console"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: casectl <command> [arguments]

Commands:
  create <case-id> <description>   create a new case
  upload <case-id> <file.mp3>      upload an audio file and queue processing
  delete-files <case-id>           delete all files and reset the graph
  status <case-id>                 print the case status
  list                             list all cases
`)
	os.Exit(2)
}

func main() {
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: config.DebugFromEnv(),
	})
	logger.Init(consoleLogger)

	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	ctx := context.Background()

	if err := casedb.Migrate("file://"+cfg.MigrationsDir, cfg.DatabaseURL); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	pgConn, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()
	caseStore := casedb.NewCaseStore(pgConn)

	objects, err := storage.NewStore(ctx, storage.StoreParams{
		Region:    cfg.AWSRegion,
		Endpoint:  cfg.AWSEndpoint,
		AccessKey: cfg.AWSAccessKey,
		SecretKey: cfg.AWSSecretKey,
		Bucket:    cfg.AWSBucket,
	})
	if err != nil {
		logger.Fatal("Could not create S3 client", "err", err)
	}

	conn := queue.Init(cfg.RabbitMQURL)
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch, []string{queue.AudioQueue}); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	svc := cases.NewService(cases.ServiceParams{
		Store:   caseStore,
		Objects: objects,
		Jobs:    queue.NewPublisher(ch),
	})

	switch os.Args[1] {
	case "create":
		if len(os.Args) != 4 {
			usage()
		}
		c, err := svc.CreateCase(ctx, os.Args[2], os.Args[3])
		if err != nil {
			logger.Fatal("Failed to create case", "err", err)
		}
		fmt.Printf("created case %s\n", c.ID)

	case "upload":
		if len(os.Args) != 4 {
			usage()
		}
		caseID, path := os.Args[2], os.Args[3]
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Fatal("Failed to read audio file", "path", path, "err", err)
		}
		if err := svc.UploadAudio(ctx, caseID, filepath.Base(path), data); err != nil {
			logger.Fatal("Failed to upload audio", "err", err)
		}
		fmt.Printf("uploaded %s, processing queued\n", filepath.Base(path))

	case "delete-files":
		if len(os.Args) != 3 {
			usage()
		}
		if err := svc.DeleteAllFiles(ctx, os.Args[2]); err != nil {
			logger.Fatal("Failed to delete files", "err", err)
		}
		fmt.Println("all files deleted")

	case "status":
		if len(os.Args) != 3 {
			usage()
		}
		c, err := caseStore.Get(ctx, os.Args[2])
		if err != nil {
			logger.Fatal("Failed to get case", "err", err)
		}
		fmt.Printf("%s\t%s\t%d files\n", c.ID, c.Status, len(c.Files))

	case "list":
		summaries, err := caseStore.List(ctx)
		if err != nil {
			logger.Fatal("Failed to list cases", "err", err)
		}
		for _, s := range summaries {
			fmt.Printf("%s\t%s\t%s\n", s.ID, s.Status, s.Description)
		}

	default:
		usage()
	}
}
