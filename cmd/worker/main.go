package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"casefile/internal/casedb"
	"casefile/internal/config"
	"casefile/internal/index"
	"casefile/internal/queue"
	"casefile/internal/storage"
	"casefile/pkg/ai"
	olm "casefile/pkg/ai/ollama"
	oai "casefile/pkg/ai/openai"
	"casefile/pkg/logger"
	"casefile/pkg/logger/console"
	"casefile/pkg/summary"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ollamaWithAudio routes chat to ollama and audio transcription to an
// OpenAI-compatible endpoint, since ollama has no transcription API.
type ollamaWithAudio struct {
	*olm.CaseOllamaClient
	audio ai.Client
}

func (c *ollamaWithAudio) GenerateAudioTranscription(ctx context.Context, audio []byte, format string) (string, error) {
	return c.audio.GenerateAudioTranscription(ctx, audio, format)
}

func main() {
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: config.DebugFromEnv(),
	})
	logger.Init(consoleLogger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// blob store
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

	// AI client
	var aiClient ai.Client
	switch cfg.AIAdapter {
	case "ollama":
		chatClient, err := olm.NewCaseOllamaClient(olm.NewCaseOllamaClientParams{
			ExtractionModel: cfg.ExtractionModel,
			SummaryModel:    cfg.SummaryModel,

			BaseURL: cfg.AIChatURL,
			ApiKey:  cfg.AIChatKey,
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		aiClient = &ollamaWithAudio{
			CaseOllamaClient: chatClient,
			audio: oai.NewCaseOpenAIClient(oai.NewCaseOpenAIClientParams{
				AudioModel: cfg.AudioModel,
				AudioURL:   cfg.AIAudioURL,
				AudioKey:   cfg.AIAudioKey,
			}),
		}
	default:
		aiClient = oai.NewCaseOpenAIClient(oai.NewCaseOpenAIClientParams{
			ExtractionModel: cfg.ExtractionModel,
			SummaryModel:    cfg.SummaryModel,
			AudioModel:      cfg.AudioModel,

			ChatURL:  cfg.AIChatURL,
			ChatKey:  cfg.AIChatKey,
			AudioURL: cfg.AIAudioURL,
			AudioKey: cfg.AIAudioKey,
		})
	}

	// database
	if err := casedb.Migrate("file://"+cfg.MigrationsDir, cfg.DatabaseURL); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	pgConn, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()
	caseStore := casedb.NewCaseStore(pgConn)

	// rabbitmq
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

	processor := queue.NewProcessor(queue.ProcessorParams{
		Store:    caseStore,
		Objects:  objects,
		AIClient: aiClient,
		Summaries: summary.NewGenerator(summary.GeneratorParams{
			AIClient:  aiClient,
			Encoder:   cfg.TokenEncoder,
			MaxTokens: cfg.MaxSummaryTokens,
		}),
		Indexer: index.NewClient(index.ClientParams{
			Endpoint:       cfg.IndexEndpoint,
			APIKey:         cfg.IndexAPIKey,
			SearchEndpoint: cfg.SearchService,
		}),
		MaxChunkBytes: cfg.MaxChunkBytes,
	})

	logger.Info("Listening for messages")

	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	// one message at a time, a job runs to completion before the next fetch
	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.AudioQueue,
		"audio_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "err", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Info("Message channel closed")
					return
				}

				startTime := time.Now()
				logger.Info("Received message", "queue", queue.AudioQueue)

				processingErr := processor.ProcessAudioMessage(ctx, msg.Body)
				if processingErr != nil {
					logger.Error("Error processing message", "err", processingErr)
					handleProcessingError(ch, msg, queue.AudioQueue)
				} else {
					if err := msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully")
				}

				metrics := aiClient.GetMetrics()
				aiDuration := time.Duration(metrics.DurationMs) * time.Millisecond
				logger.Info(
					"AI Metrics",
					"input_tokens", metrics.InputTokens,
					"output_tokens", metrics.OutputTokens,
					"total_tokens", metrics.TotalTokens,
					"duration", formatDuration(aiDuration),
				)
				logger.Info("Processing time", "duration", formatDuration(time.Since(startTime)))
				aiClient.ResetMetrics()
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// handleProcessingError republishes a failed message to the delayed retry
// queue, or to the dead-letter queue once the retry budget is spent. The
// original delivery is acked only after the republish succeeds.
func handleProcessingError(ch *amqp.Channel, msg amqp.Delivery, queueName string) {
	retries := 0
	if val, ok := msg.Headers["x-retries"]; ok {
		if v, ok := val.(int32); ok {
			retries = int(v)
		}
	}

	if retries >= 10 {
		dlqName := queueName + "_dlq"
		logger.Info("Sending message to DLQ", "dlq", dlqName)
		pubErr := ch.Publish(
			"",
			dlqName,
			false,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        msg.Body,
				Headers:     msg.Headers,
			},
		)
		if pubErr != nil {
			logger.Error("Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			msg.Nack(false, true)
			return
		}
		msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := msg.Headers
	if headers == nil {
		headers = amqp.Table{}
	}
	headers["x-retries"] = int32(retries + 1)

	pubErr := ch.Publish(
		"",
		retryName,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        msg.Body,
			Headers:     headers,
		},
	)
	if pubErr != nil {
		logger.Error("Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}
