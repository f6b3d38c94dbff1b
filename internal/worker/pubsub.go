package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types carried in pipeline messages.
const (
	JobTypeRefresh     = "pipeline_refresh"
	JobTypeRetrain     = "retrain"
	JobTypeHealthCheck = "health_check"
)

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	refreshJob       *RefreshJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	Logger           zerolog.Logger
}

// JobMessage represents a pipeline job message.
type JobMessage struct {
	JobType string `json:"job_type"`

	// Cities limits a retrain job to a subset of cities.
	// Empty means all configured cities.
	Cities []string `json:"cities,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		refreshJob:       cfg.RefreshJob,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	// Parse message.
	var jobMsg JobMessage
	if err := json.Unmarshal(msg.Data, &jobMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	// Handle based on job type.
	var err error
	switch jobMsg.JobType {
	case JobTypeRefresh:
		err = h.handleRefresh(ctx)
	case JobTypeRetrain:
		err = h.handleRetrain(ctx, jobMsg)
	case JobTypeHealthCheck:
		err = h.handleHealthCheck(ctx)
	default:
		logger.Warn().Str("job_type", jobMsg.JobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	if err != nil {
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	duration := time.Since(startTime)
	logger.Info().
		Str("job_type", jobMsg.JobType).
		Dur("duration", duration).
		Msg("job completed successfully")

	msg.Ack()
}

func (h *PubSubHandler) handleRefresh(ctx context.Context) error {
	h.logger.Info().Msg("starting pipeline refresh")

	result := h.refreshJob.Run(ctx)

	h.logger.Info().
		Dur("duration", result.Duration).
		Int("ingested", result.ReadingsIngested).
		Int("trained", result.Trained).
		Int("failed", result.Failed).
		Msg("pipeline refresh completed")

	// Consider the run successful only if retraining mostly worked.
	if result.Failed > result.Trained {
		return fmt.Errorf("too many retrain failures: %d/%d", result.Failed, result.TotalCities)
	}

	return nil
}

func (h *PubSubHandler) handleRetrain(ctx context.Context, msg JobMessage) error {
	h.logger.Info().
		Strs("cities", msg.Cities).
		Msg("starting on-demand retrain")

	result := h.refreshJob.RunCities(ctx, msg.Cities)

	if result.Failed > 0 {
		return fmt.Errorf("retrain failed for %d cities", result.Failed)
	}

	return nil
}

func (h *PubSubHandler) handleHealthCheck(ctx context.Context) error {
	h.logger.Debug().Msg("running health check")

	// Verify the reading store is reachable by listing cities.
	if _, err := h.refreshJob.repository.Cities(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	h.logger.Debug().Msg("health check passed")
	return nil
}

// Publisher publishes pipeline jobs to a Pub/Sub topic. It implements
// the API's retrain hook so admin retrain requests are handed to the
// worker instead of blocking the request.
type Publisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	logger    zerolog.Logger
}

// PublisherConfig holds configuration for the job publisher.
type PublisherConfig struct {
	ProjectID string
	TopicName string
	Logger    zerolog.Logger
}

// NewPublisher creates a publisher for pipeline job messages.
func NewPublisher(ctx context.Context, cfg PublisherConfig) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &Publisher{
		client:    client,
		publisher: client.Publisher(cfg.TopicName),
		logger:    cfg.Logger,
	}, nil
}

// RequestRetrain publishes a retrain job and returns the message ID.
func (p *Publisher) RequestRetrain(ctx context.Context, cities []string) (string, error) {
	data, err := json.Marshal(JobMessage{
		JobType: JobTypeRetrain,
		Cities:  cities,
	})
	if err != nil {
		return "", fmt.Errorf("encoding retrain message: %w", err)
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{Data: data})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publishing retrain message: %w", err)
	}

	p.logger.Info().
		Str("message_id", id).
		Strs("cities", cities).
		Msg("retrain job published")

	return id, nil
}

// Close stops the publisher and closes the client.
func (p *Publisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}
