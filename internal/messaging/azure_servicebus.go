package messaging

import (
	"context"
	"encoding/json"
	"time"

	"example.com/chemtrack/services/ledger/config"
	"example.com/chemtrack/services/ledger/internal/ledger"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// MessageHandler processes one inbound message body. A nil return or a
// non-transient ledger rejection settles the message; anything else abandons
// it for redelivery.
type MessageHandler func(ctx context.Context, body []byte) error

// ServiceBusClient is an interface for Azure Service Bus operations
type ServiceBusClient interface {
	SendMessage(ctx context.Context, body interface{}) error
	ProcessMessages(ctx context.Context, handler MessageHandler) error
	Close() error
}

// serviceBusClient implements ServiceBusClient. It sends outbound mutation
// events to the event queue and consumes batch commands from the command
// queue.
type serviceBusClient struct {
	client       *azservicebus.Client
	sender       *azservicebus.Sender
	commandQueue string
	eventQueue   string
}

// mockServiceBusClient is a no-bus implementation for local development
type mockServiceBusClient struct{}

// NewServiceBusClient creates a new Azure Service Bus client. An empty
// connection string yields a mock that only logs, so the service can run
// locally without a bus.
func NewServiceBusClient(cfg config.AzureConfig) (ServiceBusClient, error) {
	if cfg.QueueConnStr == "" {
		log.Warn().Msg("Azure Service Bus connection string not provided, messaging will be mocked")
		return &mockServiceBusClient{}, nil
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.EventQueue, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &serviceBusClient{
		client:       client,
		sender:       sender,
		commandQueue: cfg.CommandQueue,
		eventQueue:   cfg.EventQueue,
	}, nil
}

// SendMessage publishes a message on the event queue
func (s *serviceBusClient) SendMessage(ctx context.Context, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message body")
	}

	messageID := uuid.New().String()
	msg := &azservicebus.Message{
		MessageID: &messageID,
		Body:      data,
		ApplicationProperties: map[string]interface{}{
			"source": "batch-ledger",
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	return s.sender.SendMessage(ctx, msg, nil)
}

// ProcessMessages consumes the command queue until ctx is cancelled.
// Settlement follows the ledger's error contract: every domain rejection is
// final except the pause breaker, which is transient, so paused commands are
// abandoned and redelivered once the ledger resumes.
func (s *serviceBusClient) ProcessMessages(ctx context.Context, handler MessageHandler) error {
	receiver, err := s.client.NewReceiverForQueue(s.commandQueue, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create Service Bus receiver")
	}
	defer func() {
		if err := receiver.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("Error closing Service Bus receiver")
		}
	}()

	for {
		messages, err := receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "failed to receive messages")
		}

		for _, message := range messages {
			err := handler(ctx, message.Body)
			if err == nil {
				if err := receiver.CompleteMessage(ctx, message, nil); err != nil {
					log.Error().Err(err).Str("message_id", message.MessageID).Msg("Failed to complete message")
				}
				continue
			}

			var rejection *ledger.Error
			if errors.As(err, &rejection) && !rejection.Transient() {
				// Retrying cannot change the outcome; settle the message.
				log.Warn().
					Err(err).
					Int("code", rejection.Code).
					Str("message_id", message.MessageID).
					Msg("Command rejected")
				if err := receiver.CompleteMessage(ctx, message, nil); err != nil {
					log.Error().Err(err).Str("message_id", message.MessageID).Msg("Failed to complete rejected message")
				}
				continue
			}

			log.Error().Err(err).Str("message_id", message.MessageID).Msg("Failed to process message, abandoning")
			if err := receiver.AbandonMessage(ctx, message, nil); err != nil {
				log.Error().Err(err).Str("message_id", message.MessageID).Msg("Failed to abandon message")
			}
		}
	}
}

// Close closes the Service Bus client
func (s *serviceBusClient) Close() error {
	if s.sender != nil {
		if err := s.sender.Close(context.Background()); err != nil {
			return err
		}
	}

	if s.client != nil {
		return s.client.Close(context.Background())
	}

	return nil
}

// SendMessage implementation for the mock client
func (m *mockServiceBusClient) SendMessage(ctx context.Context, body interface{}) error {
	log.Info().Interface("body", body).Msg("[MOCK ServiceBus] Message sent")
	return nil
}

// ProcessMessages implementation for the mock client
func (m *mockServiceBusClient) ProcessMessages(ctx context.Context, handler MessageHandler) error {
	<-ctx.Done()
	return nil
}

// Close implementation for the mock client
func (m *mockServiceBusClient) Close() error {
	return nil
}
