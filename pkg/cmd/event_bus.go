package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/SanketsMane/Flowversal-sub007/pkg/channels/gochannel"
	"github.com/SanketsMane/Flowversal-sub007/pkg/channels/kafka"
	"github.com/SanketsMane/Flowversal-sub007/pkg/eventbus"
)

// NewEventBus builds an event bus for the given provider. "kafka" connects
// to the brokers from KAFKA_BROKERS; anything else uses the in-process
// channel, which is enough for a single-binary deployment.
func NewEventBus(provider string, logger *slog.Logger) (eventbus.EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, "flowversal-orchestrator")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-process pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	}
}
