// Package cmd holds wiring helpers shared by the binaries.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/socworks/argus/pkg/channels/gochannel"
	"github.com/socworks/argus/pkg/channels/kafka"
	"github.com/socworks/argus/pkg/eventbus"
)

// NewEventBus creates the workflow event bus for the given provider. The
// default in-process channel serves the single-binary deployment; "kafka"
// additionally mirrors events to an external topic for SIEM consumers.
func NewEventBus(provider string, brokers []string, logger *slog.Logger) (eventbus.EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "", "gochannel":
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			return nil, fmt.Errorf("creating in-process pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, brokers, "argus")
		if err != nil {
			return nil, fmt.Errorf("creating kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
