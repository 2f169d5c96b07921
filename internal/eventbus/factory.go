package eventbus

import (
	"fmt"

	"github.com/vyrodovalexey/avapigw/internal/config"
	"github.com/vyrodovalexey/avapigw/internal/observability"
)

// BrokerType names the two adapters a bus can be backed by.
const (
	BrokerTypeClassic = "classic-broker"
	BrokerTypeManaged = "managed-bus"
)

// New selects and constructs the configured backend, per spec.md 9's
// "Backend pluggability" design note: downstream code depends only on the
// Bus contract, never on the concrete adapter type.
func New(cfg *config.Config, logger observability.Logger) (Bus, error) {
	switch cfg.EventBusBrokerType {
	case BrokerTypeClassic, "":
		return NewClassicBroker(ClassicBrokerConfig{
			URL:    cfg.RabbitMQURL,
			Prefix: rabbitPrefix(cfg.RabbitMQExchange),
		}, logger), nil
	case BrokerTypeManaged:
		return NewManagedBus(ManagedBusConfig{
			ConnectionString: cfg.ServiceBusConn,
			Topic:            cfg.ServiceBusTopic,
			Subscription:     "gateway",
		}, logger), nil
	default:
		return nil, fmt.Errorf("eventbus: unknown EventBusBrokerType %q", cfg.EventBusBrokerType)
	}
}

// rabbitPrefix derives the exchange/queue name prefix from the
// configured base exchange name, e.g. "avapigw.events" -> "avapigw.".
func rabbitPrefix(baseExchange string) string {
	if baseExchange == "" {
		return "avapigw."
	}
	for i := 0; i < len(baseExchange); i++ {
		if baseExchange[i] == '.' {
			return baseExchange[:i+1]
		}
	}
	return baseExchange + "."
}
