//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
	"github.com/jonboulle/clockwork"

	"github.com/zeusync/multinet/internal/config"
	"github.com/zeusync/multinet/internal/core/observability/log"
	"github.com/zeusync/multinet/internal/core/observability/metrics"
	"github.com/zeusync/multinet/internal/server"
	"github.com/zeusync/multinet/sdk/go/client"
)

var baseSet = wire.NewSet(
	log.Provide,
	wire.Bind(new(log.Log), new(*log.Logger)),
	clockwork.NewRealClock,
)

func ProvideLogger() *log.Logger {
	wire.Build(log.Provide)
	return nil
}

func InitializeServer(cfg *config.Config) (*server.Server, error) {
	wire.Build(baseSet, server.ConfigFrom, server.NewServer)
	return nil, nil
}

func InitializeClient(cfg *config.Config, m *metrics.Metrics) (*client.Client, error) {
	wire.Build(baseSet, client.ConfigFrom, client.NewClient)
	return nil, nil
}
