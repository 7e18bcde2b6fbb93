package main

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/multinet/internal/core/events/bus"
	"github.com/zeusync/multinet/internal/core/observability/log"
	"github.com/zeusync/multinet/internal/core/observability/metrics"
	"github.com/zeusync/multinet/internal/core/protocol"
	"github.com/zeusync/multinet/internal/core/session"
	"github.com/zeusync/multinet/internal/server"
	"github.com/zeusync/multinet/sdk/go/client"
)

const reportInterval = time.Second

func newJoinCmd(opts *options) *cobra.Command {
	var metricsAddress string

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join an authoritative peer and log the smoothed values",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd.Flags())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			registry := prometheus.NewRegistry()
			cli, err := client.NewClient(client.ConfigFrom(cfg), nil, metrics.New(registry), logger)
			if err != nil {
				return err
			}

			r := newReporter(logger)
			if err = r.track(cli.Session()); err != nil {
				return err
			}
			cli.OnTick(r.step)

			group, ctx := errgroup.WithContext(cmd.Context())
			group.Go(func() error {
				return cli.Run(ctx)
			})
			// the configured metrics address belongs to the server
			if metricsAddress != "" {
				endpoint := server.NewHTTPServer(metricsAddress, registry, nil, logger)
				group.Go(func() error {
					return endpoint.Serve(ctx)
				})
			}

			if err = group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddress, "metrics-address", "", "Serve follower metrics on this address")
	return cmd
}

// reporter registers the variables of every spawned entity and logs their
// smoothed values periodically.
type reporter struct {
	logger   log.Log
	entities map[protocol.EntityID]*entityView
	since    float64
}

func newReporter(logger log.Log) *reporter {
	return &reporter{
		logger:   logger.With(log.String("component", "reporter")),
		entities: make(map[protocol.EntityID]*entityView),
	}
}

func (r *reporter) track(s *session.Session) error {
	_, err := bus.SubscribeTyped(s.Bus(), bus.EntitySpawned, func(e bus.EntityEvent) error {
		if _, ok := r.entities[e.Entity]; ok {
			return nil
		}
		view, err := registerEntity(s, e.Entity)
		if err != nil {
			return err
		}
		r.entities[e.Entity] = view
		r.logger.Info("Tracking entity", log.String("entity", string(e.Entity)))
		return nil
	})
	return err
}

func (r *reporter) step(s *session.Session, deltaMs float64) {
	r.since += deltaMs
	if r.since < float64(reportInterval/time.Millisecond) {
		return
	}
	r.since = 0

	for _, entity := range s.SpawnedEntities() {
		view, ok := r.entities[entity]
		if !ok {
			continue
		}
		position, mode := view.position.ValueWithMode()
		r.logger.Info("Replicated values",
			log.String("entity", string(entity)),
			log.Float64("x", position.X),
			log.Float64("y", position.Y),
			log.Float64("health", float64(view.health.Value())),
			log.String("mode", mode.String()),
			log.Float64("client_time", s.Clock().ClientTime()),
			log.Int("buffered", view.position.Len()))
	}
}
