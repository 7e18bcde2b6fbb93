package main

import (
	"github.com/spf13/cobra"

	"github.com/zeusync/multinet/internal/server"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the authoritative peer with a demo entity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd.Flags())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			srv, err := server.NewServer(server.ConfigFrom(cfg), nil, logger)
			if err != nil {
				return err
			}

			view, err := registerEntity(srv.Session(), demoEntity)
			if err != nil {
				return err
			}
			if err = srv.Session().AddSpawned(demoEntity, ""); err != nil {
				return err
			}
			srv.OnTick((&orbit{view: view}).step)

			return srv.Run(cmd.Context())
		},
	}
}
