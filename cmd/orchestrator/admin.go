package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"fleet-orchestrator/internal/config"
	"fleet-orchestrator/internal/identity"
	"fleet-orchestrator/internal/repository/postgresql"
)

func buildMigrateCommand(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the jobs and workers tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.PostgresDSN == "" {
				return errors.New("POSTGRES_DSN is required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
			if err != nil {
				return fmt.Errorf("pg: %w", err)
			}
			defer pool.Close()

			if err := postgresql.Migrate(ctx, pool); err != nil {
				return err
			}
			log.Printf("[migrate] schema applied postgres_dsn=%s", redactDSN(cfg.PostgresDSN))
			return nil
		},
	}
}

func buildIdentityCommand(load func() (config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage device identity records",
	}

	var agentID string
	register := &cobra.Command{
		Use:   "register <id>",
		Short: "Create an identity record; the reconciler fills in the orchestrator URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.RedisAddr == "" {
				return errors.New("REDIS_ADDR is required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			defer rdb.Close()

			dir := identity.NewRedisDirectory(rdb, cfg.IdentityKeyPrefix)
			if err := dir.Register(ctx, args[0], agentID); err != nil {
				return fmt.Errorf("register %s: %w", args[0], err)
			}
			log.Printf("[identity] id=%s agent_id=%s registered", args[0], agentID)
			return nil
		},
	}
	register.Flags().StringVar(&agentID, "agent", "", "agent id the device belongs to")

	cmd.AddCommand(register)
	return cmd
}
