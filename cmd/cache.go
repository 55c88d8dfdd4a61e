package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the summary cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Cache.Path == "" {
			return eris.New("no cache configured: set cache.path or --cache")
		}

		ctx := cmd.Context()
		db, err := openCache(ctx, cfg.Cache.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.Prune(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("cache pruned", zap.String("path", cfg.Cache.Path), zap.Int("deleted", n))
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired entries\n", n)
		return err
	},
}

func init() {
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}
