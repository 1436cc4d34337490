package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudmeter/volcost/internal/assumptions"
	"github.com/cloudmeter/volcost/internal/pricing"
	"github.com/cloudmeter/volcost/internal/store"
)

func newRefreshCmd(configPath *string) *cobra.Command {
	var regions []string

	cmd := &cobra.Command{
		Use:   "refresh-prices",
		Short: "Refresh the durable price cache for one or more regions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(config.LogLevel)

			db, err := store.Open(config.DatabasePath, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			cacheCfg := pricing.DefaultCacheConfig()
			if config.DurableTTL > 0 {
				cacheCfg.DurableTTL = config.DurableTTL
			}
			cache := pricing.NewCache(db, pricing.NewRetailClient(config.RetailBaseURL, logger), cacheCfg, logger)

			if len(regions) == 0 {
				regions = []string{config.Region}
			}
			for _, region := range regions {
				if err := cache.Refresh(cmd.Context(), region); err != nil {
					return fmt.Errorf("refreshing prices for %s: %w", region, err)
				}
			}

			if pruned, err := db.PruneExpired(cmd.Context(), time.Now()); err != nil {
				logger.Warn().Err(err).Msg("pruning expired prices failed")
			} else if pruned > 0 {
				logger.Info().Int64("pruned", pruned).Msg("expired price entries removed")
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&regions, "region", nil, "Region(s) to refresh (default: configured region)")
	return cmd
}

func newAssumptionCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assumptions",
		Short: "Manage cool-data assumption overrides",
	}
	cmd.AddCommand(newAssumptionSetCmd(configPath))
	cmd.AddCommand(newAssumptionShowCmd(configPath))
	return cmd
}

func newAssumptionSetCmd(configPath *string) *cobra.Command {
	var (
		jobID         string
		volumeID      string
		coolData      float64
		coolRetrieval float64
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Record an assumption override at the job or volume level",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if coolData < 0 || coolData > 100 || coolRetrieval < 0 || coolRetrieval > 100 {
				return fmt.Errorf("percentages must be within [0, 100]")
			}

			config, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(config.LogLevel)

			db, err := store.Open(config.DatabasePath, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			return db.SetOverride(cmd.Context(), jobID, volumeID, assumptions.Override{
				CoolDataPercentage:      coolData,
				CoolRetrievalPercentage: coolRetrieval,
			})
		},
	}

	cmd.Flags().StringVar(&jobID, "job", "", "Job identifier (required)")
	cmd.Flags().StringVar(&volumeID, "volume", "", "Volume identifier (empty sets the job-level override)")
	cmd.Flags().Float64Var(&coolData, "cool-data", assumptions.DefaultAssumptions.CoolDataPercentage, "Percentage of data expected in the cool tier")
	cmd.Flags().Float64Var(&coolRetrieval, "cool-retrieval", assumptions.DefaultAssumptions.CoolRetrievalPercentage, "Percentage of cool data retrieved per month")
	_ = cmd.MarkFlagRequired("job")

	return cmd
}

func newAssumptionShowCmd(configPath *string) *cobra.Command {
	var (
		jobID    string
		volumeID string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Resolve the effective assumptions for a (job, volume) pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(config.LogLevel)

			db, err := store.Open(config.DatabasePath, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			resolver := assumptions.NewResolver(db, assumptions.Assumptions{}, logger)
			return printJSON(resolver.Resolve(cmd.Context(), jobID, volumeID))
		},
	}

	cmd.Flags().StringVar(&jobID, "job", "", "Job identifier")
	cmd.Flags().StringVar(&volumeID, "volume", "", "Volume identifier")
	return cmd
}
