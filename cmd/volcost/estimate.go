package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cloudmeter/volcost/internal/assumptions"
	"github.com/cloudmeter/volcost/internal/billing"
	"github.com/cloudmeter/volcost/internal/estimate"
	"github.com/cloudmeter/volcost/internal/metrics"
	"github.com/cloudmeter/volcost/internal/pricing"
	"github.com/cloudmeter/volcost/internal/reconcile"
	"github.com/cloudmeter/volcost/internal/store"
)

// resourceInput is the YAML description of one volume to estimate.
type resourceInput struct {
	ResourceID  string    `yaml:"resourceId"`
	Region      string    `yaml:"region"`
	Permutation int       `yaml:"permutation"`
	JobID       string    `yaml:"jobId"`
	VolumeID    string    `yaml:"volumeId"`
	PeriodStart time.Time `yaml:"periodStart"`
	PeriodEnd   time.Time `yaml:"periodEnd"`

	CapacityGiB             float64 `yaml:"capacityGiB"`
	HotCapacityGiB          float64 `yaml:"hotCapacityGiB"`
	CoolCapacityGiB         float64 `yaml:"coolCapacityGiB"`
	TieredToCoolGiB         float64 `yaml:"tieredToCoolGiB"`
	RetrievedFromCoolGiB    float64 `yaml:"retrievedFromCoolGiB"`
	RequiredThroughputMiBps float64 `yaml:"requiredThroughputMiBps"`
	SnapshotGiB             float64 `yaml:"snapshotGiB"`
	BackupGiB               float64 `yaml:"backupGiB"`

	// Usage is an optional daily capacity series. When present and no explicit
	// capacity is given, the steady-state value sizes the estimate.
	Usage []usagePoint `yaml:"usage"`
}

type usagePoint struct {
	Date  time.Time `yaml:"date"`
	Value float64   `yaml:"value"`
}

// estimateOutput is the JSON document printed for one pipeline run.
type estimateOutput struct {
	Estimate    *estimate.CostEstimate    `json:"estimate"`
	Metadata    *reconcile.VolumeMetadata `json:"volumeMetadata,omitempty"`
	Metrics     *metrics.NormalizedMetric `json:"metrics,omitempty"`
	Assumptions *assumptions.Assumptions  `json:"assumptions,omitempty"`
}

type estimateOptions struct {
	reconcile    bool
	meterLevel   bool
	lookbackDays int
}

func newEstimateCmd(configPath *string) *cobra.Command {
	var (
		inputPath   string
		doReconcile bool
		meterLevel  bool
		lookback    int
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the cost of a volume described by a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(config.LogLevel)

			input, err := readResourceInput(inputPath)
			if err != nil {
				return err
			}

			db, err := store.Open(config.DatabasePath, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			output, err := runEstimate(cmd.Context(), config, logger, db, input, estimateOptions{
				reconcile:    doReconcile,
				meterLevel:   meterLevel,
				lookbackDays: lookback,
			})
			if err != nil {
				return err
			}
			return printJSON(output)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Path to the resource YAML (required)")
	cmd.Flags().BoolVar(&doReconcile, "reconcile", false, "Reconcile against actual billing data")
	cmd.Flags().BoolVar(&meterLevel, "meter-level", false, "Replace components with actual meter groups instead of rescaling")
	cmd.Flags().IntVar(&lookback, "lookback", 30, "Steady-state lookback window in days for the usage series")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// runEstimate wires the full pipeline: usage normalization, assumption
// resolution, formula engine, optional reconciliation.
func runEstimate(ctx context.Context, config Config, logger zerolog.Logger, db *store.SQLite, input resourceInput, opts estimateOptions) (*estimateOutput, error) {
	output := &estimateOutput{}

	if len(input.Usage) > 0 {
		points := make([]metrics.Point, 0, len(input.Usage))
		for _, p := range input.Usage {
			points = append(points, metrics.Point{Date: p.Date, Value: p.Value})
		}
		normalized := metrics.Normalize(points, opts.lookbackDays, metrics.DefaultChangeThreshold)
		output.Metrics = &normalized
		if input.CapacityGiB <= 0 {
			input.CapacityGiB = normalized.SteadyStateValue
		}
	}

	perm, ok := estimate.PermutationByID(input.Permutation)
	if !ok {
		return nil, fmt.Errorf("unknown pricing permutation %d", input.Permutation)
	}

	// Cool-access estimates with no explicit hot/cool split fall back to the
	// configured assumption hierarchy.
	if perm.CoolAccess && input.HotCapacityGiB <= 0 && input.CoolCapacityGiB <= 0 {
		resolver := assumptions.NewResolver(db, assumptions.Assumptions{}, logger)
		resolved := resolver.Resolve(ctx, input.JobID, input.VolumeID)
		output.Assumptions = &resolved

		input.CoolCapacityGiB = input.CapacityGiB * resolved.CoolDataPercentage / 100
		input.HotCapacityGiB = input.CapacityGiB - input.CoolCapacityGiB
		if input.RetrievedFromCoolGiB <= 0 {
			input.RetrievedFromCoolGiB = input.CoolCapacityGiB * resolved.CoolRetrievalPercentage / 100
		}
	}

	region := input.Region
	if region == "" {
		region = config.Region
	}

	cacheCfg := pricing.DefaultCacheConfig()
	if config.MemoryTTL > 0 {
		cacheCfg.MemoryTTL = config.MemoryTTL
	}
	if config.DurableTTL > 0 {
		cacheCfg.DurableTTL = config.DurableTTL
	}
	cache := pricing.NewCache(db, pricing.NewRetailClient(config.RetailBaseURL, logger), cacheCfg, logger)

	engine := estimate.NewEngine(cache, logger)
	est, err := engine.Calculate(ctx, estimate.Request{
		ResourceID:    input.ResourceID,
		Region:        region,
		PermutationID: input.Permutation,
		PeriodStart:   input.PeriodStart,
		PeriodEnd:     input.PeriodEnd,
		Inputs: estimate.Inputs{
			ProvisionedCapacityGiB:   input.CapacityGiB,
			HotCapacityGiB:           input.HotCapacityGiB,
			CoolCapacityGiB:          input.CoolCapacityGiB,
			DataTieredToCoolGiB:      input.TieredToCoolGiB,
			DataRetrievedFromCoolGiB: input.RetrievedFromCoolGiB,
			RequiredThroughputMiBps:  input.RequiredThroughputMiBps,
			SnapshotCapacityGiB:      input.SnapshotGiB,
			BackupCapacityGiB:        input.BackupGiB,
		},
	})
	if err != nil {
		return nil, err
	}
	output.Estimate = est

	if opts.reconcile {
		if config.BillingBaseURL == "" {
			return nil, fmt.Errorf("--reconcile requires billingBaseURL in the config")
		}
		reconciler := reconcile.NewReconciler(billing.NewClient(config.BillingBaseURL, logger), logger)
		result, err := reconciler.Reconcile(ctx, est, reconcile.Options{
			Scope:      config.BillingScope,
			MeterLevel: opts.meterLevel,
		})
		if err != nil {
			return nil, err
		}
		output.Estimate = result.Estimate
		if result.Metadata != (reconcile.VolumeMetadata{}) {
			meta := result.Metadata
			output.Metadata = &meta
		}
	}

	return output, nil
}

func readResourceInput(path string) (resourceInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return resourceInput{}, fmt.Errorf("reading resource file %s: %w", path, err)
	}
	var input resourceInput
	if err := yaml.Unmarshal(data, &input); err != nil {
		return resourceInput{}, fmt.Errorf("parsing resource file %s: %w", path, err)
	}
	if input.ResourceID == "" {
		return resourceInput{}, fmt.Errorf("resource file %s: resourceId is required", path)
	}
	if input.PeriodStart.IsZero() || !input.PeriodEnd.After(input.PeriodStart) {
		return resourceInput{}, fmt.Errorf("resource file %s: periodStart/periodEnd must form a valid range", path)
	}
	return input, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
