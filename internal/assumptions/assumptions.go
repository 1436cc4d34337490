// Package assumptions resolves cool-data sizing assumptions through a
// three-level override hierarchy: volume-specific, then job-level, then the
// global default. The first level with an explicit record wins; levels are
// never merged or blended.
package assumptions

import (
	"context"

	"github.com/rs/zerolog"
)

// Source names the hierarchy level an assumption was resolved from.
type Source string

const (
	SourceVolume Source = "volume"
	SourceJob    Source = "job"
	SourceGlobal Source = "global"
)

// Assumptions describe what share of a volume's data is expected to sit in
// the cool tier and what share of that is retrieved per month.
type Assumptions struct {
	CoolDataPercentage      float64 `json:"coolDataPercentage"`
	CoolRetrievalPercentage float64 `json:"coolRetrievalPercentage"`
	Source                  Source  `json:"source"`
}

// Override is an explicit record at the volume or job level.
type Override struct {
	CoolDataPercentage      float64
	CoolRetrievalPercentage float64
}

// Store provides the persisted override records.
type Store interface {
	VolumeOverride(ctx context.Context, jobID, volumeID string) (Override, bool, error)
	JobOverride(ctx context.Context, jobID string) (Override, bool, error)
}

// DefaultAssumptions is the global fallback applied when no override exists.
var DefaultAssumptions = Assumptions{
	CoolDataPercentage:      80,
	CoolRetrievalPercentage: 20,
	Source:                  SourceGlobal,
}

// Resolver resolves assumptions for a (job, volume) pair.
type Resolver struct {
	store    Store
	defaults Assumptions
	logger   zerolog.Logger
}

// NewResolver creates a resolver over the given override store. A zero
// defaults value falls back to DefaultAssumptions.
func NewResolver(store Store, defaults Assumptions, logger zerolog.Logger) *Resolver {
	if defaults == (Assumptions{}) {
		defaults = DefaultAssumptions
	}
	defaults.Source = SourceGlobal
	return &Resolver{store: store, defaults: defaults, logger: logger}
}

// Resolve walks the hierarchy for the pair. Store errors degrade to the next
// level rather than failing the estimate; a lookup problem is logged, not
// propagated.
func (r *Resolver) Resolve(ctx context.Context, jobID, volumeID string) Assumptions {
	if volumeID != "" {
		if o, found, err := r.store.VolumeOverride(ctx, jobID, volumeID); err != nil {
			r.logger.Warn().Str("job_id", jobID).Str("volume_id", volumeID).Err(err).
				Msg("volume override lookup failed; trying job level")
		} else if found {
			return Assumptions{
				CoolDataPercentage:      o.CoolDataPercentage,
				CoolRetrievalPercentage: o.CoolRetrievalPercentage,
				Source:                  SourceVolume,
			}
		}
	}

	if jobID != "" {
		if o, found, err := r.store.JobOverride(ctx, jobID); err != nil {
			r.logger.Warn().Str("job_id", jobID).Err(err).
				Msg("job override lookup failed; using global default")
		} else if found {
			return Assumptions{
				CoolDataPercentage:      o.CoolDataPercentage,
				CoolRetrievalPercentage: o.CoolRetrievalPercentage,
				Source:                  SourceJob,
			}
		}
	}

	return r.defaults
}
