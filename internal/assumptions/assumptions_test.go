package assumptions

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeStore struct {
	volume    map[string]Override
	job       map[string]Override
	volumeErr error
	jobErr    error
}

func (s *fakeStore) VolumeOverride(_ context.Context, jobID, volumeID string) (Override, bool, error) {
	if s.volumeErr != nil {
		return Override{}, false, s.volumeErr
	}
	o, ok := s.volume[jobID+"|"+volumeID]
	return o, ok, nil
}

func (s *fakeStore) JobOverride(_ context.Context, jobID string) (Override, bool, error) {
	if s.jobErr != nil {
		return Override{}, false, s.jobErr
	}
	o, ok := s.job[jobID]
	return o, ok, nil
}

func TestResolvePrecedence(t *testing.T) {
	store := &fakeStore{
		volume: map[string]Override{
			"job1|vol1": {CoolDataPercentage: 55, CoolRetrievalPercentage: 5},
		},
		job: map[string]Override{
			"job1": {CoolDataPercentage: 70, CoolRetrievalPercentage: 10},
		},
	}
	r := NewResolver(store, Assumptions{}, zerolog.Nop())

	// Volume-specific wins; levels are never blended.
	got := r.Resolve(context.Background(), "job1", "vol1")
	assert.Equal(t, SourceVolume, got.Source)
	assert.InDelta(t, 55, got.CoolDataPercentage, 1e-9)
	assert.InDelta(t, 5, got.CoolRetrievalPercentage, 1e-9)

	// No volume record: job level wins.
	got = r.Resolve(context.Background(), "job1", "vol2")
	assert.Equal(t, SourceJob, got.Source)
	assert.InDelta(t, 70, got.CoolDataPercentage, 1e-9)

	// Nothing recorded: global default.
	got = r.Resolve(context.Background(), "job2", "vol9")
	assert.Equal(t, SourceGlobal, got.Source)
	assert.InDelta(t, DefaultAssumptions.CoolDataPercentage, got.CoolDataPercentage, 1e-9)
}

func TestResolveStoreErrorsDegrade(t *testing.T) {
	store := &fakeStore{
		volumeErr: errors.New("store offline"),
		job: map[string]Override{
			"job1": {CoolDataPercentage: 70, CoolRetrievalPercentage: 10},
		},
	}
	r := NewResolver(store, Assumptions{}, zerolog.Nop())

	got := r.Resolve(context.Background(), "job1", "vol1")
	assert.Equal(t, SourceJob, got.Source, "volume lookup error falls through to job level")

	store.jobErr = errors.New("store offline")
	got = r.Resolve(context.Background(), "job1", "vol1")
	assert.Equal(t, SourceGlobal, got.Source, "job lookup error falls through to defaults")
}

func TestResolveCustomDefaults(t *testing.T) {
	r := NewResolver(&fakeStore{}, Assumptions{CoolDataPercentage: 60, CoolRetrievalPercentage: 15}, zerolog.Nop())

	got := r.Resolve(context.Background(), "", "")
	assert.Equal(t, SourceGlobal, got.Source)
	assert.InDelta(t, 60, got.CoolDataPercentage, 1e-9)
}
