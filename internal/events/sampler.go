package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codingquark/iss-pass-check/internal/propagation"
	"github.com/codingquark/iss-pass-check/internal/transform"
)

// sampleJob is a unit of work for the sampler pool.
type sampleJob struct {
	index int
	at    time.Time
}

// sampleResult carries one altitude sample back with its grid index so
// results can be reassembled in time order.
type sampleResult struct {
	index       int
	altitudeDeg float64
	err         error
}

// Sampler evaluates satellite altitude over a time grid using a fixed
// pool of goroutines. SGP4 samples are independent, so the grid
// parallelizes cleanly; results are returned in grid order regardless of
// completion order.
type Sampler struct {
	workers int
	logger  *slog.Logger
}

// NewSampler creates a sampler with the given number of workers.
// A non-positive count falls back to 1.
func NewSampler(workers int, logger *slog.Logger) *Sampler {
	if workers < 1 {
		workers = 1
	}
	return &Sampler{workers: workers, logger: logger}
}

// Altitudes computes the observer-relative altitude (degrees) at each
// grid time. The returned slice is index-aligned with times. The first
// propagation error aborts the batch.
func (s *Sampler) Altitudes(ctx context.Context, prop *propagation.SGP4Propagator, obs transform.ObserverPosition, times []time.Time) ([]float64, error) {
	if len(times) == 0 {
		return nil, nil
	}

	jobs := make(chan sampleJob, s.workers*2)
	results := make(chan sampleResult, s.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				alt, err := altitudeAt(prop, obs, job.at)
				select {
				case results <- sampleResult{index: job.index, altitudeDeg: alt, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, at := range times {
			select {
			case jobs <- sampleJob{index: i, at: at}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	altitudes := make([]float64, len(times))
	var firstErr error
	for result := range results {
		if result.err != nil {
			if firstErr == nil {
				firstErr = result.err
				s.logger.Warn("altitude sample failed",
					"index", result.index,
					"error", result.err,
				)
			}
			continue
		}
		altitudes[result.index] = result.altitudeDeg
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return altitudes, nil
}

// altitudeAt propagates to t and reduces to the observer's elevation.
func altitudeAt(prop *propagation.SGP4Propagator, obs transform.ObserverPosition, t time.Time) (float64, error) {
	teme, err := prop.Propagate(t)
	if err != nil {
		return 0, err
	}
	ecef := transform.TEMEToECEF(teme, t)
	return transform.ECEFToLookAngles(obs, ecef.X, ecef.Y, ecef.Z).ElevationDeg, nil
}
