package state

import (
	"fmt"
	"time"

	"conductor/pkg/models"
)

// RecordAgentDuration appends one completed agent turn to the duration
// history used for ETA estimates.
func (db *DB) RecordAgentDuration(agent string, d time.Duration) error {
	_, err := db.Exec(`
		INSERT INTO agent_durations (agent, duration_ms, recorded_at)
		VALUES (?, ?, ?)
	`, agent, d.Milliseconds(), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("record duration for %s: %w", agent, err)
	}
	return nil
}

// AverageAgentDuration returns the historical mean turn duration for
// one agent, or zero when no history exists.
func (db *DB) AverageAgentDuration(agent string) (time.Duration, error) {
	var avgMS float64
	row := db.QueryRow(`
		SELECT COALESCE(AVG(duration_ms), 0) FROM agent_durations WHERE agent = ?
	`, agent)
	if err := row.Scan(&avgMS); err != nil {
		return 0, fmt.Errorf("average duration for %s: %w", agent, err)
	}
	return time.Duration(avgMS) * time.Millisecond, nil
}

// EstimateProgress computes a best-effort completion estimate from the
// agents already completed versus the planned sequence, weighting each
// agent by its historical average duration. Agents without history get
// equal weight. The estimate is advisory, never a guarantee.
func (db *DB) EstimateProgress(plan, completed []string) (models.Progress, error) {
	if len(plan) == 0 {
		return models.Progress{}, nil
	}

	weights := make(map[string]time.Duration, len(plan))
	var known time.Duration
	knownCount := 0
	for _, agent := range plan {
		avg, err := db.AverageAgentDuration(agent)
		if err != nil {
			return models.Progress{}, err
		}
		weights[agent] = avg
		if avg > 0 {
			known += avg
			knownCount++
		}
	}

	// Fill missing history with the mean of the known averages, or a
	// uniform placeholder when nothing is known.
	fallback := time.Minute
	if knownCount > 0 {
		fallback = known / time.Duration(knownCount)
	}
	var total, done time.Duration
	for _, agent := range plan {
		w := weights[agent]
		if w <= 0 {
			w = fallback
		}
		total += w
	}
	for _, agent := range completed {
		w := weights[agent]
		if w <= 0 {
			w = fallback
		}
		done += w
	}
	if done > total {
		done = total
	}

	return models.Progress{
		Percent: float64(done) / float64(total) * 100,
		ETA:     total - done,
	}, nil
}
