// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     voice
// Description: Background job polling
// Author:      Mike Stoffels
// Created:     2025-12-10
// License:     MIT
// ============================================================================

package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// awaitJob polls a background job until it is done and decodes its result
// into out. It gives up after maxAttempts polls with ErrJobTimeout.
func awaitJob(ctx context.Context, a Assistant, id string, interval time.Duration, maxAttempts int, out interface{}) error {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		st, err := a.Job(ctx, id)
		if err != nil {
			return fmt.Errorf("poll job %s: %w", id, err)
		}

		switch st.Status {
		case JobDone:
			if len(st.Result) == 0 {
				return nil
			}
			if err := json.Unmarshal(st.Result, out); err != nil {
				return fmt.Errorf("decode job %s result: %w", id, err)
			}
			return nil
		case JobFailed:
			return &JobError{JobID: id, Code: st.Code, Message: st.Message}
		}

		if attempt == maxAttempts || interval <= 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return fmt.Errorf("job %s: %w", id, ErrJobTimeout)
}
