package speech

import (
	"context"
	"strings"
	"time"
)

// waitForJob drives an async transcription job to completion. check is
// called once per poll interval; it returns done=true when the job reached
// a terminal success, an error for terminal failures, and (false, nil) to
// keep waiting. Exhausting the attempt budget is TRANSCRIPTION_TIMEOUT.
func (c *client) waitForJob(ctx context.Context, jobID string, check func(context.Context) (bool, error)) error {
	for i := 0; i < c.opts.PollAttempts; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.PollInterval):
		}
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		c.log.Debug().Str("job", jobID).Int("poll", i+1).Msg("job still pending")
	}
	return newError(ErrTranscriptionTimeout, "job %s not finished after %d polls", jobID, c.opts.PollAttempts)
}

// jobOutcome classifies an async job status string: completed jobs are
// done, error/failed are terminal failures, anything else keeps polling.
func jobOutcome(status string) (done, failed bool) {
	switch strings.ToLower(status) {
	case "completed":
		return true, false
	case "error", "failed":
		return false, true
	default:
		return false, false
	}
}
