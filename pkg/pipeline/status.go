package pipeline

import (
	"time"

	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
)

// Status returns the current processing status.
func (p *Pipeline) Status() model.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.status
}

func (p *Pipeline) cancelStatusTimerLocked() {
	p.statusGen++

	if p.statusTimer != nil {
		p.statusTimer.Stop()
		p.statusTimer = nil
	}
}

// requestStatusLocked moves to status and cancels any pending revert. Without an image every
// status but processing shows as waiting.
func (p *Pipeline) requestStatusLocked(status model.Status) {
	p.cancelStatusTimerLocked()

	if p.closed.Load() {
		return
	}

	if p.state.image == nil && status != model.StatusProcessing {
		status = model.StatusWaiting
	}

	if status != p.status {
		p.logger.Debug("status changed", "from", p.status, "status", status)
	}

	p.status = status
	if p.onStatus != nil {
		p.onStatus(status)
	}

	switch status {
	case model.StatusDone:
		p.scheduleStatusLocked(p.doneDelay, p.state.settledStatus)
	case model.StatusError:
		p.scheduleStatusLocked(p.errorDelay, p.state.settledStatus)
	case model.StatusDisabled:
		if len(p.state.steps) > 0 {
			p.scheduleStatusLocked(p.disabledDelay, func() model.Status { return model.StatusActionNeeded })
		}
	}
}

// scheduleStatusLocked moves to the status returned by next after delay, unless another
// status was requested in the meantime.
func (p *Pipeline) scheduleStatusLocked(delay time.Duration, next func() model.Status) {
	gen := p.statusGen

	p.statusTimer = time.AfterFunc(delay, func() {
		p.mu.Lock()
		if gen != p.statusGen {
			p.mu.Unlock()

			return
		}

		p.requestStatusLocked(next())
		view := p.viewLocked()
		p.mu.Unlock()

		p.render(view)
	})
}
