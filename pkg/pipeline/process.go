package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
	"github.com/askiada/go-imgpipe/pkg/pipeline/notify"
)

var errEmptyResponse = errors.New("empty response")

// Process submits the pipeline to the server. An auto trigger is honoured in live mode only.
// Without an image, while another request is in flight, or once closed, it returns immediately.
func (p *Pipeline) Process(ctx context.Context, trigger Trigger) error {
	p.mu.Lock()

	if !p.state.live && trigger != TriggerManual {
		p.mu.Unlock()

		return nil
	}

	if p.closed.Load() || p.state.image == nil || p.state.processing {
		p.mu.Unlock()

		return nil
	}

	p.state.processing = true
	p.requestStatusLocked(model.StatusProcessing)

	req := model.ProcessRequest{
		ID:           uuid.NewString(),
		Image:        *p.state.image,
		Steps:        p.state.Steps(),
		PreviewSteps: p.state.ActivePreviewSteps(),
	}
	token := p.state.version
	view := p.viewLocked()
	p.mu.Unlock()

	p.render(view)

	rerun, err := p.roundTrip(ctx, req, token)
	if err != nil {
		return err
	}

	if rerun {
		return p.Process(ctx, TriggerAuto)
	}

	return nil
}

// endProcess clears the in-flight flag and renders the outcome of the request.
func (p *Pipeline) endProcess() {
	p.mu.Lock()
	p.state.processing = false
	view := p.viewLocked()
	p.mu.Unlock()

	p.render(view)
}

// roundTrip sends req and applies the result, success or failure, if the state did not
// change since token. It reports whether a stale result was discarded in live mode.
func (p *Pipeline) roundTrip(ctx context.Context, req model.ProcessRequest, token uint64) (bool, error) {
	defer p.endProcess()

	logger := p.logger.With(slog.String("request_id", req.ID))
	logger.Debug("processing image",
		slog.Int("steps", len(req.Steps)),
		slog.Any("previews", req.PreviewSteps),
	)

	metric := p.measure.GetMetric(processMetric)
	start := time.Now()

	res, err := p.transport.Process(ctx, req)
	if err == nil && res == nil {
		err = errEmptyResponse
	}

	elapsed := time.Since(start)

	failed := err != nil || !res.Success
	if failed {
		metric.AddFailure(elapsed)
	} else {
		metric.AddDuration(elapsed)
		metric.AddServerDuration(res.ProcessingDuration())
	}

	p.mu.Lock()

	if p.closed.Load() {
		p.mu.Unlock()

		return false, nil
	}

	if token != p.state.version {
		logger.Info("discarding stale result",
			slog.Uint64("token", token),
			slog.Uint64("version", p.state.version),
			slog.Bool("failed", failed),
		)
		p.requestStatusLocked(p.state.settledStatus())
		rerun := p.state.live
		p.mu.Unlock()

		return rerun, nil
	}

	if failed {
		p.requestStatusLocked(model.StatusError)
		p.mu.Unlock()

		perr := newProcessingError(res, err)
		logger.Error("processing failed", slog.Any("error", perr), slog.Duration("elapsed", elapsed))
		p.notify(notify.Error, perr.Error())

		return false, perr
	}

	if !res.Image.IsZero() {
		p.artifacts.Put(processedSlot, res.Image)
	}

	for idx, art := range res.IntermediateResults {
		if !p.state.IsPreviewed(idx) || !p.state.inRange(idx) {
			continue
		}

		p.artifacts.Put(previewSlot(idx), art)
	}

	p.processingTime = res.ProcessingDuration()
	p.state.recordProcessed(req.Steps)
	p.requestStatusLocked(model.StatusDone)
	p.mu.Unlock()

	logger.Debug("image processed",
		slog.Duration("elapsed", elapsed),
		slog.Float64("server_ms", res.ProcessingTime),
		slog.Int("previews", len(res.IntermediateResults)),
	)

	return false, nil
}

func newProcessingError(res *model.ProcessResult, err error) *ProcessingError {
	if err != nil {
		return &ProcessingError{Message: "Image processing failed", Err: err}
	}

	if res.Error != "" {
		return &ProcessingError{Message: res.Error}
	}

	return &ProcessingError{Message: "Processing failed"}
}
