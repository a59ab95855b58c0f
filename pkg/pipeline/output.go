package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
	"github.com/askiada/go-imgpipe/pkg/pipeline/notify"
)

// DownloadName is the file name of the processed image.
const DownloadName = "processed-image.png"

// Output is an artifact offered to the user as a download.
type Output struct {
	FileName string
	Artifact model.Artifact
}

// Download returns the processed image.
func (p *Pipeline) Download() (Output, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	art, ok := p.artifacts.Get(processedSlot)
	if !ok {
		return Output{}, false
	}

	return Output{FileName: DownloadName, Artifact: art}, true
}

// Preview returns the intermediate result of the step at index.
func (p *Pipeline) Preview(index int) (model.Artifact, bool) {
	return p.artifacts.Get(previewSlot(index))
}

// SaveStepOutput processes the steps up to index, included, and returns the result.
// It does not touch the pipeline status and may run while another request is in flight.
func (p *Pipeline) SaveStepOutput(ctx context.Context, index int) (Output, error) {
	p.mu.Lock()

	if p.state.image == nil {
		p.mu.Unlock()

		return Output{}, ErrNoImage
	}

	if !p.state.inRange(index) {
		p.mu.Unlock()

		return Output{}, errors.Wrapf(ErrStepOutOfRange, "save step %d of %d", index, len(p.state.steps))
	}

	req := model.ProcessRequest{
		ID:           uuid.NewString(),
		Image:        *p.state.image,
		Steps:        p.state.Steps()[:index+1],
		PreviewSteps: []int{},
	}
	p.mu.Unlock()

	logger := p.logger.With(slog.String("request_id", req.ID))
	metric := p.measure.GetMetric(saveStepMetric)
	start := time.Now()

	res, err := p.transport.Process(ctx, req)

	switch {
	case err != nil:
	case res == nil:
		err = errEmptyResponse
	case !res.Success:
		err = errors.New(res.Error)
	case res.Image.IsZero():
		err = errors.New("no image in response")
	}

	if err != nil {
		metric.AddFailure(time.Since(start))
		logger.Error("unable to save step output", slog.Int("step", index), slog.Any("error", err))
		p.notify(notify.Error, "Failed to save step output")

		return Output{}, errors.Wrapf(ErrSaveFailed, "step %d: %s", index, err)
	}

	metric.AddDuration(time.Since(start))
	metric.AddServerDuration(res.ProcessingDuration())

	return Output{FileName: fmt.Sprintf("step_%d_output.png", index+1), Artifact: res.Image}, nil
}

// SaveStepOutputs saves the output of several steps concurrently. It stops on the first failure.
func (p *Pipeline) SaveStepOutputs(ctx context.Context, indices []int) ([]Output, error) {
	outputs := make([]Output, len(indices))

	errGrp, dCtx := errgroup.WithContext(ctx)
	if p.saveConcurrency > 0 {
		errGrp.SetLimit(p.saveConcurrency)
	}

	for i, index := range indices {
		errGrp.Go(func() error {
			out, err := p.SaveStepOutput(dCtx, index)
			if err != nil {
				return err
			}

			outputs[i] = out

			return nil
		})
	}

	err := errGrp.Wait()
	if err != nil {
		return nil, err
	}

	return outputs, nil
}
