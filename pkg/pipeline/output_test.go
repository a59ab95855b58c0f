package pipeline_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-imgpipe/pkg/pipeline"
	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
	"github.com/askiada/go-imgpipe/pkg/pipeline/notify"
)

func TestSaveStepOutput(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, false)
	ctx := context.Background()

	require.NoError(t, fx.pipe.AddStep(ctx, "blur"))
	require.NoError(t, fx.pipe.AddStep(ctx, "sharpen"))
	require.NoError(t, fx.pipe.AddStep(ctx, "grayscale"))
	require.NoError(t, fx.pipe.ToggleStepPreview(ctx, 2))

	_, err := fx.pipe.SaveStepOutput(ctx, 0)
	require.ErrorIs(t, err, pipeline.ErrNoImage)

	require.NoError(t, fx.pipe.SetImage(ctx, pngImage(t, "cat.png", 4, 4)))
	status := fx.pipe.Status()

	out, err := fx.pipe.SaveStepOutput(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "step_2_output.png", out.FileName)
	assert.False(t, out.Artifact.IsZero())

	reqs := fx.transport.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Steps, 2)
	assert.Equal(t, "sharpen", reqs[0].Steps[1].OperationID)
	assert.Empty(t, reqs[0].PreviewSteps)

	assert.Equal(t, status, fx.pipe.Status())
	assert.Len(t, fx.pipe.Steps(), 3)

	_, err = fx.pipe.SaveStepOutput(ctx, 3)
	assert.ErrorIs(t, err, pipeline.ErrStepOutOfRange)
}

func TestSaveStepOutputFailure(t *testing.T) {
	t.Parallel()

	tcs := map[string]func(int, model.ProcessRequest) (*model.ProcessResult, error){
		"transport error": func(int, model.ProcessRequest) (*model.ProcessResult, error) {
			return nil, assert.AnError
		},
		"server failure": func(int, model.ProcessRequest) (*model.ProcessResult, error) {
			return &model.ProcessResult{Error: "bad format"}, nil
		},
		"no image": func(int, model.ProcessRequest) (*model.ProcessResult, error) {
			return &model.ProcessResult{Success: true}, nil
		},
	}

	for name, respond := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fx := newFixture(t, false)
			fx.transport.respond = respond
			ctx := context.Background()

			require.NoError(t, fx.pipe.AddStep(ctx, "blur"))
			require.NoError(t, fx.pipe.SetImage(ctx, pngImage(t, "cat.png", 4, 4)))

			_, err := fx.pipe.SaveStepOutput(ctx, 0)
			require.ErrorIs(t, err, pipeline.ErrSaveFailed)

			note, ok := fx.notes.Last()
			require.True(t, ok)
			assert.Equal(t, notify.Notification{Message: "Failed to save step output", Level: notify.Error}, note)
			assert.EqualValues(t, 1, fx.pipe.Metrics().GetMetric("save_step").Failures())
		})
	}
}

func TestSaveStepOutputs(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32

	fx := newFixture(t, false, pipeline.WithSaveConcurrency(2))
	fx.transport.respond = func(n int, req model.ProcessRequest) (*model.ProcessResult, error) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)

		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}

		time.Sleep(10 * time.Millisecond)

		return &model.ProcessResult{
			Success: true,
			Image:   model.NewArtifact("image/png", []byte{byte(len(req.Steps))}),
		}, nil
	}
	ctx := context.Background()

	for _, id := range []string{"blur", "sharpen", "grayscale", "flip"} {
		require.NoError(t, fx.pipe.AddStep(ctx, id))
	}
	require.NoError(t, fx.pipe.SetImage(ctx, pngImage(t, "cat.png", 4, 4)))

	outs, err := fx.pipe.SaveStepOutputs(ctx, []int{3, 0, 2})
	require.NoError(t, err)
	require.Len(t, outs, 3)

	assert.Equal(t, "step_4_output.png", outs[0].FileName)
	assert.Equal(t, "step_1_output.png", outs[1].FileName)
	assert.Equal(t, "step_3_output.png", outs[2].FileName)

	_, data, err := outs[0].Artifact.Decode()
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, data)

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestSaveStepOutputsStopsOnFailure(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, false)
	ctx := context.Background()

	require.NoError(t, fx.pipe.AddStep(ctx, "blur"))
	require.NoError(t, fx.pipe.SetImage(ctx, pngImage(t, "cat.png", 4, 4)))

	_, err := fx.pipe.SaveStepOutputs(ctx, []int{0, 5})
	assert.ErrorIs(t, err, pipeline.ErrStepOutOfRange)
}
