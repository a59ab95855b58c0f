package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-imgpipe/pkg/pipeline"
	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func TestDoneRevertsToSettledStatus(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		live bool
		want model.Status
	}{
		"live":   {live: true, want: model.StatusReady},
		"manual": {live: false, want: model.StatusActionNeeded},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fx := newFixture(t, tc.live, pipeline.WithStatusDelays(10*time.Millisecond, time.Hour, time.Hour))
			ctx := context.Background()

			require.NoError(t, fx.pipe.AddStep(ctx, "blur"))
			require.NoError(t, fx.pipe.SetImage(ctx, pngImage(t, "cat.png", 8, 8)))
			require.NoError(t, fx.pipe.Apply(ctx))

			assert.Eventually(t, func() bool {
				return fx.pipe.Status() == tc.want
			}, waitFor, tick)
			assert.Eventually(t, func() bool {
				return fx.renderer.Last().Status == tc.want
			}, waitFor, tick)
		})
	}
}

func TestErrorRevertsAfterItsDelay(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true, pipeline.WithStatusDelays(time.Hour, 20*time.Millisecond, time.Hour))
	fx.transport.respond = func(int, model.ProcessRequest) (*model.ProcessResult, error) {
		return &model.ProcessResult{Error: "bad format"}, nil
	}
	ctx := context.Background()

	require.NoError(t, fx.pipe.AddStep(ctx, "blur"))
	require.Error(t, fx.pipe.SetImage(ctx, pngImage(t, "cat.png", 8, 8)))
	assert.Equal(t, model.StatusError, fx.pipe.Status())

	assert.Eventually(t, func() bool {
		return fx.pipe.Status() == model.StatusReady
	}, waitFor, tick)
}

func TestDisabledAdvancesToActionNeeded(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true, pipeline.WithStatusDelays(time.Hour, time.Hour, 10*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, fx.pipe.AddStep(ctx, "blur"))
	require.NoError(t, fx.pipe.SetImage(ctx, pngImage(t, "cat.png", 8, 8)))

	require.NoError(t, fx.pipe.SetLiveProcessing(ctx, false))
	assert.Equal(t, model.StatusDisabled, fx.pipe.Status())

	assert.Eventually(t, func() bool {
		return fx.pipe.Status() == model.StatusActionNeeded
	}, waitFor, tick)
}

func TestExplicitStatusCancelsPendingRevert(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true, pipeline.WithStatusDelays(20*time.Millisecond, time.Hour, time.Hour))
	ctx := context.Background()

	require.NoError(t, fx.pipe.AddStep(ctx, "blur"))
	require.NoError(t, fx.pipe.SetImage(ctx, pngImage(t, "cat.png", 8, 8)))
	assert.Equal(t, model.StatusDone, fx.pipe.Status())

	fx.pipe.ResetImage()
	assert.Equal(t, model.StatusWaiting, fx.pipe.Status())

	time.Sleep(60 * time.Millisecond)

	statuses := fx.statuses.All()
	assert.Equal(t, model.StatusWaiting, statuses[len(statuses)-1])
	assert.NotContains(t, statuses, model.StatusReady)
}

func TestNoImageForcesWaiting(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, false)
	ctx := context.Background()

	require.NoError(t, fx.pipe.AddStep(ctx, "blur"))
	require.NoError(t, fx.pipe.SetLiveProcessing(ctx, true))
	assert.Equal(t, model.StatusWaiting, fx.pipe.Status())

	require.NoError(t, fx.pipe.ResetPipeline(ctx))
	assert.Equal(t, model.StatusWaiting, fx.pipe.Status())
}

func TestToggleLiveProcessing(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, false)
	ctx := context.Background()

	require.NoError(t, fx.pipe.SetImage(ctx, pngImage(t, "cat.png", 8, 8)))
	assert.Equal(t, model.StatusAddSteps, fx.pipe.Status())

	require.NoError(t, fx.pipe.ToggleLiveProcessing(ctx))
	assert.True(t, fx.pipe.View().LiveProcessing)
	assert.Equal(t, model.StatusAddSteps, fx.pipe.Status())

	require.NoError(t, fx.pipe.AddStep(ctx, "blur"))
	assert.Len(t, fx.transport.Requests(), 1)

	require.NoError(t, fx.pipe.ToggleLiveProcessing(ctx))
	assert.False(t, fx.pipe.View().LiveProcessing)
	assert.Equal(t, model.StatusDisabled, fx.pipe.Status())

	require.NoError(t, fx.pipe.ToggleLiveProcessing(ctx))
	assert.Len(t, fx.transport.Requests(), 2)
	assert.Equal(t, model.StatusDone, fx.pipe.Status())
}
