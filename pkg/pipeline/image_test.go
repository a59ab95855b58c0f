package pipeline_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-imgpipe/pkg/pipeline"
	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
	"github.com/askiada/go-imgpipe/pkg/pipeline/notify"
)

func TestSetImageValidation(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		image      func(t *testing.T) model.Image
		opts       []pipeline.Option
		wantReason string
	}{
		"file too large": {
			image:      func(t *testing.T) model.Image { return pngImage(t, "big.png", 8, 8) },
			opts:       []pipeline.Option{pipeline.WithLimits(16, 4096)},
			wantReason: "Image file size must be less than 16 bytes",
		},
		"default file size": {
			image: func(t *testing.T) model.Image {
				return model.Image{Name: "huge.png", Data: make([]byte, pipeline.DefaultMaxFileSize+1)}
			},
			wantReason: "Image file size must be less than 10MB",
		},
		"not an image": {
			image:      func(*testing.T) model.Image { return model.Image{Name: "notes.txt", Data: []byte("hello")} },
			wantReason: "Failed to load image for validation",
		},
		"too wide": {
			image:      func(t *testing.T) model.Image { return pngImage(t, "wide.png", 4097, 1) },
			wantReason: "Image dimensions must be 4096x4096 pixels or smaller",
		},
		"too tall": {
			image:      func(t *testing.T) model.Image { return pngImage(t, "tall.png", 4, 32) },
			opts:       []pipeline.Option{pipeline.WithLimits(pipeline.DefaultMaxFileSize, 16)},
			wantReason: "Image dimensions must be 16x16 pixels or smaller",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fx := newFixture(t, true, tc.opts...)
			ctx := context.Background()
			previous := pngImage(t, "previous.png", 4, 4)

			require.NoError(t, fx.pipe.AddStep(ctx, "blur"))
			require.NoError(t, fx.pipe.SetImage(ctx, previous))

			before := fx.pipe.View()
			requests := len(fx.transport.Requests())
			candidate := tc.image(t)

			err := fx.pipe.SetImage(ctx, candidate)
			require.ErrorIs(t, err, pipeline.ErrValidation)

			var verr *pipeline.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.wantReason, verr.Reason)

			note, ok := fx.notes.Last()
			require.True(t, ok)
			assert.Equal(t, notify.Notification{Message: tc.wantReason, Level: notify.Error}, note)

			assert.Equal(t, before, fx.pipe.View())
			assert.Len(t, fx.transport.Requests(), requests)
			assert.Equal(t, []pipeline.Resource{{Kind: pipeline.ResourceImage, Name: candidate.Name}}, fx.released.All())
		})
	}
}

func TestSetImageReleasesPrevious(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, false)
	ctx := context.Background()

	require.NoError(t, fx.pipe.SetImage(ctx, pngImage(t, "first.png", 4, 4)))
	assert.Empty(t, fx.released.All())
	assert.Equal(t, model.StatusAddSteps, fx.pipe.Status())

	require.NoError(t, fx.pipe.SetImage(ctx, pngImage(t, "second.png", 4, 4)))
	assert.Equal(t, []pipeline.Resource{{Kind: pipeline.ResourceImage, Name: "first.png"}}, fx.released.All())
	assert.Equal(t, "second.png", fx.pipe.View().ImageName)

	fx.pipe.ResetImage()
	assert.Equal(t, []pipeline.Resource{
		{Kind: pipeline.ResourceImage, Name: "first.png"},
		{Kind: pipeline.ResourceImage, Name: "second.png"},
	}, fx.released.All())
	assert.False(t, fx.pipe.View().HasImage)
	assert.Equal(t, model.StatusWaiting, fx.pipe.Status())

	fx.pipe.ResetImage()
	assert.Len(t, fx.released.All(), 2)
}

func TestSetImageAcceptsGIF(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, false)

	// 1x1 GIF.
	gif := []byte{
		0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0xff, 0xff, 0xff,
		0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44,
		0x01, 0x00, 0x3b,
	}

	require.NoError(t, fx.pipe.SetImage(context.Background(), model.Image{Name: "dot.gif", Data: gif}))
	assert.True(t, fx.pipe.View().HasImage)
}

func TestSetImageWithoutStepsResetsProcessed(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, true)
	ctx := context.Background()

	require.NoError(t, fx.pipe.AddStep(ctx, "blur"))
	require.NoError(t, fx.pipe.SetImage(ctx, pngImage(t, "first.png", 4, 4)))

	_, ok := fx.pipe.Download()
	require.True(t, ok)

	require.NoError(t, fx.pipe.RemoveStep(ctx, 0))
	require.NoError(t, fx.pipe.SetImage(ctx, pngImage(t, "second.png", 4, 4)))

	_, ok = fx.pipe.Download()
	assert.False(t, ok)
	assert.Equal(t, model.StatusAddSteps, fx.pipe.Status())
	assert.Len(t, fx.transport.Requests(), 1)
}
