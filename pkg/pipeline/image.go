package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"log/slog"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
	"github.com/askiada/go-imgpipe/pkg/pipeline/notify"
)

func sizeLabel(size int64) string {
	if size >= 1<<20 && size%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", size>>20)
	}

	return fmt.Sprintf("%d bytes", size)
}

// validate checks the file size and the dimensions read from the image header.
func (p *Pipeline) validate(img model.Image) error {
	if img.Size() > p.maxFileSize {
		return &ValidationError{
			Reason: "Image file size must be less than " + sizeLabel(p.maxFileSize),
		}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return &ValidationError{Reason: "Failed to load image for validation", Err: err}
	}

	if cfg.Width > p.maxDimension || cfg.Height > p.maxDimension {
		return &ValidationError{
			Reason: fmt.Sprintf("Image dimensions must be %dx%d pixels or smaller", p.maxDimension, p.maxDimension),
		}
	}

	return nil
}

// SetImage validates img and makes it the current image, releasing the previous one.
// A rejected image is released and leaves the pipeline untouched.
func (p *Pipeline) SetImage(ctx context.Context, img model.Image) error {
	err := p.validate(img)
	if err != nil {
		p.logger.Info("image rejected", slog.String("image", img.Name), slog.Any("error", err))

		p.mu.Lock()
		p.release(Resource{Kind: ResourceImage, Name: img.Name})
		p.mu.Unlock()

		reason := err.Error()

		var verr *ValidationError
		if errors.As(err, &verr) {
			reason = verr.Reason
		}

		p.notify(notify.Error, reason)

		return err
	}

	p.mu.Lock()

	p.images.Put(currentImage, img)
	p.state.SetImage(&img)

	process := false

	switch {
	case len(p.state.steps) == 0:
		p.artifacts.Release(processedSlot)
		p.processingTime = 0
		p.requestStatusLocked(model.StatusAddSteps)
	case p.state.live:
		process = true
	default:
		p.requestStatusLocked(model.StatusActionNeeded)
	}

	view := p.viewLocked()
	p.mu.Unlock()

	p.logger.Debug("image selected", slog.String("image", img.Name), slog.Int64("size", img.Size()))
	p.render(view)

	if process {
		return p.Process(ctx, TriggerAuto)
	}

	return nil
}

// ResetImage releases the current image and every artifact derived from it.
func (p *Pipeline) ResetImage() {
	p.mu.Lock()

	p.images.Release(currentImage)
	p.state.SetImage(nil)
	p.artifacts.ReleaseAll()
	p.processingTime = 0
	p.requestStatusLocked(model.StatusWaiting)

	view := p.viewLocked()
	p.mu.Unlock()

	p.render(view)
}
