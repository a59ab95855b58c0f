package pipeline

import (
	"log/slog"
	"time"

	"github.com/askiada/go-imgpipe/pkg/pipeline/measure"
	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
	"github.com/askiada/go-imgpipe/pkg/pipeline/notify"
)

const (
	DefaultDoneDelay       = time.Second
	DefaultErrorDelay      = 2 * time.Second
	DefaultDisabledDelay   = time.Second
	DefaultMaxFileSize     = 10 << 20
	DefaultMaxDimension    = 4096
	DefaultSaveConcurrency = 4
)

type Option func(p *Pipeline)

// WithRenderer sets the renderer called after every visible change.
func WithRenderer(renderer Renderer) Option {
	return func(p *Pipeline) {
		p.renderer = renderer
	}
}

func WithNotifier(notifier notify.Notifier) Option {
	return func(p *Pipeline) {
		p.notifier = notifier
	}
}

func WithMeasure(msr measure.Measure) Option {
	return func(p *Pipeline) {
		p.measure = msr
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithLiveProcessing sets the initial processing mode.
func WithLiveProcessing(enabled bool) Option {
	return func(p *Pipeline) {
		p.state.live = enabled
	}
}

// WithCatalog installs a catalog without fetching it.
func WithCatalog(catalog *model.Catalog) Option {
	return func(p *Pipeline) {
		p.state.catalog = catalog
	}
}

// WithStatusDelays overrides how long the done, error and disabled states last.
func WithStatusDelays(done, failed, disabled time.Duration) Option {
	return func(p *Pipeline) {
		p.doneDelay = done
		p.errorDelay = failed
		p.disabledDelay = disabled
	}
}

// WithLimits overrides the maximum image file size in bytes and the maximum width and height in pixels.
func WithLimits(maxFileSize int64, maxDimension int) Option {
	return func(p *Pipeline) {
		p.maxFileSize = maxFileSize
		p.maxDimension = maxDimension
	}
}

// WithSaveConcurrency bounds the number of concurrent requests of SaveStepOutputs.
func WithSaveConcurrency(concurrent int) Option {
	return func(p *Pipeline) {
		p.saveConcurrency = concurrent
	}
}

// WithStatusHook is called on every status change, with the pipeline lock held.
func WithStatusHook(fn func(model.Status)) Option {
	return func(p *Pipeline) {
		p.onStatus = fn
	}
}

// WithReleaseHook is called once for every image or artifact that leaves the pipeline,
// with the pipeline lock held.
func WithReleaseHook(fn func(Resource)) Option {
	return func(p *Pipeline) {
		p.onRelease = fn
	}
}
