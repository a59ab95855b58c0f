package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/askiada/go-imgpipe/internal/store"
	"github.com/askiada/go-imgpipe/pkg/pipeline/measure"
	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
	"github.com/askiada/go-imgpipe/pkg/pipeline/notify"
)

const (
	catalogMetric  = "catalog"
	processMetric  = "process"
	saveStepMetric = "save_step"
)

const currentImage = "current"

// slot identifies an artifact: the processed image, or the preview of a step.
type slot struct {
	preview bool
	index   int
}

var processedSlot = slot{}

func previewSlot(index int) slot {
	return slot{preview: true, index: index}
}

// Pipeline is an image-processing pipeline bound to a processing server.
type Pipeline struct {
	mu        sync.Mutex
	closed    atomic.Bool
	state     *State
	transport Transport
	renderer  Renderer
	notifier  notify.Notifier
	measure   measure.Measure
	logger    *slog.Logger

	images    *store.MemoryStore[string, model.Image]
	artifacts *store.MemoryStore[slot, model.Artifact]

	status         model.Status
	statusTimer    *time.Timer
	statusGen      uint64
	processingTime time.Duration

	doneDelay       time.Duration
	errorDelay      time.Duration
	disabledDelay   time.Duration
	maxFileSize     int64
	maxDimension    int
	saveConcurrency int

	onStatus  func(model.Status)
	onRelease func(Resource)
}

// New creates a new pipeline. The catalog is loaded by Init unless WithCatalog is given.
func New(transport Transport, opts ...Option) (*Pipeline, error) {
	if transport == nil {
		return nil, ErrTransportMustBeSet
	}

	pipe := &Pipeline{
		state:           NewState(nil),
		transport:       transport,
		measure:         measure.NewDefaultMeasure(),
		status:          model.StatusWaiting,
		doneDelay:       DefaultDoneDelay,
		errorDelay:      DefaultErrorDelay,
		disabledDelay:   DefaultDisabledDelay,
		maxFileSize:     DefaultMaxFileSize,
		maxDimension:    DefaultMaxDimension,
		saveConcurrency: DefaultSaveConcurrency,
	}

	for _, opt := range opts {
		opt(pipe)
	}

	if pipe.logger == nil {
		pipe.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if pipe.notifier == nil {
		pipe.notifier = notify.LogNotifier{Logger: pipe.logger}
	}

	pipe.images = store.NewMemoryStore[string, model.Image](func(_ string, img model.Image) {
		pipe.release(Resource{Kind: ResourceImage, Name: img.Name})
	})
	pipe.artifacts = store.NewMemoryStore[slot, model.Artifact](func(k slot, _ model.Artifact) {
		if k.preview {
			pipe.release(Resource{Kind: ResourcePreview, Index: k.index})

			return
		}

		pipe.release(Resource{Kind: ResourceProcessed})
	})

	return pipe, nil
}

func (p *Pipeline) release(res Resource) {
	if p.onRelease != nil {
		p.onRelease(res)
	}
}

func (p *Pipeline) notify(level notify.Level, message string) {
	p.notifier.Notify(notify.Notification{Message: message, Level: level})
}

// Init loads the operation catalog. Calling it again retries a failed load.
func (p *Pipeline) Init(ctx context.Context) error {
	start := time.Now()
	metric := p.measure.GetMetric(catalogMetric)

	catalog, err := p.transport.FetchCatalog(ctx)
	if err == nil {
		err = catalog.Validate()
	}

	if err != nil {
		metric.AddFailure(time.Since(start))
		p.logger.Error("unable to load operations", slog.Any("error", err))
		p.notify(notify.Error, "Failed to load operations: "+err.Error())

		return &CatalogLoadError{Err: err}
	}

	metric.AddDuration(time.Since(start))
	p.logger.Info("operations loaded",
		slog.Int("operations", len(catalog.Operations)),
		slog.Int("categories", len(catalog.Categories)),
		slog.Duration("elapsed", time.Since(start)),
	)

	p.mu.Lock()
	p.state.catalog = catalog
	view := p.viewLocked()
	p.mu.Unlock()

	p.render(view)

	return nil
}

// Catalog returns the loaded catalog, nil before Init.
func (p *Pipeline) Catalog() *model.Catalog {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state.catalog
}

// Dispatch applies cmd and executes its effects. Commands that do not apply, such as an
// out of range index, are ignored. The returned error comes from the processing they trigger.
func (p *Pipeline) Dispatch(ctx context.Context, cmd Command) error {
	p.mu.Lock()

	effects, err := p.state.Apply(cmd)
	if err != nil {
		p.mu.Unlock()
		p.logger.Debug("command ignored", slog.String("command", fmt.Sprintf("%T", cmd)), slog.Any("error", err))

		return nil
	}

	trigger, process := p.runEffectsLocked(effects)

	var view model.View
	if len(effects) > 0 {
		view = p.viewLocked()
	}
	p.mu.Unlock()

	if len(effects) > 0 {
		p.render(view)
	}

	if !process {
		return nil
	}

	return p.Process(ctx, trigger)
}

// runEffectsLocked executes every effect but processing, which needs the lock released.
func (p *Pipeline) runEffectsLocked(effects []Effect) (Trigger, bool) {
	trigger, process := TriggerAuto, false

	for _, eff := range effects {
		switch e := eff.(type) {
		case EffectRender:
		case EffectStatus:
			p.requestStatusLocked(e.Status)
		case EffectSettleStatus:
			p.requestStatusLocked(p.state.settledStatus())
		case EffectProcess:
			process = true
			if e.Trigger == TriggerManual {
				trigger = TriggerManual
			}
		case EffectReleasePreview:
			p.artifacts.Release(previewSlot(e.Index))
		case EffectReleasePreviews:
			p.artifacts.ReleaseIf(func(k slot) bool { return k.preview })
		case EffectResetProcessed:
			p.artifacts.Release(processedSlot)
			p.processingTime = 0
		}
	}

	return trigger, process
}

func (p *Pipeline) AddStep(ctx context.Context, operationID string) error {
	return p.Dispatch(ctx, AddStep{OperationID: operationID})
}

func (p *Pipeline) RemoveStep(ctx context.Context, index int) error {
	return p.Dispatch(ctx, RemoveStep{Index: index})
}

func (p *Pipeline) MoveStep(ctx context.Context, from int, direction Direction) error {
	return p.Dispatch(ctx, MoveStep{From: from, Direction: direction})
}

func (p *Pipeline) UpdateStepParams(ctx context.Context, index int, params model.Params) error {
	return p.Dispatch(ctx, UpdateParams{Index: index, Params: params})
}

func (p *Pipeline) ToggleStepPreview(ctx context.Context, index int) error {
	return p.Dispatch(ctx, TogglePreview{Index: index})
}

func (p *Pipeline) ResetPipeline(ctx context.Context) error {
	return p.Dispatch(ctx, Reset{})
}

func (p *Pipeline) SetLiveProcessing(ctx context.Context, enabled bool) error {
	return p.Dispatch(ctx, SetLive{Enabled: enabled})
}

func (p *Pipeline) ToggleLiveProcessing(ctx context.Context) error {
	return p.Dispatch(ctx, ToggleLive{})
}

func (p *Pipeline) SetPreviewsVisible(ctx context.Context, visible bool) error {
	return p.Dispatch(ctx, SetPreviewsVisible{Visible: visible})
}

// Apply processes the pipeline whatever the processing mode.
func (p *Pipeline) Apply(ctx context.Context) error {
	return p.Dispatch(ctx, Apply{})
}

// Steps returns a copy of the steps.
func (p *Pipeline) Steps() []model.Step {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state.Steps()
}

// PreviewSteps returns the indices flagged for a preview.
func (p *Pipeline) PreviewSteps() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state.PreviewSteps()
}

func (p *Pipeline) Processing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state.processing
}

func (p *Pipeline) LastProcessedParams() map[string]model.Params {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state.LastProcessedParams()
}

// View returns a snapshot of the pipeline as handed to the renderer.
func (p *Pipeline) View() model.View {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.viewLocked()
}

func (p *Pipeline) viewLocked() model.View {
	view := model.View{
		Steps:           p.state.Steps(),
		PreviewSteps:    p.state.PreviewSteps(),
		PreviewsVisible: p.state.previewsVisible,
		Previews:        map[int]model.Artifact{},
		HasImage:        p.state.image != nil,
		LiveProcessing:  p.state.live,
		Processing:      p.state.processing,
		Status:          p.status,
		ProcessingTime:  p.processingTime,
	}

	if p.state.image != nil {
		view.ImageName = p.state.image.Name
	}

	for k, art := range p.artifacts.Snapshot() {
		if k.preview {
			view.Previews[k.index] = art

			continue
		}

		view.Processed = art
	}

	return view
}

func (p *Pipeline) render(view model.View) {
	if p.renderer == nil || p.closed.Load() {
		return
	}

	err := p.renderer.Render(view)
	if err != nil {
		p.logger.Warn("unable to render pipeline", slog.Any("error", err))
	}
}

// Metrics returns the request metrics.
func (p *Pipeline) Metrics() measure.Measure {
	return p.measure
}

// Close stops the pending status timer and releases every held resource. A request still
// in flight is dropped when it returns.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed.Store(true)
	p.cancelStatusTimerLocked()
	p.artifacts.ReleaseAll()
	p.images.ReleaseAll()
}
