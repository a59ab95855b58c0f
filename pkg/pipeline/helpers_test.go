package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/askiada/go-imgpipe/pkg/pipeline"
	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
	"github.com/askiada/go-imgpipe/pkg/pipeline/notify"
)

const catalogJSON = `{
	"operations": [
		{"id": "blur", "name": "Blur", "category": "filters",
		 "params": {"radius": {"type": "range", "default": 5, "min": 1, "max": 20}}},
		{"id": "sharpen", "name": "Sharpen", "category": "filters",
		 "params": {"amount": {"type": "range", "default": 1, "min": 0, "max": 10}}},
		{"id": "grayscale", "name": "Grayscale", "category": "effects", "params": {}},
		{"id": "flip", "name": "Flip", "category": "transform",
		 "params": {"direction": {"type": "select", "options": ["horizontal", "vertical"]}}}
	],
	"categories": {"filters": {"name": "Filters"}, "effects": {"name": "Effects"}, "transform": {"name": "Transform"}}
}`

func testCatalog(t *testing.T) *model.Catalog {
	t.Helper()

	catalog := &model.Catalog{}
	require.NoError(t, json.Unmarshal([]byte(catalogJSON), catalog))

	return catalog
}

func pngImage(t *testing.T, name string, width, height int) model.Image {
	t.Helper()

	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, image.NewRGBA(image.Rect(0, 0, width, height))))

	return model.Image{Name: name, Data: buf.Bytes()}
}

type fakeTransport struct {
	mu         sync.Mutex
	catalog    *model.Catalog
	catalogErr error
	requests   []model.ProcessRequest
	// respond builds the result of the n-th request, starting at 1.
	respond func(n int, req model.ProcessRequest) (*model.ProcessResult, error)
	// started receives a value when a request reaches the transport.
	started chan struct{}
	// release, when set, holds every request until it is closed.
	release chan struct{}
}

func (f *fakeTransport) FetchCatalog(context.Context) (*model.Catalog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.catalog, f.catalogErr
}

func (f *fakeTransport) Process(ctx context.Context, req model.ProcessRequest) (*model.ProcessResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := len(f.requests)
	respond := f.respond
	f.mu.Unlock()

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if respond != nil {
		return respond(n, req)
	}

	return successResult(n, req), nil
}

func (f *fakeTransport) Requests() []model.ProcessRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]model.ProcessRequest{}, f.requests...)
}

// successResult returns a processed image named after the request number and one
// intermediate result per requested preview.
func successResult(n int, req model.ProcessRequest) *model.ProcessResult {
	res := &model.ProcessResult{
		Success:             true,
		Image:               model.Artifact(fmt.Sprintf("data:,processed-%d", n)),
		IntermediateResults: map[int]model.Artifact{},
		ProcessingTime:      12,
	}

	for _, idx := range req.PreviewSteps {
		res.IntermediateResults[idx] = model.Artifact(fmt.Sprintf("data:,preview-%d-%d", n, idx))
	}

	return res
}

type recordingRenderer struct {
	mu    sync.Mutex
	views []model.View
}

func (r *recordingRenderer) Render(view model.View) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.views = append(r.views, view)

	return nil
}

func (r *recordingRenderer) Last() model.View {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.views) == 0 {
		return model.View{}
	}

	return r.views[len(r.views)-1]
}

func (r *recordingRenderer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.views)
}

type releaseRecorder struct {
	mu        sync.Mutex
	resources []pipeline.Resource
}

func (r *releaseRecorder) hook(res pipeline.Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resources = append(r.resources, res)
}

func (r *releaseRecorder) All() []pipeline.Resource {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]pipeline.Resource{}, r.resources...)
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []model.Status
}

func (r *statusRecorder) hook(status model.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses = append(r.statuses, status)
}

func (r *statusRecorder) All() []model.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]model.Status{}, r.statuses...)
}

type fixture struct {
	pipe      *pipeline.Pipeline
	transport *fakeTransport
	renderer  *recordingRenderer
	notes     *notify.Recorder
	released  *releaseRecorder
	statuses  *statusRecorder
}

func newFixture(t *testing.T, live bool, opts ...pipeline.Option) *fixture {
	t.Helper()

	fx := &fixture{
		transport: &fakeTransport{catalog: testCatalog(t)},
		renderer:  &recordingRenderer{},
		notes:     &notify.Recorder{},
		released:  &releaseRecorder{},
		statuses:  &statusRecorder{},
	}

	opts = append([]pipeline.Option{
		pipeline.WithCatalog(testCatalog(t)),
		pipeline.WithLiveProcessing(live),
		pipeline.WithRenderer(fx.renderer),
		pipeline.WithNotifier(fx.notes),
		pipeline.WithReleaseHook(fx.released.hook),
		pipeline.WithStatusHook(fx.statuses.hook),
		pipeline.WithStatusDelays(time.Hour, time.Hour, time.Hour),
	}, opts...)

	pipe, err := pipeline.New(fx.transport, opts...)
	require.NoError(t, err)
	t.Cleanup(pipe.Close)

	fx.pipe = pipe

	return fx
}

func displayNames(steps []model.Step) []string {
	res := make([]string, 0, len(steps))
	for _, step := range steps {
		res = append(res, step.DisplayName)
	}

	return res
}
