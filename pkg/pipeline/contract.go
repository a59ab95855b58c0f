package pipeline

import (
	"context"

	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
)

// Transport talks to the processing server.
type Transport interface {
	// FetchCatalog returns the operations offered by the server.
	FetchCatalog(ctx context.Context) (*model.Catalog, error)
	// Process submits the image and the serialised steps. A server side failure is
	// reported through the result, not through the error.
	Process(ctx context.Context, req model.ProcessRequest) (*model.ProcessResult, error)
}

// Renderer reflects the pipeline to the user. It is called without the pipeline lock held.
type Renderer interface {
	Render(view model.View) error
}

// ResourceKind identifies what a released resource was used for.
type ResourceKind string

const (
	ResourceImage     ResourceKind = "image"
	ResourceProcessed ResourceKind = "processed"
	ResourcePreview   ResourceKind = "preview"
)

// Resource describes an image or an artifact that left the pipeline.
type Resource struct {
	Kind ResourceKind
	// Index is the step index of a preview.
	Index int
	// Name is the file name of an image.
	Name string
}
