package drawer

import (
	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
)

// Drawer is an interface that defines the methods for drawing a pipeline.
type Drawer interface {
	// Render draws the current view of the pipeline.
	Render(view model.View) error
}
