package pipeline

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
)

// State is the bookkeeping of a pipeline: its steps, the steps flagged for a preview, the current image and the
// processing mode. It is not safe for concurrent use; the Pipeline guards it with its lock.
type State struct {
	catalog         *model.Catalog
	steps           []model.Step
	previews        map[int]struct{}
	operationCounts map[string]int
	image           *model.Image
	processing      bool
	live            bool
	previewsVisible bool
	// lastProcessedParams maps an operation id to the parameters last sent for it.
	lastProcessedParams map[string]model.Params
	// version changes whenever the steps or the image change.
	version uint64
}

func NewState(catalog *model.Catalog) *State {
	return &State{
		catalog:             catalog,
		previews:            make(map[int]struct{}),
		operationCounts:     make(map[string]int),
		previewsVisible:     true,
		lastProcessedParams: make(map[string]model.Params),
	}
}

// Apply runs cmd against the state and returns the effects to execute.
func (s *State) Apply(cmd Command) ([]Effect, error) {
	switch c := cmd.(type) {
	case AddStep:
		return s.addStep(c.OperationID)
	case RemoveStep:
		return s.removeStep(c.Index)
	case MoveStep:
		return s.moveStep(c.From, c.Direction)
	case UpdateParams:
		return s.updateParams(c.Index, c.Params)
	case TogglePreview:
		return s.togglePreview(c.Index)
	case Reset:
		return s.reset(), nil
	case SetLive:
		return s.setLive(c.Enabled), nil
	case ToggleLive:
		return s.setLive(!s.live), nil
	case Apply:
		return []Effect{EffectProcess{Trigger: TriggerManual}}, nil
	case SetPreviewsVisible:
		return s.setPreviewsVisible(c.Visible), nil
	default:
		return nil, errors.Wrapf(ErrUnknownCommand, "%T", cmd)
	}
}

func (s *State) Catalog() *model.Catalog {
	return s.catalog
}

// Steps returns a copy of the steps.
func (s *State) Steps() []model.Step {
	res := make([]model.Step, 0, len(s.steps))
	for _, step := range s.steps {
		res = append(res, step.Clone())
	}

	return res
}

func (s *State) Len() int {
	return len(s.steps)
}

// PreviewSteps returns the indices flagged for a preview, in increasing order.
func (s *State) PreviewSteps() []int {
	res := make([]int, 0, len(s.previews))
	for idx := range s.previews {
		res = append(res, idx)
	}

	sort.Ints(res)

	return res
}

// ActivePreviewSteps returns the preview indices to request from the server: the ones in
// bounds, and none when previews are hidden.
func (s *State) ActivePreviewSteps() []int {
	res := []int{}
	if !s.previewsVisible {
		return res
	}

	for _, idx := range s.PreviewSteps() {
		if idx < len(s.steps) {
			res = append(res, idx)
		}
	}

	return res
}

func (s *State) IsPreviewed(index int) bool {
	_, ok := s.previews[index]

	return ok
}

func (s *State) PreviewsVisible() bool {
	return s.previewsVisible
}

func (s *State) HasImage() bool {
	return s.image != nil
}

// Image returns the current image.
func (s *State) Image() (model.Image, bool) {
	if s.image == nil {
		return model.Image{}, false
	}

	return *s.image, true
}

// SetImage replaces the current image. A nil image clears it.
func (s *State) SetImage(img *model.Image) {
	s.image = img
	s.version++
}

func (s *State) Live() bool {
	return s.live
}

func (s *State) Processing() bool {
	return s.processing
}

func (s *State) Version() uint64 {
	return s.version
}

// OperationCount returns the number of steps using the operation.
func (s *State) OperationCount(operationID string) int {
	return s.operationCounts[operationID]
}

func (s *State) LastProcessedParams() map[string]model.Params {
	res := make(map[string]model.Params, len(s.lastProcessedParams))
	for id, params := range s.lastProcessedParams {
		res[id] = params.Clone()
	}

	return res
}

func (s *State) recordProcessed(steps []model.Step) {
	s.lastProcessedParams = make(map[string]model.Params, len(steps))
	for _, step := range steps {
		s.lastProcessedParams[step.OperationID] = step.Params.Clone()
	}
}

func (s *State) operationName(operationID string) string {
	if op, ok := s.catalog.Operation(operationID); ok {
		return op.Name
	}

	return operationID
}

func displayName(name string, occurrence int) string {
	if occurrence <= 1 {
		return name
	}

	return fmt.Sprintf("%s (%d)", name, occurrence)
}

// renumber recomputes the display names of the steps using one of operationIDs,
// or of every step when none is given.
func (s *State) renumber(operationIDs ...string) {
	only := make(map[string]struct{}, len(operationIDs))
	for _, id := range operationIDs {
		only[id] = struct{}{}
	}

	seen := make(map[string]int)

	for i := range s.steps {
		id := s.steps[i].OperationID
		if _, ok := only[id]; len(only) > 0 && !ok {
			continue
		}

		seen[id]++
		s.steps[i].DisplayName = displayName(s.operationName(id), seen[id])
	}
}

func (s *State) inRange(index int) bool {
	return index >= 0 && index < len(s.steps)
}

// settledStatus is the resting status of the pipeline.
func (s *State) settledStatus() model.Status {
	switch {
	case s.image == nil:
		return model.StatusWaiting
	case len(s.steps) == 0:
		return model.StatusAddSteps
	case s.live:
		return model.StatusReady
	default:
		return model.StatusActionNeeded
	}
}

func (s *State) setLive(enabled bool) []Effect {
	s.live = enabled

	effects := []Effect{EffectRender{}}

	switch {
	case s.image == nil:
		effects = append(effects, EffectStatus{Status: model.StatusWaiting})
	case len(s.steps) == 0:
		effects = append(effects, EffectStatus{Status: model.StatusAddSteps})
	case enabled:
		effects = append(effects, EffectProcess{Trigger: TriggerAuto})
	default:
		effects = append(effects, EffectStatus{Status: model.StatusDisabled})
	}

	return effects
}
