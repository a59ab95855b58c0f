package pipeline

import (
	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
)

// Trigger tells whether a processing request comes from a state change or from the user.
type Trigger string

const (
	// TriggerAuto requests are honoured in live mode only.
	TriggerAuto Trigger = "auto"
	// TriggerManual requests are always honoured.
	TriggerManual Trigger = "manual"
)

type Direction int

const (
	Up   Direction = -1
	Down Direction = 1
)

// Command is a user intent applied to a State.
type Command interface {
	command()
}

type AddStep struct {
	OperationID string
}

type RemoveStep struct {
	Index int
}

type MoveStep struct {
	From      int
	Direction Direction
}

// UpdateParams merges Params into the parameters of the step at Index.
type UpdateParams struct {
	Index  int
	Params model.Params
}

type TogglePreview struct {
	Index int
}

// Reset empties the pipeline.
type Reset struct{}

type SetLive struct {
	Enabled bool
}

type ToggleLive struct{}

// Apply is the explicit request to process the pipeline.
type Apply struct{}

type SetPreviewsVisible struct {
	Visible bool
}

func (AddStep) command()            {}
func (RemoveStep) command()         {}
func (MoveStep) command()           {}
func (UpdateParams) command()       {}
func (TogglePreview) command()      {}
func (Reset) command()              {}
func (SetLive) command()            {}
func (ToggleLive) command()         {}
func (Apply) command()              {}
func (SetPreviewsVisible) command() {}

// Effect is a side effect requested by the reducer and executed by the Pipeline.
type Effect interface {
	effect()
}

type EffectRender struct{}

type EffectStatus struct {
	Status model.Status
}

// EffectSettleStatus moves the status to the resting state matching the pipeline.
type EffectSettleStatus struct{}

type EffectProcess struct {
	Trigger Trigger
}

type EffectReleasePreview struct {
	Index int
}

type EffectReleasePreviews struct{}

// EffectResetProcessed drops the processed artifact.
type EffectResetProcessed struct{}

func (EffectRender) effect()          {}
func (EffectStatus) effect()          {}
func (EffectSettleStatus) effect()    {}
func (EffectProcess) effect()         {}
func (EffectReleasePreview) effect()  {}
func (EffectReleasePreviews) effect() {}
func (EffectResetProcessed) effect()  {}
