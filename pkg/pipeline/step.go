package pipeline

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
)

// afterChange returns the processing effect of a structural change: a live pipeline reprocesses,
// a manual one asks the user to apply.
func (s *State) afterChange() []Effect {
	if s.image == nil {
		return nil
	}

	if s.live {
		return []Effect{EffectProcess{Trigger: TriggerAuto}}
	}

	return []Effect{EffectStatus{Status: model.StatusActionNeeded}}
}

func (s *State) addStep(operationID string) ([]Effect, error) {
	op, ok := s.catalog.Operation(operationID)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownOperation, "operation %q", operationID)
	}

	s.operationCounts[operationID]++
	s.steps = append(s.steps, model.Step{
		OperationID: operationID,
		Params:      op.DefaultParams(),
		DisplayName: displayName(op.Name, s.countOf(operationID)+1),
	})
	s.version++

	return append([]Effect{EffectRender{}}, s.afterChange()...), nil
}

func (s *State) countOf(operationID string) int {
	count := 0

	for _, step := range s.steps {
		if step.OperationID == operationID {
			count++
		}
	}

	return count
}

func (s *State) removeStep(index int) ([]Effect, error) {
	if !s.inRange(index) {
		return nil, errors.Wrapf(ErrStepOutOfRange, "remove step %d of %d", index, len(s.steps))
	}

	removed := s.steps[index]
	s.steps = slices.Delete(s.steps, index, index+1)
	s.previews = remapPreviews(s.previews, index)

	s.operationCounts[removed.OperationID]--
	if s.operationCounts[removed.OperationID] <= 0 {
		delete(s.operationCounts, removed.OperationID)
	}

	s.renumber(removed.OperationID)
	s.version++

	effects := []Effect{EffectRender{}, EffectReleasePreviews{}}

	if len(s.steps) == 0 {
		return append(effects, EffectResetProcessed{}, EffectSettleStatus{}), nil
	}

	return append(effects, s.afterChange()...), nil
}

func (s *State) moveStep(from int, direction Direction) ([]Effect, error) {
	if direction != Up && direction != Down {
		return nil, errors.Wrapf(ErrInvalidDirection, "direction %d", direction)
	}

	if !s.inRange(from) {
		return nil, errors.Wrapf(ErrStepOutOfRange, "move step %d of %d", from, len(s.steps))
	}

	to := from + int(direction)
	if !s.inRange(to) {
		return nil, nil
	}

	step := s.steps[from]
	s.steps = slices.Delete(s.steps, from, from+1)
	s.steps = slices.Insert(s.steps, to, step)
	s.renumber()
	s.version++

	return []Effect{EffectRender{}, EffectReleasePreviews{}, EffectProcess{Trigger: TriggerManual}}, nil
}

func (s *State) updateParams(index int, partial model.Params) ([]Effect, error) {
	if !s.inRange(index) {
		return nil, errors.Wrapf(ErrStepOutOfRange, "update step %d of %d", index, len(s.steps))
	}

	s.steps[index].Params = s.steps[index].Params.Merge(partial)
	s.version++

	return []Effect{EffectRender{}, EffectProcess{Trigger: TriggerManual}}, nil
}

func (s *State) reset() []Effect {
	s.steps = nil
	s.previews = make(map[int]struct{})
	s.operationCounts = make(map[string]int)
	s.version++

	return []Effect{EffectResetProcessed{}, EffectReleasePreviews{}, EffectRender{}, EffectSettleStatus{}}
}
