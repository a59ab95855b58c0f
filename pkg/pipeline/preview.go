package pipeline

import (
	"github.com/pkg/errors"
)

// remapPreviews follows the removal of the step at removed: lower indices are kept,
// removed is dropped and higher indices shift down by one.
func remapPreviews(previews map[int]struct{}, removed int) map[int]struct{} {
	res := make(map[int]struct{}, len(previews))

	for idx := range previews {
		switch {
		case idx < removed:
			res[idx] = struct{}{}
		case idx > removed:
			res[idx-1] = struct{}{}
		}
	}

	return res
}

func (s *State) togglePreview(index int) ([]Effect, error) {
	if _, ok := s.previews[index]; ok {
		delete(s.previews, index)

		return []Effect{EffectReleasePreview{Index: index}, EffectRender{}}, nil
	}

	if !s.inRange(index) {
		return nil, errors.Wrapf(ErrStepOutOfRange, "preview step %d of %d", index, len(s.steps))
	}

	s.previews[index] = struct{}{}

	effects := []Effect{EffectRender{}}
	if s.image != nil {
		effects = append(effects, EffectProcess{Trigger: TriggerManual})
	}

	return effects, nil
}

func (s *State) setPreviewsVisible(visible bool) []Effect {
	s.previewsVisible = visible

	if !visible {
		return []Effect{EffectReleasePreviews{}, EffectRender{}}
	}

	effects := []Effect{EffectRender{}}
	if s.image != nil && len(s.previews) > 0 {
		effects = append(effects, EffectProcess{Trigger: TriggerManual})
	}

	return effects
}
