package model

// Params holds the parameter values of a step. Values are float64 for range parameters
// and string for select parameters.
type Params map[string]any

// Clone returns a shallow copy of the parameters. A nil receiver yields an empty map.
func (p Params) Clone() Params {
	res := make(Params, len(p))
	for k, v := range p {
		res[k] = v
	}

	return res
}

// Merge returns a copy of p where the keys of partial override the existing ones.
func (p Params) Merge(partial Params) Params {
	res := p.Clone()
	for k, v := range partial {
		res[k] = v
	}

	return res
}

// Step is one configured instance of an operation within a pipeline.
type Step struct {
	OperationID string `json:"id"`
	Params      Params `json:"params"`
	DisplayName string `json:"-"`
}

// Clone returns a copy of the step that does not share its parameters.
func (s Step) Clone() Step {
	return Step{
		OperationID: s.OperationID,
		Params:      s.Params.Clone(),
		DisplayName: s.DisplayName,
	}
}
