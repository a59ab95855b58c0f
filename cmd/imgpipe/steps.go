package main

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
)

var errStepFlag = errors.New("invalid step")

type stepFlag struct {
	OperationID string
	Params      model.Params
}

// stepList collects repeated -step flags of the form "op" or "op:key=value,key=value".
type stepList []stepFlag

func (s *stepList) String() string {
	if s == nil {
		return ""
	}

	ids := make([]string, 0, len(*s))
	for _, step := range *s {
		ids = append(ids, step.OperationID)
	}

	return strings.Join(ids, ",")
}

func (s *stepList) Set(raw string) error {
	step, err := parseStep(raw)
	if err != nil {
		return err
	}

	*s = append(*s, step)

	return nil
}

func parseStep(raw string) (stepFlag, error) {
	id, rest, _ := strings.Cut(strings.TrimSpace(raw), ":")
	if id == "" {
		return stepFlag{}, errors.Wrapf(errStepFlag, "%q: missing operation", raw)
	}

	step := stepFlag{OperationID: id, Params: model.Params{}}

	if rest == "" {
		return step, nil
	}

	for _, pair := range strings.Split(rest, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)

		if !ok || key == "" {
			return stepFlag{}, errors.Wrapf(errStepFlag, "%q: expected key=value, got %q", raw, pair)
		}

		value = strings.TrimSpace(value)

		// Range parameters are numbers, select parameters are strings.
		if num, err := strconv.ParseFloat(value, 64); err == nil {
			step.Params[key] = num
		} else {
			step.Params[key] = value
		}
	}

	return step, nil
}

// indexList collects repeated integer flags.
type indexList []int

func (l *indexList) String() string {
	if l == nil {
		return ""
	}

	res := make([]string, 0, len(*l))
	for _, i := range *l {
		res = append(res, strconv.Itoa(i))
	}

	return strings.Join(res, ",")
}

func (l *indexList) Set(raw string) error {
	for _, part := range strings.Split(raw, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return errors.Wrapf(err, "invalid step index %q", part)
		}

		*l = append(*l, i)
	}

	return nil
}

// unique drops repeated indices, keeping the first occurrence.
func (l indexList) unique() indexList {
	seen := make(map[int]struct{}, len(l))
	res := make(indexList, 0, len(l))

	for _, i := range l {
		if _, ok := seen[i]; ok {
			continue
		}

		seen[i] = struct{}{}
		res = append(res, i)
	}

	return res
}
