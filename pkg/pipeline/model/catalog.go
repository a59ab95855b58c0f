package model

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidCatalog is returned when the server catalog misses its operations or categories.
var ErrInvalidCatalog = errors.New("invalid data format received from server")

type ParamType string

const (
	RangeParam  ParamType = "range"
	SelectParam ParamType = "select"
	FileParam   ParamType = "file"
)

// ParamConfig describes one parameter of an operation.
type ParamConfig struct {
	Type        ParamType `json:"type"`
	Default     any       `json:"default,omitempty"`
	Min         *float64  `json:"min,omitempty"`
	Max         *float64  `json:"max,omitempty"`
	Step        *float64  `json:"step,omitempty"`
	Options     []string  `json:"options,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Operation is a catalog entry: a named, parameterised image transform offered by the server.
type Operation struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Category    string                 `json:"category"`
	Subcategory string                 `json:"subcategory,omitempty"`
	Icon        string                 `json:"icon,omitempty"`
	Description string                 `json:"description,omitempty"`
	Params      map[string]ParamConfig `json:"params"`
}

// DefaultParams returns the initial parameters of a new step.
// A parameter without a default starts at 0.
func (o Operation) DefaultParams() Params {
	params := make(Params, len(o.Params))
	for key, cfg := range o.Params {
		if cfg.Default == nil {
			params[key] = float64(0)

			continue
		}

		params[key] = cfg.Default
	}

	return params
}

type Subcategory struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

type Category struct {
	Name          string                 `json:"name"`
	Icon          string                 `json:"icon,omitempty"`
	Subcategories map[string]Subcategory `json:"subcategories,omitempty"`
}

// Catalog is the response of the operations endpoint.
type Catalog struct {
	Operations []Operation         `json:"operations"`
	Categories map[string]Category `json:"categories"`
}

// Validate checks that both the operations and the categories were sent.
func (c *Catalog) Validate() error {
	if c == nil || c.Operations == nil || c.Categories == nil {
		return ErrInvalidCatalog
	}

	return nil
}

// Operation looks up an operation by id.
func (c *Catalog) Operation(id string) (Operation, bool) {
	if c == nil {
		return Operation{}, false
	}

	for _, op := range c.Operations {
		if op.ID == id {
			return op, true
		}
	}

	return Operation{}, false
}

// Search returns the operations whose id, name, description or category contains term, ignoring case.
// An empty term matches every operation.
func (c *Catalog) Search(term string) []Operation {
	if c == nil {
		return nil
	}

	needle := strings.ToLower(strings.TrimSpace(term))
	res := []Operation{}

	for _, op := range c.Operations {
		if needle == "" || matches(op, needle) {
			res = append(res, op)
		}
	}

	return res
}

func matches(op Operation, needle string) bool {
	for _, field := range []string{op.ID, op.Name, op.Description, op.Category, op.Subcategory} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}

	return false
}

// Group holds the operations of one category, split by subcategory.
// Operations without a subcategory are keyed by the empty string.
type Group struct {
	ID            string
	Category      Category
	Subcategories map[string][]Operation
}

// ByCategory groups the operations by category, sorted by category id.
// Operations referencing an unknown category get a group named after the id.
func (c *Catalog) ByCategory() []Group {
	if c == nil {
		return nil
	}

	groups := map[string]*Group{}

	for _, op := range c.Operations {
		grp, ok := groups[op.Category]
		if !ok {
			cat, found := c.Categories[op.Category]
			if !found {
				cat = Category{Name: op.Category}
			}

			grp = &Group{ID: op.Category, Category: cat, Subcategories: map[string][]Operation{}}
			groups[op.Category] = grp
		}

		grp.Subcategories[op.Subcategory] = append(grp.Subcategories[op.Subcategory], op)
	}

	res := make([]Group, 0, len(groups))
	for _, grp := range groups {
		res = append(res, *grp)
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].ID < res[j].ID
	})

	return res
}
