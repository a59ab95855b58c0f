package drawer

import (
	"fmt"
	"html"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint

	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
)

const (
	sourceVertex = "source"
	outputVertex = "output"
)

// DOTDrawer renders the pipeline as a DOT graph: the source image, one vertex per step and the output.
type DOTDrawer struct {
	mu   sync.Mutex
	open func() (io.WriteCloser, error)
}

// NewDOTDrawer creates a drawer that rewrites fileName on every render.
func NewDOTDrawer(fileName string) *DOTDrawer {
	return &DOTDrawer{
		open: func() (io.WriteCloser, error) {
			file, err := os.Create(fileName)
			if err != nil {
				return nil, errors.Wrapf(err, "unable to create file %s", fileName)
			}

			return file, nil
		},
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// NewDOTWriter creates a drawer that appends every render to wrt.
func NewDOTWriter(wrt io.Writer) *DOTDrawer {
	return &DOTDrawer{
		open: func() (io.WriteCloser, error) {
			return nopCloser{wrt}, nil
		},
	}
}

// Render writes the DOT description of view.
func (d *DOTDrawer) Render(view model.View) (err error) {
	gra, err := buildGraph(view)
	if err != nil {
		return errors.Wrap(err, "unable to build graph")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	wrt, err := d.open()
	if err != nil {
		return err
	}

	defer func() {
		if cerr := wrt.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "unable to close output")
		}
	}()

	err = dot(gra, wrt,
		GraphAttribute("rankdir", "LR"),
		GraphAttribute("label", view.Status.Text()+" - "+view.StepsLabel()),
	)
	if err != nil {
		return errors.Wrap(err, "unable to draw pipeline")
	}

	return nil
}

func stepVertex(index int) string {
	return fmt.Sprintf("step-%d", index)
}

func buildGraph(view model.View) (graph.Graph[string, string], error) {
	gra := graph.New(graph.StringHash, graph.Directed())

	sourceLabel := "no image"
	if view.HasImage {
		sourceLabel = view.ImageName
	}

	err := gra.AddVertex(sourceVertex,
		graph.VertexAttribute("label", sourceLabel),
		graph.VertexAttribute("shape", "box"),
		graph.VertexWeight(0),
	)
	if err != nil {
		return nil, errors.Wrap(err, "unable to add source vertex")
	}

	previewColour, err := colors.RGB(255, 221, 87) //nolint
	if err != nil {
		return nil, errors.Wrap(err, "unable to get colour")
	}

	parent := sourceVertex

	for i, step := range view.Steps {
		name := stepVertex(i)
		attrs := []func(*graph.VertexProperties){
			graph.VertexAttribute("label", step.DisplayName),
			graph.VertexWeight(i + 1),
		}

		if view.IsPreviewed(i) {
			attrs = append(attrs,
				graph.VertexAttribute("style", "filled"),
				graph.VertexAttribute("fillcolor", previewColour.ToHEX().String()),
			)

			if _, ok := view.Previews[i]; ok && view.PreviewsVisible {
				attrs = append(attrs, graph.VertexAttribute("xlabel", "preview"))
			}
		}

		err := gra.AddVertex(name, attrs...)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to add vertex %s", name)
		}

		err = gra.AddEdge(parent, name)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to add edge from %s to %s", parent, name)
		}

		parent = name
	}

	statusColour, err := colourOf(view.Status)
	if err != nil {
		return nil, err
	}

	outputAttrs := []func(*graph.VertexProperties){
		graph.VertexAttribute("label", outputVertex),
		graph.VertexAttribute("shape", "box"),
		graph.VertexAttribute("color", statusColour),
		graph.VertexWeight(len(view.Steps) + 1),
	}
	if !view.Processed.IsZero() && view.ProcessingTime > 0 {
		outputAttrs = append(outputAttrs, graph.VertexAttribute("xlabel", view.ProcessingTime.String()))
	}

	err = gra.AddVertex(outputVertex, outputAttrs...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to add output vertex")
	}

	err = gra.AddEdge(parent, outputVertex)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to add edge from %s to %s", parent, outputVertex)
	}

	return gra, nil
}

func colourOf(status model.Status) (string, error) {
	var (
		clr *colors.RGBColor
		err error
	)

	switch status {
	case model.StatusDone, model.StatusReady:
		clr, err = colors.RGB(40, 167, 69) //nolint
	case model.StatusError:
		clr, err = colors.RGB(220, 53, 69) //nolint
	case model.StatusProcessing:
		clr, err = colors.RGB(0, 123, 255) //nolint
	case model.StatusActionNeeded, model.StatusDisabled:
		clr, err = colors.RGB(255, 193, 7) //nolint
	default:
		clr, err = colors.RGB(108, 117, 125) //nolint
	}

	if err != nil {
		return "", errors.Wrap(err, "unable to get colour")
	}

	return clr.ToHEX().String(), nil
}

//nolint:lll //this is a template
const dotTemplate = `strict {{.GraphType}} {
	{{range $k, $v := .Attributes}}
		{{$k}}="{{$v}}";
	{{end}}
	{{range $s := .Statements}}
		"{{.Source}}" {{if .Target}}{{$.EdgeOperator}} "{{.Target}}" [ {{range $k, $v := .EdgeAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.EdgeWeight}} ]{{else}}[ {{range $k, $v := .HTMLAttributes}}{{$k}}={{$v}}, {{end}} {{range $k, $v := .SourceAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.SourceWeight}} ]{{end}};
	{{end}}
	}
	`

type description struct {
	GraphType    string
	Attributes   map[string]string
	EdgeOperator string
	Statements   []statement
}

type statement struct {
	Source           string
	Target           string
	SourceAttributes map[string]string
	HTMLAttributes   map[string]string
	EdgeAttributes   map[string]string
	SourceWeight     int
	EdgeWeight       int
}

func dot(g graph.Graph[string, string], wrt io.Writer, options ...func(*description)) error {
	desc, err := generateDOT(g, options...)
	if err != nil {
		return errors.Wrap(err, "failed to generate DOT description")
	}

	return renderDOT(wrt, desc)
}

// GraphAttribute sets a top level attribute of the generated graph.
func GraphAttribute(key, value string) func(*description) {
	return func(d *description) {
		d.Attributes[key] = escape(value)
	}
}

func escape(value string) string {
	return strings.ReplaceAll(value, `"`, `\"`)
}

func generateDOT(gra graph.Graph[string, string], options ...func(*description)) (description, error) {
	desc := description{
		GraphType:    "graph",
		Attributes:   make(map[string]string),
		EdgeOperator: "--",
		Statements:   make([]statement, 0),
	}

	for _, option := range options {
		option(&desc)
	}

	if gra.Traits().IsDirected {
		desc.GraphType = "digraph"
		desc.EdgeOperator = "->"
	}

	adjacencyMap, err := gra.AdjacencyMap()
	if err != nil {
		return desc, errors.Wrap(err, "unable to get adjacency map")
	}

	vertices := make([]statement, 0, len(adjacencyMap))
	edges := []statement{}

	for vertex, adjacencies := range adjacencyMap {
		_, sourceProperties, err := gra.VertexWithProperties(vertex)
		if err != nil {
			return desc, errors.Wrap(err, "unable to get vertex properties")
		}

		attributes := make(map[string]string, len(sourceProperties.Attributes))
		for k, v := range sourceProperties.Attributes {
			attributes[k] = escape(v)
		}

		htmlAttributes := make(map[string]string)

		// HTML-like labels need entities, not quote escaping.
		if xlabel, ok := sourceProperties.Attributes["xlabel"]; ok {
			label := vertex
			if l, ok := sourceProperties.Attributes["label"]; ok {
				label = l
			}

			htmlAttributes["label"] = fmt.Sprintf(`<%s <BR /> <FONT POINT-SIZE="12">%s</FONT>>`,
				html.EscapeString(label), html.EscapeString(xlabel))

			delete(attributes, "xlabel")
			delete(attributes, "label")
		}

		vertices = append(vertices, statement{
			Source:           vertex,
			SourceWeight:     sourceProperties.Weight,
			SourceAttributes: attributes,
			HTMLAttributes:   htmlAttributes,
		})

		for adjacency, edge := range adjacencies {
			edges = append(edges, statement{
				Source:         vertex,
				Target:         adjacency,
				EdgeWeight:     edge.Properties.Weight,
				EdgeAttributes: edge.Properties.Attributes,
				SourceWeight:   sourceProperties.Weight,
			})
		}
	}

	sort.Slice(vertices, func(i, j int) bool {
		return vertices[i].SourceWeight < vertices[j].SourceWeight
	})
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].SourceWeight < edges[j].SourceWeight
	})

	desc.Statements = append(desc.Statements, vertices...)
	desc.Statements = append(desc.Statements, edges...)

	return desc, nil
}

func renderDOT(wrt io.Writer, desc description) error {
	tpl, err := template.New("dotTemplate").Parse(dotTemplate)
	if err != nil {
		return errors.Wrap(err, "failed to parse template")
	}

	err = tpl.Execute(wrt, desc)
	if err != nil {
		return errors.Wrap(err, "unable to execute template")
	}

	return nil
}

var _ Drawer = (*DOTDrawer)(nil)
