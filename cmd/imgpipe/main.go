// Command imgpipe drives the image processing server from the command line.
//
// Usage:
//
//	imgpipe <command> [flags]
//
// Commands: operations, process
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/go-imgpipe/internal/config"
	"github.com/askiada/go-imgpipe/pkg/pipeline"
	"github.com/askiada/go-imgpipe/pkg/pipeline/drawer"
	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
	"github.com/askiada/go-imgpipe/pkg/pipeline/notify"
	"github.com/askiada/go-imgpipe/pkg/transport"
)

const usage = `imgpipe - run image processing pipelines on a remote server

Usage:
  imgpipe <command> [flags]

Commands:
  operations  List the operations offered by the server
  process     Process an image through a pipeline of operations

Run "imgpipe <command> -help" for details on each command.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)

		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error

	switch args[0] {
	case "operations":
		err = cmdOperations(ctx, args[1:], os.Stdout)
	case "process":
		err = cmdProcess(ctx, args[1:], os.Stdout)
	case "--help", "-h", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "imgpipe: unknown command %q\n\n%s", args[0], usage)

		return 1
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)

		return 1
	}

	return 0
}

// env holds what every command needs.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	client *transport.Client
}

func setup(cfgPath, baseURL string) (*env, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	if baseURL != "" {
		cfg.Server.BaseURL = baseURL
	}

	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	client, err := transport.New(cfg.Server.BaseURL, append(cfg.TransportOptions(), transport.WithLogger(logger))...)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, logger: logger, client: client}, nil
}

// ---------------------------------------------------------------------------
// operations
// ---------------------------------------------------------------------------

func cmdOperations(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("imgpipe operations", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to a YAML configuration file")
	baseURL := fs.String("url", "", "Server base URL, overrides the configuration")
	search := fs.String("search", "", "Only list operations matching this term")
	_ = fs.Parse(args)

	e, err := setup(*cfgPath, *baseURL)
	if err != nil {
		return err
	}

	catalog, err := e.client.FetchCatalog(ctx)
	if err != nil {
		return err
	}

	if *search != "" {
		catalog = &model.Catalog{Operations: catalog.Search(*search), Categories: catalog.Categories}
	}

	printCatalog(out, catalog)

	return nil
}

func printCatalog(out io.Writer, catalog *model.Catalog) {
	for _, grp := range catalog.ByCategory() {
		fmt.Fprintf(out, "%s\n", grp.Category.Name)

		subs := make([]string, 0, len(grp.Subcategories))
		for sub := range grp.Subcategories {
			subs = append(subs, sub)
		}
		sort.Strings(subs)

		for _, sub := range subs {
			indent := "  "
			if sub != "" {
				name := grp.Category.Subcategories[sub].Name
				if name == "" {
					name = sub
				}

				fmt.Fprintf(out, "  %s\n", name)
				indent = "    "
			}

			for _, op := range grp.Subcategories[sub] {
				fmt.Fprintf(out, "%s%-20s %s\n", indent, op.ID, op.Name)

				params := make([]string, 0, len(op.Params))
				for key, param := range op.Params {
					params = append(params, fmt.Sprintf("%s (%s)", key, param.Type))
				}
				sort.Strings(params)

				if len(params) > 0 {
					fmt.Fprintf(out, "%s  params: %s\n", indent, strings.Join(params, ", "))
				}
			}
		}
	}
}

// ---------------------------------------------------------------------------
// process
// ---------------------------------------------------------------------------

func cmdProcess(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("imgpipe process", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to a YAML configuration file")
	baseURL := fs.String("url", "", "Server base URL, overrides the configuration")
	imagePath := fs.String("image", "", "Path to the source image")
	outDir := fs.String("out", ".", "Directory receiving the outputs")
	dotFile := fs.String("dot", "", "Write the pipeline as a Graphviz DOT file after every change")
	steps := stepList{}
	previews := indexList{}
	saves := indexList{}

	fs.Var(&steps, "step", `Operation to append, as "op" or "op:key=value,key=value" (repeatable)`)
	fs.Var(&previews, "preview", "Index of a step whose intermediate result is written (repeatable)")
	fs.Var(&saves, "save-step", "Index of a step whose output is saved on its own (repeatable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `imgpipe process - process an image

Usage:
  imgpipe process -image <file> -step <op[:k=v,...]> [-step ...] [-preview <i>] [-save-step <i>] [-out <dir>]

Steps are applied in order. Step indices start at 0.

Flags:
`)
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if *imagePath == "" || len(steps) == 0 {
		fs.Usage()

		return errors.New("provide -image and at least one -step")
	}

	e, err := setup(*cfgPath, *baseURL)
	if err != nil {
		return err
	}

	board := notify.NewBoard(notify.WithForward(notify.LogNotifier{Logger: e.logger}))
	defer board.Close()

	opts := append(e.cfg.PipelineOptions(),
		pipeline.WithLogger(e.logger),
		pipeline.WithNotifier(board),
		// Every step is added before the single explicit run.
		pipeline.WithLiveProcessing(false),
	)
	if *dotFile != "" {
		opts = append(opts, pipeline.WithRenderer(drawer.NewDOTDrawer(*dotFile)))
	}

	p, err := pipeline.New(e.client, opts...)
	if err != nil {
		return err
	}
	defer p.Close()

	err = p.Init(ctx)
	if err != nil {
		return err
	}

	err = buildSteps(ctx, p, steps, previews)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(*imagePath)
	if err != nil {
		return errors.Wrap(err, "unable to read image")
	}

	err = p.SetImage(ctx, model.Image{Name: filepath.Base(*imagePath), Data: data})
	if err != nil {
		return err
	}

	err = p.Apply(ctx)
	if err != nil {
		return err
	}

	if p.Status() == model.StatusError {
		return errors.New("processing failed")
	}

	written, err := writeOutputs(ctx, p, *outDir, previews.unique(), saves.unique())
	if err != nil {
		return err
	}

	for _, name := range written {
		fmt.Fprintln(out, name)
	}

	for name, metric := range p.Metrics().AllMetrics() {
		e.logger.Info("requests",
			slog.String("kind", name),
			slog.Int64("total", metric.Total()),
			slog.Int64("failures", metric.Failures()),
			slog.Duration("avg", metric.AVGDuration()),
			slog.Duration("server_avg", metric.AVGServerDuration()),
		)
	}

	return nil
}

func buildSteps(ctx context.Context, p *pipeline.Pipeline, steps stepList, previews indexList) error {
	for i, step := range steps {
		err := p.AddStep(ctx, step.OperationID)
		if err != nil {
			return err
		}

		if len(p.Steps()) != i+1 {
			return errors.Wrapf(pipeline.ErrUnknownOperation, "%q", step.OperationID)
		}

		if len(step.Params) > 0 {
			err = p.UpdateStepParams(ctx, i, step.Params)
			if err != nil {
				return err
			}
		}
	}

	// Toggling twice would turn the preview off again.
	for _, i := range previews.unique() {
		if i < 0 || i >= len(steps) {
			return errors.Wrapf(pipeline.ErrStepOutOfRange, "preview %d", i)
		}

		err := p.ToggleStepPreview(ctx, i)
		if err != nil {
			return err
		}
	}

	return nil
}

func writeOutputs(ctx context.Context, p *pipeline.Pipeline, dir string, previews, saves indexList) ([]string, error) {
	outputs := []pipeline.Output{}

	download, ok := p.Download()
	if ok {
		outputs = append(outputs, download)
	}

	for _, i := range previews {
		art, found := p.Preview(i)
		if found {
			outputs = append(outputs, pipeline.Output{FileName: fmt.Sprintf("step_%d_preview.png", i+1), Artifact: art})
		}
	}

	if len(saves) > 0 {
		saved, err := p.SaveStepOutputs(ctx, saves)
		if err != nil {
			return nil, err
		}

		outputs = append(outputs, saved...)
	}

	written := make([]string, 0, len(outputs))

	for _, output := range outputs {
		_, data, err := output.Artifact.Decode()
		if err != nil {
			return nil, errors.Wrapf(err, "unable to decode %s", output.FileName)
		}

		name := filepath.Join(dir, output.FileName)

		err = os.WriteFile(name, data, 0o644) //nolint:gosec // outputs are meant to be shared
		if err != nil {
			return nil, errors.Wrapf(err, "unable to write %s", name)
		}

		written = append(written, name)
	}

	return written, nil
}
