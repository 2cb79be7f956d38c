package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/born-ml/seggen/backend/cpu"
	"github.com/born-ml/seggen/generator"
	"github.com/born-ml/seggen/internal/inference"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// resolveConfig loads the config file if given, the defaults otherwise.
func resolveConfig(path string) (generator.Config, error) {
	if path == "" {
		return generator.DefaultConfig(), nil
	}
	return generator.LoadConfig(path)
}

func handleSummary(args []string, stdout io.Writer) error {
	fs := newFlagSet("summary")
	configPath := fs.String("config", "", "Generator config (YAML or JSON)")
	height := fs.Int("height", 256, "Input height, a multiple of 128")
	width := fs.Int("width", 256, "Input width, a multiple of 128")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := resolveConfig(*configPath)
	if err != nil {
		return err
	}
	gen, err := generator.New(cfg, cpu.New())
	if err != nil {
		return err
	}
	stages, err := gen.Summary(*height, *width)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tKIND\tOUTPUT\tSKIP\tPARAMS")
	for _, s := range stages {
		skip := s.Skip
		if skip == "" {
			skip = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%d\n", s.Name, s.Kind, s.Shape, skip, s.Parameters)
	}
	fmt.Fprintf(tw, "total\t\t\t\t%d\n", gen.NumParameters())
	return tw.Flush()
}

func handleInit(args []string) error {
	fs := newFlagSet("init")
	configPath := fs.String("config", "", "Generator config (YAML or JSON)")
	out := fs.String("out", "", "Output safetensors file (required)")
	seed := fs.Int64("seed", -1, "Override the config seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		fmt.Fprintln(os.Stderr, "Error: -out is required")
		fs.Usage()
		return errUsage
	}

	cfg, err := resolveConfig(*configPath)
	if err != nil {
		return err
	}
	if *seed >= 0 {
		cfg.Seed = *seed
	}
	gen, err := generator.New(cfg, cpu.New())
	if err != nil {
		return err
	}

	if err := generator.Save(*out, gen); err != nil {
		return err
	}
	log.Printf("wrote %d parameters to %s", gen.NumParameters(), *out)
	return nil
}

func handleRun(ctx context.Context, args []string) error {
	fs := newFlagSet("run")
	configPath := fs.String("config", "", "Generator config (defaults to the one stored in -weights)")
	weightsPath := fs.String("weights", "", "Generator weights (safetensors)")
	image := fs.String("image", "", "Input RGB image")
	labels := fs.String("labels", "", "Label map, pixel value = class id")
	mask := fs.String("mask", "", "Hole mask, white = synthesize")
	style := fs.String("style", "", "Style codes (safetensors with a style_codes tensor)")
	out := fs.String("out", "", "Output PNG")
	manifest := fs.String("manifest", "", "File with one sample per line: image labels mask out [style]")
	jobs := fs.Int("j", 1, "Samples processed concurrently")
	width := fs.Int("width", 0, "Resize inputs to this width (0 keeps the image size)")
	height := fs.Int("height", 0, "Resize inputs to this height (0 keeps the image size)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var samples []inference.Sample
	switch {
	case *manifest != "":
		var err error
		if samples, err = readManifest(*manifest); err != nil {
			return err
		}
	case *image != "" && *labels != "" && *mask != "" && *out != "":
		samples = []inference.Sample{{Image: *image, Labels: *labels, Mask: *mask, Style: *style, Output: *out}}
	default:
		fmt.Fprintln(os.Stderr, "Error: either -manifest or all of -image, -labels, -mask and -out are required")
		fs.Usage()
		return errUsage
	}

	gen, err := loadGenerator(*configPath, *weightsPath)
	if err != nil {
		return err
	}

	runner, err := inference.NewRunner(gen)
	if err != nil {
		return err
	}
	runner.Concurrency = *jobs
	runner.Width, runner.Height = *width, *height
	runner.Done = func(s inference.Sample, elapsed time.Duration) {
		log.Printf("%s -> %s (%s)", s.Image, s.Output, elapsed.Round(time.Millisecond))
	}

	start := time.Now()
	if err := runner.Run(ctx, samples); err != nil {
		return err
	}
	log.Printf("processed %d samples in %s", len(samples), time.Since(start).Round(time.Millisecond))
	return nil
}

// readManifest parses whitespace-separated sample lines. Blank lines and
// lines starting with '#' are skipped.
func readManifest(path string) ([]inference.Sample, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var samples []inference.Sample
	scanner := bufio.NewScanner(f)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 && len(fields) != 5 {
			return nil, fmt.Errorf("%s:%d: expected 4 or 5 fields, got %d", path, lineNo, len(fields))
		}
		s := inference.Sample{Image: fields[0], Labels: fields[1], Mask: fields[2], Output: fields[3]}
		if len(fields) == 5 {
			s.Style = fields[4]
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return samples, nil
}

// loadGenerator builds the generator for "seggen run". Without weights the
// generator keeps its seeded initialization.
func loadGenerator(configPath, weightsPath string) (*generator.Generator[*cpu.Backend], error) {
	backend := cpu.New()
	if weightsPath != "" {
		var override *generator.Config
		if configPath != "" {
			cfg, err := generator.LoadConfig(configPath)
			if err != nil {
				return nil, err
			}
			override = &cfg
		}
		return generator.Load(weightsPath, override, backend)
	}

	cfg, err := resolveConfig(configPath)
	if err != nil {
		return nil, err
	}
	log.Printf("no -weights given, using seeded initialization (seed %d)", cfg.Seed)
	return generator.New(cfg, backend)
}
