// Package main provides the seggen command line tool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
)

const version = "v0.1.0-dev"

var errUsage = errors.New("usage")

func main() {
	log.SetFlags(0)
	log.SetPrefix("seggen: ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Print(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) < 1 {
		printUsage(os.Stderr)
		return errUsage
	}

	command, args := args[0], args[1:]
	switch command {
	case "version":
		_, err := fmt.Fprintf(stdout, "seggen %s\n", version)
		return err
	case "summary":
		return handleSummary(args, stdout)
	case "init":
		return handleInit(args)
	case "run":
		return handleRun(ctx, args)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage(os.Stderr)
		return errUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `seggen - segmentation-guided image inpainting

Usage: seggen <command> [options]

Commands:
  summary    Print per-stage output shapes and parameter counts
  init       Write seeded generator weights to a safetensors file
  run        Fill the masked region of images
  version    Show seggen version
  help       Show this help message

Examples:
  seggen summary -config g3.yaml -height 256 -width 512
  seggen init -config g3.yaml -out g3.safetensors
  seggen run -weights g3.safetensors -image in.png -labels seg.png -mask hole.png -out out.png
  seggen run -weights g3.safetensors -manifest samples.txt -j 4

Run "seggen <command> -h" for the options of a command.
`)
}
