// Command lidbench generates datasets and benchmarks learned-index lookups
// against them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

var (
	version = "dev"
	commit  = "unknown"
)

var commands = map[string]func(ctx context.Context, args []string) error{
	"gen":    runGen,
	"lookup": runLookup,
	"stress": runStress,
	"memory": runMemory,
	"config": runConfig,
}

func usage() {
	fmt.Fprintf(os.Stderr, "lidbench - learned index lookups on disk\n\n")
	fmt.Fprintf(os.Stderr, "Usage: lidbench <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  gen      Write a sorted dataset (and optionally a workload file)\n")
	fmt.Fprintf(os.Stderr, "  lookup   Run model-driven lookups against the dataset on disk\n")
	fmt.Fprintf(os.Stderr, "  stress   Run fixed-interval fetches without a model, one run per diff\n")
	fmt.Fprintf(os.Stderr, "  memory   Run the lookups against the dataset in memory\n")
	fmt.Fprintf(os.Stderr, "  config   Print the effective configuration\n")
	fmt.Fprintf(os.Stderr, "  version  Print version information\n")
	fmt.Fprintf(os.Stderr, "\nRun 'lidbench <command> -h' for the options of a command.\n")
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  LID_THREADS       Worker count\n")
	fmt.Fprintf(os.Stderr, "  LID_DATA_DIR      Dataset directory\n")
	fmt.Fprintf(os.Stderr, "  LID_STRATEGY      direct or mmap\n")
	fmt.Fprintf(os.Stderr, "  LID_COMPRESSION   none, aligned or sequential\n")
	fmt.Fprintf(os.Stderr, "  LID_*             See config.LoadFromEnv\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	name := os.Args[1]
	switch name {
	case "-h", "-help", "--help", "help":
		usage()
		return
	case "version":
		fmt.Printf("lidbench version %s (commit: %s)\n", version, commit)
		return
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd(ctx, os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "lidbench %s: %v\n", name, err)
		stop()
		os.Exit(1)
	}
}
