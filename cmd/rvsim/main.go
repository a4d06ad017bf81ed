// Package main provides the rvsim command-line interface.
// It replays a JSON trap scenario against a simulated hart and prints
// the resulting privilege and trap trace.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/rvsim/config"
	"github.com/sarchlab/rvsim/priv"
	"github.com/sarchlab/rvsim/timeline"
)

var (
	configPath = flag.String("config", "", "Path to ISA configuration JSON file")
	trace      = flag.Bool("trace", false, "Print per-transition trap and CSR traces")
	verbose    = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: rvsim [options] <scenario.json>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	scenarioPath := flag.Arg(0)

	cfg := config.DefaultISA()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadISA(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading ISA config: %v\n", err)
			os.Exit(1)
		}
	}
	if *trace {
		cfg.TraceTraps = true
		cfg.TraceCSR = true
	}

	hart := priv.NewHart(
		priv.WithISA(cfg),
		priv.WithTrace(os.Stderr),
	)

	tl := timeline.New(hart)
	if err := tl.Load(scenarioPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading scenario: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Scenario: %s\n", scenarioPath)
		fmt.Printf("XLEN: %d\n", cfg.XLEN)
		fmt.Printf("Supervisor: %v, User: %v\n", cfg.Supervisor, cfg.User)
	}

	if err := tl.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error replaying scenario: %v\n", err)
		os.Exit(1)
	}

	for _, rec := range tl.Records() {
		fmt.Printf("[%10.6f] %s\n", rec.Time, rec.Text)
	}

	if *verbose {
		fmt.Printf("\nFinal privilege: %s\n", hart.Priv())
	}
}
