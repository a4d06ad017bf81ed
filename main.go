// Package main provides the entry point for rvsim.
// rvsim models the RISC-V privilege, CSR, and trap dispatch logic of a
// single hart, driven by scripted scenarios on the Akita simulation
// engine.
//
// For the full CLI, use: go run ./cmd/rvsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("rvsim - RISC-V privilege and trap dispatch simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: rvsim [options] <scenario.json>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config    Path to ISA configuration JSON file")
	fmt.Println("  -trace     Print per-transition trap and CSR traces")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rvsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/rvsim' instead.")
	}
}
