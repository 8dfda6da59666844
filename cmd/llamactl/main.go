// Command llamactl is the operator CLI for llamad: it resolves models
// into the local cache, lists and removes cached artifacts, and queries
// the daemon's health endpoint.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "pull":
		err = runPull(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "rm":
		err = runRemove(os.Args[2:])
	case "status":
		err = runStatus(os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "llamactl: unknown command %q\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "llamactl: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`llamactl manages models for the llamad inference daemon.

Usage:
  llamactl pull <org/repo> [--quant q4_k_m]   resolve and download a model
  llamactl list                                list cached model files
  llamactl rm <path>                           remove a cached model file
  llamactl status                              query the daemon's health endpoint`)
}
