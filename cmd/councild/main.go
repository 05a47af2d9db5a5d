// Command councild runs the council orchestrator: a stateful, streaming
// coordinator that fans a question out to a panel of LLM councilors,
// conducts an anonymized peer review, and synthesizes a final answer via a
// designated chairman model.
package main

import (
	"fmt"
	"os"

	"github.com/councilhq/orchestrator/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
