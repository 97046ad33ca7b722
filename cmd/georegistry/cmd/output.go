package cmd

import (
	"fmt"

	"github.com/MrSnakeDoc/georegistry/internal/tasks"
)

func printReport(rep *tasks.Report) {
	ok, skipped, failed := rep.Counts()
	fmt.Printf("%s: %d ok, %d skipped, %d failed in %s\n",
		rep.Operation, ok, skipped, failed, rep.Elapsed.Round(1e6))
	for _, o := range rep.Outcomes {
		if !o.OK && !o.Skipped {
			fmt.Printf("  %s: %s\n", o.Resource, o.Message)
		}
	}
}

func printOutcome(o tasks.Outcome) {
	switch {
	case o.Skipped:
		fmt.Printf("%s skipped: %s\n", o.Resource, o.Message)
	case o.OK:
		fmt.Printf("%s ok in %s\n", o.Resource, o.Elapsed.Round(1e6))
	default:
		fmt.Printf("%s failed: %s\n", o.Resource, o.Message)
	}
}
