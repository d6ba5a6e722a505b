package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/bug-snapshot-service/internal/domain"
)

var purgeFailures bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Sweep the whole corpus and report every inconsistent record",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var streamErr error
		checked := 0
		seq := func(yield func(*domain.BugRecord) bool) {
			for bug, err := range bugs.Stream(ctx, cfg.Snapshot.Products) {
				if err != nil {
					streamErr = errors.Join(streamErr, err)
					continue
				}
				if verbose {
					fmt.Println(bug.ID)
				}
				checked++
				if !yield(bug) {
					return
				}
			}
		}

		failures := engine.FindInconsistent(seq)
		if streamErr != nil {
			return streamErr
		}

		for _, failure := range failures {
			fmt.Printf("bug %d: %v\n", failure.Bug.ID, failure.Err)
			if purgeFailures {
				if err := bugs.Delete(ctx, failure.Bug.ID); err != nil {
					return fmt.Errorf("purge bug %d: %w", failure.Bug.ID, err)
				}
			}
		}

		fmt.Printf("checked %d records, %d inconsistent\n", checked, len(failures))
		if len(failures) > 0 {
			if purgeFailures {
				fmt.Printf("purged %d records for re-fetch\n", len(failures))
			}
			return fmt.Errorf("%d inconsistent records", len(failures))
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&purgeFailures, "purge", false, "delete inconsistent records so they can be re-fetched")
}
