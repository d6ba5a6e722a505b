package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spec-kit/bug-snapshot-service/internal/domain"
)

var loadCmd = &cobra.Command{
	Use:   "load <corpus.jsonl>",
	Short: "Ingest a JSON-lines corpus dump into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)

		stored := 0
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var bug domain.BugRecord
			if err := json.Unmarshal(line, &bug); err != nil {
				return fmt.Errorf("line %d: %w", stored+1, err)
			}
			if err := bugs.Upsert(ctx, &bug); err != nil {
				return fmt.Errorf("upsert bug %d: %w", bug.ID, err)
			}
			if verbose {
				fmt.Println(bug.ID)
			}
			stored++
		}
		if err := scanner.Err(); err != nil {
			return err
		}

		fmt.Printf("stored %d records\n", stored)
		return nil
	},
}
