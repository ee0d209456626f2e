package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"contextkeeper/internal/editlog"
	"contextkeeper/internal/storage"
)

// NewRollbackCmd creates the rollback command.
func NewRollbackCmd() *cobra.Command {
	var (
		task      string
		timestamp int64
	)

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Discard edit log updates newer than a checkpoint timestamp",
		RunE: func(cmd *cobra.Command, args []string) error {
			if task == "" {
				return errNoTask
			}
			mgr, err := GetCLIContext(cmd).NewManager(task)
			if err != nil {
				return err
			}
			if err := mgr.Load(); err != nil {
				return fmt.Errorf("load history: %w", err)
			}

			if mgr.Rollback(timestamp) {
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back to %d\n", timestamp)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "No updates after %d\n", timestamp)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&task, "task", "", "task directory (file storage) or task id (sqlite storage)")
	cmd.Flags().Int64Var(&timestamp, "timestamp", 0, "checkpoint timestamp; newer updates are discarded")
	_ = cmd.MarkFlagRequired("timestamp")

	return cmd
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	var (
		task       string
		jsonOutput bool
		revisions  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show a task's edit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if task == "" {
				return errNoTask
			}
			cliCtx := GetCLIContext(cmd)
			mgr, err := cliCtx.NewManager(task)
			if err != nil {
				return err
			}
			if err := mgr.Load(); err != nil {
				return fmt.Errorf("load history: %w", err)
			}
			log := mgr.History()

			out := cmd.OutOrStdout()
			if jsonOutput {
				data, err := json.Marshal(log)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if log.Empty() {
				fmt.Fprintln(out, "No context history")
			} else {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "MESSAGE\tKIND\tBLOCK\tUPDATES\tLATEST\tCHARS")
				for _, msg := range log.Messages() {
					kind, _ := log.Kind(msg)
					for _, block := range log.Blocks(msg) {
						key := editlog.Key{Message: msg, Block: block}
						latest, _ := log.Latest(key)
						fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\n",
							msg, kind, block, len(log.Updates(key)), latest.Timestamp, len(latest.Text))
					}
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}

			if revisions > 0 {
				store, err := cliCtx.HistoryStore()
				if err != nil {
					return err
				}
				sqlStore, ok := store.(*storage.SQLiteStore)
				if !ok {
					return fmt.Errorf("--revisions requires storage.driver=sqlite")
				}
				revs, err := sqlStore.Revisions(task, revisions)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				for _, r := range revs {
					fmt.Fprintf(out, "rev %d  %s  %d cells  %s\n", r.Revision, r.CreatedAt.Format(time.RFC3339), r.Cells, r.ID)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&task, "task", "", "task directory (file storage) or task id (sqlite storage)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the stored JSON form")
	cmd.Flags().IntVar(&revisions, "revisions", 0, "also list the newest N saved revisions (sqlite storage)")

	return cmd
}
