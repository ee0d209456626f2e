package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"contextkeeper/internal/compaction"
	ckcontext "contextkeeper/internal/context"
)

var errNoTask = errors.New("--task is required")

// modelFlags override the configured model for one invocation.
type modelFlags struct {
	id       string
	provider string
	window   int
}

func (f *modelFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "model", "", "model id (overrides model.id)")
	cmd.Flags().StringVar(&f.provider, "provider", "", "provider (overrides model.provider)")
	cmd.Flags().IntVar(&f.window, "window", 0, "context window in tokens (overrides model.context_window)")
}

func (f *modelFlags) resolve(base compaction.ModelInfo) compaction.ModelInfo {
	if f.id != "" {
		base.ID = f.id
	}
	if f.provider != "" {
		base.Provider = f.provider
	}
	if f.window > 0 {
		base.ContextWindow = f.window
	}
	return base
}

// NewViewCmd creates the view command.
func NewViewCmd() *cobra.Command {
	var (
		task           string
		sessionPath    string
		jsonOutput     bool
		write          bool
		nativeCondense bool
		model          modelFlags
	)

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Compute the effective conversation for the next request",
		Long: `Run one compaction pass over a session file and print the conversation
that would be sent next. The task's edit log is updated and persisted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if task == "" {
				return errNoTask
			}
			cliCtx := GetCLIContext(cmd)
			session, err := LoadSession(sessionPath)
			if err != nil {
				return err
			}
			mgr, err := cliCtx.NewManager(task)
			if err != nil {
				return err
			}

			res := mgr.GetEffectiveView(ckcontext.ViewRequest{
				Messages:             session.Messages,
				Markers:              session.Markers,
				DeletedRange:         session.DeletedRange,
				PreviousRequestIndex: session.PreviousIndex(),
				Model:                model.resolve(cliCtx.Config.ModelInfo()),
				NativeCondense:       nativeCondense,
			})

			if write && res.RangeUpdated {
				session.DeletedRange = res.DeletedRange
				if err := session.Save(sessionPath); err != nil {
					return fmt.Errorf("write session: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			tc := compaction.NewTokenCounter()
			fmt.Fprintf(out, "Messages:      %d -> %d\n", len(session.Messages), len(res.Messages))
			fmt.Fprintf(out, "Est. tokens:   %d -> %d\n", tc.EstimateMessages(session.Messages), tc.EstimateMessages(res.Messages))
			if res.DeletedRange.Empty() {
				fmt.Fprintln(out, "Deleted range: none")
			} else {
				fmt.Fprintf(out, "Deleted range: %s\n", res.DeletedRange)
			}
			fmt.Fprintf(out, "Range updated: %t\n", res.RangeUpdated)
			return nil
		},
	}

	cmd.Flags().StringVar(&task, "task", "", "task directory (file storage) or task id (sqlite storage)")
	cmd.Flags().StringVar(&sessionPath, "session", "", "session JSON file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&write, "write", false, "store an updated deleted range back into the session file")
	cmd.Flags().BoolVar(&nativeCondense, "native-condense", false, "provider condenses context itself; skip compaction")
	model.register(cmd)

	return cmd
}

// NewShouldCompactCmd creates the should-compact command.
func NewShouldCompactCmd() *cobra.Command {
	var (
		sessionPath string
		threshold   float64
		model       modelFlags
	)

	cmd := &cobra.Command{
		Use:   "should-compact",
		Short: "Report whether the last request reached the compaction threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			session, err := LoadSession(sessionPath)
			if err != nil {
				return err
			}
			mgr, err := cliCtx.NewManager("")
			if err != nil {
				return err
			}
			should := mgr.ShouldCompact(session.Markers, model.resolve(cliCtx.Config.ModelInfo()), session.PreviousIndex(), threshold)
			fmt.Fprintln(cmd.OutOrStdout(), should)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionPath, "session", "", "session JSON file")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "share of the context window that triggers compaction (0 = default budget)")
	model.register(cmd)

	return cmd
}

// NewTelemetryCmd creates the telemetry command.
func NewTelemetryCmd() *cobra.Command {
	var (
		sessionPath string
		trigger     int
		jsonOutput  bool
		model       modelFlags
	)

	cmd := &cobra.Command{
		Use:   "telemetry",
		Short: "Print context window usage of the latest completed request",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			session, err := LoadSession(sessionPath)
			if err != nil {
				return err
			}
			mgr, err := cliCtx.NewManager("")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tel := mgr.GetTelemetry(session.Markers, model.resolve(cliCtx.Config.ModelInfo()), trigger)
			if jsonOutput {
				data, err := json.Marshal(tel)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			if tel == nil {
				fmt.Fprintln(out, "No usage data")
				return nil
			}
			pct := float64(tel.TokensUsed) / float64(tel.MaxContextWindow) * 100
			fmt.Fprintf(out, "%d / %d tokens (%.1f%%)\n", tel.TokensUsed, tel.MaxContextWindow, pct)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionPath, "session", "", "session JSON file")
	cmd.Flags().IntVar(&trigger, "trigger", -1, "marker index to search back from (-1 = last)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	model.register(cmd)

	return cmd
}
