package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/avvvet/naturalcheck/internal/models"
)

var errAnalysisFailed = errors.New("analysis failed")

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var saveReport bool

	cmd := &cobra.Command{
		Use:   "analyze [text...]",
		Short: "Check a piece of text for naturalness",
		Long: `Check a piece of text for naturalness.

The text is taken from the arguments, or from stdin when none are given.

Examples:
  naturalcheck analyze "今日はいい天気ですね"
  echo "I has a pen" | naturalcheck analyze --language English`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			cfg, err := ctx.analysisConfig(cmd)
			if err != nil {
				return err
			}

			outcome, err := ctx.analyzer(ctx.client()).Analyze(cmd.Context(), cfg, text)
			if err != nil {
				return err
			}

			var reportID string
			if !outcome.OK() && saveReport {
				reports, err := ctx.transcripts()
				if err != nil {
					return fmt.Errorf("save report: %w", err)
				}
				if reportID, err = reports.RecordFailure(cmd.Context(), cfg, outcome.Failure); err != nil {
					return fmt.Errorf("save report: %w", err)
				}
			}

			if ctx.flags.json {
				if err := writeJSON(cmd, analyzeOutput{Outcome: outcome, ReportID: reportID}); err != nil {
					return err
				}
			} else {
				printOutcome(cmd.OutOrStdout(), outcome, reportID)
			}
			if !outcome.OK() {
				return errAnalysisFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&saveReport, "save-report", false, "Store the conversation of a failed analysis in Redis and print its report id")
	return cmd
}

type analyzeOutput struct {
	models.Outcome
	ReportID string `json:"report_id,omitempty"`
}

func readText(cmd *cobra.Command, args []string) (string, error) {
	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		text = strings.TrimRight(string(data), "\r\n")
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("no text to analyze")
	}
	return text, nil
}

func printOutcome(w io.Writer, outcome models.Outcome, reportID string) {
	if outcome.OK() {
		v := outcome.Verdict
		if v.IsNatural {
			fmt.Fprintln(w, "Natural: yes")
			return
		}
		fmt.Fprintln(w, "Natural: no")
		for i, s := range v.Suggestions {
			fmt.Fprintf(w, "\n%d. %s\n   %s\n", i+1, s.ImprovedText, s.Explanation)
		}
		return
	}

	f := outcome.Failure
	fmt.Fprintf(w, "Failed: %s after %d attempt(s)\n", f.Kind, f.Attempts)
	if f.LastKind != "" && f.LastKind != f.Kind {
		fmt.Fprintf(w, "Last error: %s\n", f.LastKind)
	}
	if f.Detail != "" {
		fmt.Fprintf(w, "Detail: %s\n", f.Detail)
	}
	if reportID != "" {
		fmt.Fprintf(w, "Report: %s\n", reportID)
	}
}
