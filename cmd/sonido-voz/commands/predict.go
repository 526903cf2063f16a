package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-voz/predictor"
)

var predictCmd = &cobra.Command{
	Use:   "predict <file>...",
	Short: "Predict speaker gender for audio files",
	Long: `Predict speaker gender for one or more audio files.

Multiple files are processed concurrently (see "workers" in the config).
A failing file does not stop the others; the command exits non-zero if
any file failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)
}

type batchOutput struct {
	Input  string            `json:"input"`
	Result *predictor.Result `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

func runPredict(cmd *cobra.Command, args []string) error {
	p, err := newPredictor()
	if err != nil {
		return err
	}

	items := p.PredictBatch(cmd.Context(), args)
	out := cmd.OutOrStdout()

	failed := 0
	records := make([]batchOutput, len(items))
	for i, item := range items {
		records[i] = batchOutput{Input: item.Input, Result: item.Result}
		if item.Err != nil {
			failed++
			records[i].Error = item.Err.Error()
		}
	}

	if jsonOutput {
		if len(records) == 1 && records[0].Result != nil {
			if err := printJSON(out, records[0].Result); err != nil {
				return err
			}
		} else if err := printJSON(out, records); err != nil {
			return err
		}
	} else {
		for _, item := range items {
			if item.Err != nil {
				fmt.Fprintln(out, renderError(item.Input, item.Err))
				continue
			}
			fmt.Fprintln(out, renderResult(item.Input, item.Result))
		}
	}

	if failed == 1 && len(items) == 1 {
		return items[0].Err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(items))
	}
	return nil
}
