package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-voz/features"
)

var featuresCmd = &cobra.Command{
	Use:   "features <file>",
	Short: "Print the acoustic feature vector of an audio file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPredictor()
		if err != nil {
			return err
		}

		v, err := p.ExtractFeaturesFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), v)
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderFeatures(args[0], v))
		return nil
	},
}

var predictFeaturesCmd = &cobra.Command{
	Use:   "predict-features <values>...",
	Short: "Predict from precomputed feature values",
	Long: `Predict from a precomputed feature vector.

Pass either the 20 values in canonical order as separate arguments, or a
single JSON argument: an array of 20 numbers or an object keyed by
feature name.

Feature order:
  ` + strings.Join(features.Names(), " "),
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := parseVector(args)
		if err != nil {
			return err
		}

		p, err := newPredictor()
		if err != nil {
			return err
		}
		r, err := p.PredictFromFeatures(cmd.Context(), v)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), r)
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderResult("features", r))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(featuresCmd)
	rootCmd.AddCommand(predictFeaturesCmd)
}

// parseVector accepts positional numbers or one JSON document
func parseVector(args []string) (features.Vector, error) {
	if len(args) == 1 {
		if s := strings.TrimSpace(args[0]); strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
			var v features.Vector
			if err := json.Unmarshal([]byte(s), &v); err != nil {
				return features.Vector{}, fmt.Errorf("invalid feature JSON: %w", err)
			}
			return v, nil
		}
	}

	values := make([]float64, len(args))
	for i, arg := range args {
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return features.Vector{}, fmt.Errorf("value %d (%q): %w", i+1, arg, err)
		}
		values[i] = f
	}
	return features.FromSlice(values)
}
