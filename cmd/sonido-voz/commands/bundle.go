package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-voz/model"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Show the loaded artifact bundle",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPredictor()
		if err != nil {
			return err
		}
		b, err := p.Bundle()
		if err != nil {
			return err
		}

		info := describeBundle(b)
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), info)
		}

		lines := []string{
			style.Title.Render("artifact bundle"),
			"",
			style.Label.Render("version") + info.Version,
			style.Label.Render("classifier") + info.Classifier,
			style.Label.Render("dims") + fmt.Sprintf("%d -> %d", info.Features, info.Components),
			style.Label.Render("labels") + strings.Join(info.Labels, ", "),
			style.Label.Render("units") + fmt.Sprintf("spectral=%s track=%s", info.Spectral, info.Track),
		}
		if info.Description != "" {
			lines = append(lines, "", style.Dim.Render(info.Description))
		}
		fmt.Fprintln(cmd.OutOrStdout(), style.Box.Render(strings.Join(lines, "\n")))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bundleCmd)
}

type bundleInfo struct {
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Classifier  string   `json:"classifier"`
	Features    int      `json:"features"`
	Components  int      `json:"components"`
	Labels      []string `json:"labels"`
	Spectral    string   `json:"spectral_unit"`
	Track       string   `json:"track_unit"`
}

func describeBundle(b *model.Bundle) bundleInfo {
	norm := b.Normalization()
	return bundleInfo{
		Version:     b.Version(),
		Description: b.Manifest.Description,
		Classifier:  b.Classifier.Kind(),
		Features:    b.Chain.InputDim(),
		Components:  b.Chain.OutputDim(),
		Labels:      append([]string(nil), b.Labels.Classes...),
		Spectral:    string(norm.Spectral),
		Track:       string(norm.Track),
	}
}
