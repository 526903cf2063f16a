package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-voz/config"
	"github.com/RyanBlaney/sonido-voz/logging"
	"github.com/RyanBlaney/sonido-voz/predictor"
)

var (
	// Global flags
	configPath   string
	logLevel     string
	artifactsDir string
	enableFFmpeg bool
	jsonOutput   bool

	// Loaded in PersistentPreRunE
	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sonido-voz",
	Short: "Voice gender prediction from audio",
	Long: `sonido-voz - predict speaker gender from a short voice recording.

Audio is converted to mono 22050 Hz, reduced to 20 acoustic features
(spectral statistics, fundamental and dominant frequency tracks) and
classified with a trained artifact bundle.

WAV input is decoded natively. Other containers need ffmpeg (--ffmpeg).

Examples:
  sonido-voz predict voice.wav
  sonido-voz predict --json a.wav b.wav c.wav
  sonido-voz features voice.wav
  sonido-voz predict-features 0.0598 0.0642 ... 0.0
  sonido-voz --artifacts ./my-bundle bundle
  sonido-voz serve --addr :8080`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command. Interrupt cancels in-flight predictions.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&artifactsDir, "artifacts", "", "artifact bundle directory (default: embedded reference bundle)")
	pf.BoolVar(&enableFFmpeg, "ffmpeg", false, "decode non-WAV input with ffmpeg")
	pf.BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if artifactsDir != "" {
		cfg.Artifacts.Dir = artifactsDir
	}
	if enableFFmpeg {
		cfg.Audio.EnableFFmpeg = true
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Logs go to stderr so --json output stays machine readable
	logging.SetGlobalLogger(logging.NewWriterLogger(cmd.ErrOrStderr(), cfg.Level()))

	globalConfig = cfg
	return nil
}

// newPredictor builds a predictor from the loaded configuration
func newPredictor() (*predictor.Predictor, error) {
	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return predictor.New(globalConfig.PredictorOptions()...)
}
