package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/lsdc/internal/logging"
	"github.com/san-kum/lsdc/internal/tui"
)

var (
	dataDir string
	verbose bool

	log *zap.SugaredLogger
)

func main() {
	for _, envFile := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	rootCmd := &cobra.Command{
		Use:           "lsdc",
		Short:         "rollout engine for planar pushing experiments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			log, err = logging.New("lsdc", verbose)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = log.Sync()
		},
	}

	defaultData := os.Getenv("LSDC_DATA")
	if defaultData == "" {
		defaultData = ".lsdc"
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", defaultData, "run directory (LSDC_DATA)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		newSampleCmd(),
		newCollectCmd(),
		newListCmd(),
		newShowCmd(),
		newPlotCmd(),
		newPreviewCmd(),
		newDeleteCmd(),
		newExportJSONCmd(),
		newExportSVGCmd(),
		newExportPlotCmd(),
		newExportGIFCmd(),
		newPresetsCmd(),
		newInitConfigCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, tui.StatusFailed.Render("error: ")+err.Error())
		os.Exit(1)
	}
}
