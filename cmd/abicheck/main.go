package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/stable-abi/compat"
	"github.com/wippyai/stable-abi/loader"
)

var rootCmd = &cobra.Command{
	Use:   "abicheck",
	Short: "Check ABI compatibility of stable-abi modules",
	Long: `abicheck compares the layout descriptions exported by Go plugins built
with stable-abi and reports every incompatibility with its path.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		log, err := newLogger(verbose)
		if err != nil {
			return err
		}
		compat.SetLogger(log)
		loader.SetLogger(log)
		return nil
	},
}

func main() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(dumpCmd)

	rootCmd.PersistentFlags().Bool("verbose", false, "log checks to stderr")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// useColor resolves the --color flag against the output stream.
func useColor(cmd *cobra.Command) bool {
	mode, _ := cmd.Flags().GetString("color")
	switch mode {
	case "on":
		return true
	case "off":
		return false
	}
	return isTerminal(os.Stdout)
}
