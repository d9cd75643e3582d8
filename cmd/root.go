package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"admart/internal/ui"
)

var (
	console *ui.UI

	rootCmd = &cobra.Command{
		Use:   "admart",
		Short: "Pull ads performance data into the warehouse",
		Long: "admart - A batch pipeline that pulls campaign and ad performance data\n" +
			"from the vendor ads API and rebuilds the raw, staging and mart layers\n" +
			"of the warehouse.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			console = ui.NewUI(viper.GetBool("verbose"), viper.GetBool("quiet"))
		},
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		viper.BindPFlag(f.Name, f)
	})

	viper.SetEnvPrefix("ADMART")
	viper.AutomaticEnv()
}
