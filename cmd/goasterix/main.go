package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"goasterix/internal/app"
)

func main() {
	var config app.Config

	rootCmd := &cobra.Command{
		Use:   "goasterix",
		Short: "ASTERIX surveillance data codec",
		Long: `ASTERIX surveillance data codec.

Compiles declarative category definitions (YAML or JSON), decodes and
encodes binary data blocks against them, and exports compiled categories
as fixed-layout XML descriptions.

Example usage:
  goasterix compile cat048.yaml
  goasterix export cat048.yaml --output cat048.xml
  goasterix decode 300030fd...
  goasterix validate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.ShowVersion {
				app.ShowVersion()
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&config.Verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.Flags().BoolVar(&config.ShowVersion, "version", false, "Show version information")

	compileCmd := &cobra.Command{
		Use:   "compile <definition>...",
		Short: "Compile category definitions and report their layout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.NewApplication(config).Compile(args)
		},
	}
	compileCmd.Flags().StringVar(&config.REFile, "re", "", "Reserved Expansion Field definition file")
	compileCmd.Flags().StringVar(&config.SPFile, "sp", "", "Special Purpose Field definition file")

	exportCmd := &cobra.Command{
		Use:   "export <definition>",
		Short: "Export a compiled category as a fixed-layout XML description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.NewApplication(config).Export(args[0])
		},
	}
	exportCmd.Flags().StringVar(&config.REFile, "re", "", "Reserved Expansion Field definition file")
	exportCmd.Flags().StringVar(&config.SPFile, "sp", "", "Special Purpose Field definition file")
	exportCmd.Flags().StringVarP(&config.Output, "output", "o", "", "Output file (default stdout)")

	decodeCmd := &cobra.Command{
		Use:   "decode [hex]...",
		Short: "Decode hex-encoded data blocks and dump their fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.NewApplication(config).Decode(args)
		},
	}
	decodeCmd.Flags().StringArrayVarP(&config.SpecFiles, "spec", "s", nil, "Category definition file (repeatable, default built-in CAT048)")
	decodeCmd.Flags().BoolVar(&config.Lenient, "lenient", false, "Clamp oversized extended subfields instead of failing")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Run a reference CAT048 round trip through the validator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.NewApplication(config).Validate()
		},
	}

	rootCmd.AddCommand(compileCmd, exportCmd, decodeCmd, validateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
