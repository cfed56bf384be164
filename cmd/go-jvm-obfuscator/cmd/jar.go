package cmd

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/whit3rabbit/jvmmixer/internal/obfuscator"
)

var (
	outputFile  string
	libraries   []string
	crasher     bool
	indirection bool
	shuffle     bool
	seed        int64
	seedPhrase  string
	compression string
)

var (
	labelColor = color.New(color.FgHiBlack, color.Bold).SprintFunc()
	valueColor = color.New(color.FgHiWhite).SprintFunc()
	warnColor  = color.New(color.FgYellow).SprintFunc()
	okColor    = color.New(color.FgGreen, color.Bold).SprintFunc()
)

// jarCmd represents the obfuscate jar command
var jarCmd = &cobra.Command{
	Use:   "jar <input.jar>",
	Short: "Obfuscate a JAR",
	Long: `Reads a JAR, applies the configured transformations and writes the
result. Classes from --lib archives are used for type resolution only.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		cmd.SilenceUsage = true
		input := args[0]
		target := outputFile
		if target == "" {
			target = strings.TrimSuffix(input, ".jar") + "-obf.jar"
		}

		octx, err := obfuscator.NewObfuscationContext(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize obfuscation context: %w", err)
		}
		report, err := octx.ObfuscateJar(input, target)
		if err != nil {
			return err
		}
		if !cfg.Silent {
			printReport(report)
		}
		return nil
	},
}

func printReport(r *obfuscator.Report) {
	row := func(label string, value interface{}) {
		fmt.Printf("  %s %s\n", labelColor(fmt.Sprintf("%-15s", label)), valueColor(value))
	}
	fmt.Println(okColor("Obfuscation finished"))
	row("input", r.Input)
	row("output", fmt.Sprintf("%s (%s)", r.Output, humanize.Bytes(uint64(r.Bytes))))
	row("seed", r.Seed)
	row("classes", r.Classes)
	if r.HardExcluded > 0 {
		row("hard excluded", r.HardExcluded)
	}
	row("resources", r.Resources)
	if r.Libraries > 0 {
		row("library classes", r.Libraries)
	}
	row("call sites", fmt.Sprintf("%d in %d methods of %d classes", r.Indirection.CallSites, r.Indirection.Methods, r.Indirection.Classes))
	if r.Indirection.Casts > 0 {
		row("casts", r.Indirection.Casts)
	}
	if r.BootstrapClass != "" {
		row("bootstrap", r.BootstrapClass)
	}
	row("entries", r.Entries)
	if r.Crasher {
		row("crasher", "on")
	}
	if r.Unparseable > 0 {
		fmt.Printf("  %s %d class entries could not be parsed and were copied verbatim\n", warnColor("warning:"), r.Unparseable)
	}
	for _, name := range r.Degraded {
		fmt.Printf("  %s %s written without stack map frames\n", warnColor("degraded:"), name)
	}
}

func init() {
	obfuscateCmd.AddCommand(jarCmd)
	jarCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output archive path (default: <input>-obf.jar)")
	jarCmd.Flags().StringArrayVarP(&libraries, "lib", "l", nil, "Library archive used for type resolution (repeatable)")
	jarCmd.Flags().BoolVar(&crasher, "crasher", false, "Enable/disable the anti-tooling archive layout (overrides config)")
	jarCmd.Flags().BoolVar(&indirection, "indirection", true, "Enable/disable call-site indirection (overrides config)")
	jarCmd.Flags().BoolVar(&shuffle, "shuffle", true, "Enable/disable member shuffling (overrides config)")
	jarCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed; 0 derives one from the clock (overrides config)")
	jarCmd.Flags().StringVar(&seedPhrase, "seed-phrase", "", "Phrase hashed into the random seed (overrides config)")
	jarCmd.Flags().StringVar(&compression, "compression", "deflate", "Entry compression: deflate or store (overrides config)")
}
