package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/whit3rabbit/jvmmixer/internal/archive"
	"github.com/whit3rabbit/jvmmixer/internal/classfile"
)

var verifyResources bool

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <archive.jar>",
	Short: "Lists the entries the JVM would load from an archive",
	Long: `Reads an archive the way the JVM's class loader does: the end record is
located by scanning backwards, the last of several same-named entries wins
and checksums are ignored. Every resolved class entry is parsed and listed
with its size and the number of earlier entries it shadows.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		a, err := archive.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ENTRY\tSIZE\tVERSION\tSHADOWED")
		classes, decoys, broken, shadowed := 0, 0, 0, 0
		for _, f := range a.Files {
			if resolved, _ := a.Lookup(f.Name); resolved != f {
				continue
			}
			isClass := strings.HasSuffix(f.Name, ".class")
			if !isClass && !verifyResources {
				continue
			}
			data, err := a.Open(f)
			if err != nil {
				broken++
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", f.Name, "-", err.Error(), a.Shadowed(f.Name))
				continue
			}
			version := "-"
			if isClass {
				c, err := classfile.Parse(data)
				if err != nil {
					decoys++
					version = "not a class"
				} else {
					classes++
					version = fmt.Sprintf("%d.%d", c.Major, c.Minor)
				}
			}
			shadowed += a.Shadowed(f.Name)
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", f.Name, humanize.Bytes(uint64(len(data))), version, a.Shadowed(f.Name))
		}
		w.Flush()

		fmt.Printf("\n%s %d classes, %d decoys, %d shadowed records, %d directory records, comment %s\n",
			okColor("Summary:"), classes, decoys, shadowed, len(a.Files), humanize.Bytes(uint64(len(a.Comment))))
		if broken > 0 {
			return fmt.Errorf("%d entries could not be read", broken)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().BoolVarP(&verifyResources, "resources", "r", false, "Also list non-class entries")
}
