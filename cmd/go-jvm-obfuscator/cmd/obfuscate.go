package cmd

import (
	"github.com/spf13/cobra"
)

// obfuscateCmd represents the base command for obfuscation actions
var obfuscateCmd = &cobra.Command{
	Use:   "obfuscate",
	Short: "Obfuscates compiled JVM archives",
	Long: `Provides subcommands to obfuscate archives.

Example:
  go-jvm-obfuscator obfuscate jar app.jar -o app-obf.jar
  go-jvm-obfuscator obfuscate jar app.jar -o app-obf.jar --lib deps.jar --crasher --seed 42`,
}

func init() {
	rootCmd.AddCommand(obfuscateCmd)
}
