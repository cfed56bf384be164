package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/jvmmixer/internal/cipher"
)

// whatisCmd represents the whatis command
var whatisCmd = &cobra.Command{
	Use:   "whatis <class> <method> <ciphertext>",
	Short: "Decrypts an identifier stored at a rewritten call site",
	Long: `Applies the identifier cipher keyed by the calling class and method,
which recovers the owner, name or descriptor a call site refers to. The
cipher is its own inverse, so plain text input is encrypted.

Characters outside printable ASCII may be written as \uXXXX escapes; the
output uses the same notation.

Example:
  go-jvm-obfuscator whatis com/acme/Main main 'l垩ਜ...'`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		text, err := unescapeUnits(args[2])
		if err != nil {
			return err
		}
		keys := cipher.NewKeys(utf16.Encode([]rune(args[0])), utf16.Encode([]rune(args[1])))
		fmt.Println(escapeUnits(keys.Apply(text)))
		return nil
	},
}

// unescapeUnits converts s to UTF-16 code units, expanding \uXXXX escapes
// and \\.
func unescapeUnits(s string) ([]uint16, error) {
	var out []uint16
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '\\' || i+1 >= len(runes) {
			out = append(out, utf16.Encode([]rune{r})...)
			continue
		}
		switch runes[i+1] {
		case '\\':
			out = append(out, '\\')
			i++
		case 'u':
			if i+6 > len(runes) {
				return nil, fmt.Errorf("truncated escape at offset %d", i)
			}
			v, err := strconv.ParseUint(string(runes[i+2:i+6]), 16, 16)
			if err != nil {
				return nil, fmt.Errorf("invalid escape %q: %w", string(runes[i:i+6]), err)
			}
			out = append(out, uint16(v))
			i += 5
		default:
			out = append(out, '\\')
		}
	}
	return out, nil
}

// escapeUnits renders units with everything outside printable ASCII
// escaped.
func escapeUnits(units []uint16) string {
	var sb strings.Builder
	for _, u := range units {
		switch {
		case u == '\\':
			sb.WriteString(`\\`)
		case u >= 0x20 && u < 0x7f:
			sb.WriteByte(byte(u))
		default:
			fmt.Fprintf(&sb, `\u%04x`, u)
		}
	}
	return sb.String()
}

func init() {
	rootCmd.AddCommand(whatisCmd)
}
