package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fgeck/backupkit/internal/size"
	"github.com/spf13/cobra"
)

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Convert between size strings and byte counts",
}

var sizeParseCmd = &cobra.Command{
	Use:     "parse <text>...",
	Short:   "Convert size strings such as \"10 GB\" to bytes",
	Example: `  backupkit size parse "10 GB" 500MB 1.5tb`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, arg := range args {
			n, err := size.Parse(arg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t(%s bytes)\n", arg, n, humanize.Comma(n))
		}
		return nil
	},
}

var sizeFormatCmd = &cobra.Command{
	Use:     "format <bytes>...",
	Short:   "Convert byte counts to size strings",
	Example: `  backupkit size format 1073741824`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, arg := range args {
			n, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid byte count %q: %w", arg, err)
			}
			s, err := size.Format(n)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", arg, s)
		}
		return nil
	},
}

func init() {
	sizeCmd.AddCommand(sizeParseCmd)
	sizeCmd.AddCommand(sizeFormatCmd)
}
