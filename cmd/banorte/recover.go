package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cipher241/Smart-Cities-Banorte/internal/jsonrecover"
)

func recoverCmd(a *app) *cobra.Command {
	var quoteAware bool
	cmd := &cobra.Command{
		Use:   "recover [file|-]",
		Short: "Print the first JSON object found in a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return codeError(3, "open %s: %s", args[0], err)
				}
				defer f.Close()
				in = f
			}
			if !cmd.Flags().Changed("quote-aware") {
				quoteAware = a.cfg.QuoteAwareScan
			}
			return runRecover(in, cmd.OutOrStdout(), cmd.ErrOrStderr(), quoteAware)
		},
	}
	cmd.Flags().BoolVar(&quoteAware, "quote-aware", false, "Ignore braces inside JSON strings while scanning")
	return cmd
}

// runRecover writes the recovered object as indented JSON to out. On failure
// it writes the failure kind and excerpt to errOut and returns exit code 2.
func runRecover(in io.Reader, out, errOut io.Writer, quoteAware bool) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return codeError(3, "read input: %s", err)
	}
	o := jsonrecover.New(jsonrecover.Options{QuoteAware: quoteAware}).RecoverRaw(jsonrecover.RawText{
		Text:   string(data),
		Origin: jsonrecover.FromFile,
	})
	if !o.OK() {
		fmt.Fprintf(errOut, "kind: %s\ncandidates: %d\nexcerpt:\n%s\n", o.Kind, o.Candidates, o.Excerpt)
		return codeError(2, "no JSON object recovered: %s", o.Kind)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(o.Object); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
