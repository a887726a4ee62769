package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dgnsrekt/lingo/internal/reader"
	"github.com/dgnsrekt/lingo/ui"
	"github.com/spf13/cobra"
)

var (
	lookupContext string
	lookupJSON    bool
)

var lookupCmd = &cobra.Command{
	Use:     "lookup WORD",
	Short:   "Explain a word, optionally as used in a passage",
	Long:    paragraph(fmt.Sprintf("\n%s a word: pronunciation, meaning in the target language and an example sentence. Punctuation and digits are stripped first.", keyword("Look up"))),
	Example: paragraph("lingo lookup serendipity\nlingo lookup bank --context \"We sat on the river bank.\""),
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		word := reader.CleanWord(args[0])
		if word == "" {
			return fmt.Errorf("%q has no letters to look up", args[0])
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		passage := lookupContext
		if passage == "" {
			passage = word
		}
		info, err := client.Lookup(cmd.Context(), word, passage)
		if err != nil {
			return &reader.Error{Kind: reader.LookupFailure, Op: "lookup", Err: err}
		}

		if lookupJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}
		card, err := ui.RenderLookup(info, style, outputWidth())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stdout, card)
		return err
	},
}

func init() {
	lookupCmd.Flags().StringVarP(&lookupContext, "context", "c", "", "passage the word appears in")
	lookupCmd.Flags().BoolVar(&lookupJSON, "json", false, "print the entry as JSON")
}
