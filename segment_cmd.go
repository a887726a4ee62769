package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lingo/internal/reader"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var segmentJSON bool

var segmentCmd = &cobra.Command{
	Use:     "segment [SOURCE]",
	Short:   "Split a text into titled segments",
	Long:    paragraph(fmt.Sprintf("\n%s a file, URL or stdin into titled segments, the way the reader does before narrating them.", keyword("Split"))),
	Example: paragraph("lingo segment story.md\ncat story.txt | lingo segment --json"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		arg := "-"
		if len(args) == 1 {
			arg = args[0]
		} else if yes, err := stdinIsPipe(); err != nil || !yes {
			return errors.New("nothing to segment: pass a file, a URL or pipe text to stdin")
		}

		text, err := readSource(cmd.Context(), arg)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return nil
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		drafts, err := client.Segment(cmd.Context(), text)
		if err != nil {
			log.Error("Segmentation failed", "err", err)
			return &reader.Error{Kind: reader.SegmentationFailure, Op: "segment", Err: err}
		}
		segs := reader.NewSegments(drafts)

		if segmentJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(segs)
		}
		return printSegments(os.Stdout, segs, outputWidth())
	},
}

func printSegments(w io.Writer, segs []*reader.Segment, width int) error {
	for i, seg := range segs {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		title := fmt.Sprintf("%d. %s", i+1, seg.Title)
		body := indent.String(wordwrap.String(seg.Content, max(1, width-2)), 2)
		if _, err := fmt.Fprintf(w, "%s %s\n%s\n", segmentTitle(title), subtle(fmt.Sprintf("(%d words)", len(seg.Words))), body); err != nil {
			return err
		}
	}
	return nil
}

// outputWidth is the terminal width, capped for readability, or 80 when
// stdout is not a terminal.
func outputWidth() int {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			return min(w, 120)
		}
	}
	return 80
}

func init() {
	segmentCmd.Flags().BoolVar(&segmentJSON, "json", false, "print segments as JSON")
}
