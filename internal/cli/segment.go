package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrlokans/storyreader/internal/entities"
	"github.com/mrlokans/storyreader/internal/reader"
)

// SegmentCommand prints the reader items a chapter text segments into.
type SegmentCommand struct {
	FilePath string
	Title    string
	JSON     bool

	Out io.Writer
}

func NewSegmentCommand() *SegmentCommand {
	return &SegmentCommand{Out: os.Stdout}
}

func (cmd *SegmentCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("segment", flag.ContinueOnError)

	fs.StringVar(&cmd.FilePath, "file", "", "Path to a plain-text chapter (required, '-' reads stdin)")
	fs.StringVar(&cmd.Title, "title", "", "Chapter title (defaults to the file name)")
	fs.BoolVar(&cmd.JSON, "json", false, "Print items as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s segment -file <path> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Split a chapter text into the items the reader displays and narrates.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s segment -file chapter1.txt\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  cat chapter1.txt | %s segment -file - -title \"Chapter One\" -json\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.FilePath == "" {
		return fmt.Errorf("required flag -file not provided")
	}
	if cmd.Title == "" && cmd.FilePath != "-" {
		base := filepath.Base(cmd.FilePath)
		cmd.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return nil
}

func (cmd *SegmentCommand) Run() error {
	var (
		content []byte
		err     error
	)
	if cmd.FilePath == "-" {
		content, err = io.ReadAll(os.Stdin)
	} else {
		content, err = os.ReadFile(cmd.FilePath)
	}
	if err != nil {
		return fmt.Errorf("failed to read chapter: %w", err)
	}

	items := reader.Segment(entities.Chapter{ID: "local", Title: cmd.Title, Content: string(content)})

	if cmd.JSON {
		enc := json.NewEncoder(cmd.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(reader.Views(items))
	}

	for _, view := range reader.Views(items) {
		switch view.Kind {
		case "image":
			fmt.Fprintf(cmd.Out, "%3d %-6s IMAGE %s\n", view.Order, view.Location, view.ImageURL)
		default:
			fmt.Fprintf(cmd.Out, "%3d %-6s %-5s %s\n", view.Order, view.Location, view.Type, view.Text)
		}
	}
	fmt.Fprintf(cmd.Out, "\n%d items\n", len(items))
	return nil
}
