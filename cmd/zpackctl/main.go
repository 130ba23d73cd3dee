// Command zpackctl is a small test driver for exercising a zpack archive
// from the command line: pack, list, extract and repack against a single
// archive file.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	zpack "github.com/IamFake/ZPack"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "zpackctl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("zpackctl", pflag.ContinueOnError)
	archivePath := flags.StringP("archive", "a", "", "path to the .zpk archive")
	dir := flags.StringP("dir", "d", "", "in-archive directory prefix for pack")
	comment := flags.String("comment", "", "comment to store alongside a packed item")
	verbose := flags.BoolP("verbose", "v", false, "emit debug logging to stderr")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *archivePath == "" || flags.NArg() < 1 {
		return fmt.Errorf("usage: zpackctl -a ARCHIVE [-d DIR] <pack|list|extract|repack> [paths...]")
	}

	opts := []zpack.Option{}
	if *verbose {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		opts = append(opts, zpack.WithLogger(logger))
	}

	cmd := flags.Arg(0)
	rest := flags.Args()[1:]

	truncate := cmd == "pack" && !fileExists(*archivePath)
	a, err := zpack.Open(*archivePath, truncate, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd {
	case "pack":
		for _, p := range rest {
			if err := a.PackFile(p, *dir, *comment); err != nil {
				return fmt.Errorf("pack %s: %w", p, err)
			}
		}
		return a.Write()

	case "list":
		for _, name := range a.Names() {
			fmt.Println(name)
		}
		return nil

	case "extract":
		destDir := "."
		if len(rest) > 0 {
			destDir = rest[0]
		}
		for _, name := range a.Names() {
			if !a.ExtractFile(name, destDir) {
				return fmt.Errorf("extract %s: %s", name, a.LastError())
			}
			if a.LastError() == zpack.ErrCRCMismatch {
				fmt.Fprintf(os.Stderr, "warning: CRC mismatch extracting %s\n", name)
				a.Clear()
			}
		}
		return nil

	case "repack":
		return a.Repack()

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
