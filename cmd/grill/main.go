// Command grill is the thin CLI shell around the core package manager:
// argument parsing and a small command table, nothing more (spec.md §1
// places the user-facing surface itself out of scope for the core).
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/RogueMacro/grill/internal/grillctx"
	"github.com/RogueMacro/grill/internal/grilllog"
)

var verbose = flag.Bool("v", false, "enable verbose logging")

type command interface {
	Name() string
	Args() string
	ShortHelp() string
	LongHelp() string
	Register(*flag.FlagSet)
	Run(args []string, ctx *grillctx.Ctx, log *grilllog.Logger) error
}

func main() {
	ctx, err := grillctx.NewContext()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	commands := []command{
		&makeCommand{},
		&listCommand{},
	}

	usage := func() {
		fmt.Fprintln(os.Stderr, "Usage: grill <command>")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr)
		w := tabwriter.NewWriter(os.Stderr, 0, 4, 2, ' ', 0)
		for _, c := range commands {
			fmt.Fprintf(w, "\t%s\t%s\n", c.Name(), c.ShortHelp())
		}
		w.Flush()
		fmt.Fprintln(os.Stderr)
	}

	if len(os.Args) <= 1 || strings.ToLower(os.Args[1]) == "-h" || strings.ToLower(os.Args[1]) == "help" {
		usage()
		os.Exit(1)
	}

	for _, c := range commands {
		if c.Name() != os.Args[1] {
			continue
		}

		fs := flag.NewFlagSet(c.Name(), flag.ExitOnError)
		fs.BoolVar(verbose, "v", false, "enable verbose logging")
		c.Register(fs)
		resetUsage(fs, c.Name(), c.Args(), c.LongHelp())

		if err := fs.Parse(os.Args[2:]); err != nil {
			fs.Usage()
			os.Exit(1)
		}

		log := grilllog.New(os.Stderr)
		log.Verbose = *verbose

		if err := c.Run(fs.Args(), ctx, log); err != nil {
			fmt.Fprintf(os.Stderr, "grill: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "grill: no such command %q\n", os.Args[1])
	usage()
	os.Exit(1)
}

func resetUsage(fs *flag.FlagSet, name, args, longHelp string) {
	var (
		hasFlags   bool
		flagBlock  bytes.Buffer
		flagWriter = tabwriter.NewWriter(&flagBlock, 0, 4, 2, ' ', 0)
	)
	fs.VisitAll(func(f *flag.Flag) {
		hasFlags = true
		def := f.DefValue
		if def == "" {
			def = "<none>"
		}
		fmt.Fprintf(flagWriter, "\t-%s\t%s (default: %s)\n", f.Name, f.Usage, def)
	})
	flagWriter.Flush()
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: grill %s %s\n", name, args)
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, strings.TrimSpace(longHelp))
		fmt.Fprintln(os.Stderr)
		if hasFlags {
			fmt.Fprintln(os.Stderr, "Flags:")
			fmt.Fprintln(os.Stderr)
			fmt.Fprintln(os.Stderr, flagBlock.String())
		}
	}
}
