// Command c8asm assembles CHIP-8 assembly into a program image.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/retroenv/retrogolib/log"

	"gochip8/pkg/asm"
	"gochip8/pkg/config"
	"gochip8/pkg/cpu"
	"gochip8/pkg/utils"
)

type options struct {
	input   string
	output  string
	listing bool
	debug   bool
	quiet   bool
}

var errUsage = errors.New("usage: c8asm [options] <source file>")

func main() {
	opts, flags, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Println(err)
		if flags != nil {
			flags.SetOutput(os.Stdout)
			flags.PrintDefaults()
		}
		os.Exit(1)
	}
	logger := config.CreateLogger(opts.debug, opts.quiet)

	if err := run(opts, os.Stdout, logger); err != nil {
		logger.Fatal("Assembling failed", log.String("input", opts.input), log.Err(err))
	}
}

func parseFlags(args []string) (options, *flag.FlagSet, error) {
	flags := flag.NewFlagSet("c8asm", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	var opts options
	flags.StringVar(&opts.output, "o", "", "output file (default: input with .ch8 extension)")
	flags.BoolVar(&opts.listing, "map", false, "print an address listing of the program")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.BoolVar(&opts.quiet, "q", false, "only log errors")

	if err := flags.Parse(args); err != nil {
		return opts, flags, errUsage
	}
	if flags.NArg() != 1 {
		return opts, flags, errUsage
	}
	opts.input = flags.Arg(0)
	if opts.output == "" {
		opts.output = utils.ReplaceExt(opts.input, ".ch8")
	}
	return opts, flags, nil
}

func run(opts options, stdout io.Writer, logger *log.Logger) error {
	source, err := os.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}

	code, sourceMap, err := asm.Assemble(string(source))
	if err != nil {
		return err
	}
	if len(code) > cpu.MaxProgramSize {
		return &cpu.CapacityError{Size: len(code), Limit: cpu.MaxProgramSize}
	}
	logger.Debug("Assembled program",
		log.Int("bytes", len(code)),
		log.Int("statements", len(sourceMap)))

	if opts.listing {
		printListing(stdout, code, sourceMap, strings.Split(string(source), "\n"))
	}

	if err := os.WriteFile(opts.output, code, 0o644); err != nil {
		return fmt.Errorf("writing program: %w", err)
	}
	logger.Info("Wrote program", log.String("output", opts.output), log.Int("size", len(code)))
	return nil
}

// printListing writes one line per source map entry with the emitted bytes
// and the originating source line.
func printListing(w io.Writer, code []byte, sourceMap map[uint16]int, lines []string) {
	addrs := make([]int, 0, len(sourceMap))
	for addr := range sourceMap {
		addrs = append(addrs, int(addr))
	}
	sort.Ints(addrs)

	for i, addr := range addrs {
		end := cpu.ProgramStart + len(code)
		if i+1 < len(addrs) && addrs[i+1] < end {
			end = addrs[i+1]
		}
		start := addr - cpu.ProgramStart
		stop := end - cpu.ProgramStart
		if stop-start > 4 {
			stop = start + 4
		}

		lineNo := sourceMap[uint16(addr)]
		text := ""
		if lineNo >= 1 && lineNo <= len(lines) {
			text = strings.TrimSpace(lines[lineNo-1])
		}
		fmt.Fprintf(w, "%03X  %-8X  %4d  %s\n", addr, code[start:stop], lineNo, text)
	}
}
