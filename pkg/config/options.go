package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

// DefaultScale is the window pixels per display cell.
const DefaultScale = 10

// Options are the settings shared by every host.
type Options struct {
	ROM        string // program image or assembly source
	Scale      int    // window pixels per display cell
	Debug      bool   // debug logging
	Quiet      bool   // errors only
	Frames     int    // headless frame limit, 0 runs until shutdown
	Screenshot string // PNG written on exit
	Wav        string // WAV file capturing the beeper
	Keys       string // scripted key presses, frame:key list
	StatsView  bool   // serve runtime statistics
}

// UsageError represents an error that should show usage information
type UsageError struct {
	name  string
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	if e.msg == "" {
		return "missing rom argument"
	}
	return e.msg
}

// ShowUsage prints the usage line and flag defaults to stdout.
func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: %s [options] <rom file>\n\n", e.name)
	if e.flags != nil {
		e.flags.SetOutput(os.Stdout)
		e.flags.PrintDefaults()
	}
	fmt.Println()
}

// ParseFlags parses the host command line. name is the program name used in
// usage output; args excludes the program name. The rom file is the single
// positional argument.
func ParseFlags(name string, args []string) (Options, error) {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	opts := Options{}
	readOptionFlags(flags, &opts)

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, &UsageError{name: name, flags: flags}
		}
		return opts, &UsageError{name: name, flags: flags, msg: err.Error()}
	}

	rest := flags.Args()
	switch {
	case len(rest) == 0:
		return opts, &UsageError{name: name, flags: flags}
	case len(rest) > 1:
		return opts, &UsageError{
			name:  name,
			flags: flags,
			msg:   fmt.Sprintf("unexpected argument %s after rom file, options must come first", rest[1]),
		}
	}
	opts.ROM = rest[0]

	if err := normalizeOptions(&opts); err != nil {
		return opts, err
	}
	return opts, nil
}

func readOptionFlags(flags *flag.FlagSet, opts *Options) {
	flags.IntVar(&opts.Scale, "scale", DefaultScale, "window pixels per display cell")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debug logging")
	flags.BoolVar(&opts.Quiet, "q", false, "only log errors")
	flags.IntVar(&opts.Frames, "frames", 0, "stop after this many frames (0 = no limit)")
	flags.StringVar(&opts.Screenshot, "screenshot", "", "write the final display to this PNG file")
	flags.StringVar(&opts.Wav, "wav", "", "record the beeper to this WAV file")
	flags.StringVar(&opts.Keys, "keys", "", "scripted key presses as frame:key list, e.g. 10:5,40:@W")
	flags.BoolVar(&opts.StatsView, "statsview", false, "serve runtime statistics on localhost:18066")
}

// normalizeOptions normalizes and validates option values
func normalizeOptions(opts *Options) error {
	if opts.Scale < 1 {
		return fmt.Errorf("invalid scale %d: must be at least 1", opts.Scale)
	}
	if opts.Frames < 0 {
		return fmt.Errorf("invalid frame limit %d: must not be negative", opts.Frames)
	}
	if opts.Debug {
		opts.Quiet = false
	}
	return nil
}
