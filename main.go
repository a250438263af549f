//go:build !js

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"

	"gochip8/pkg/asm"
	"gochip8/pkg/config"
	"gochip8/pkg/cpu"
	"gochip8/pkg/peripherals"
	"gochip8/pkg/rom"
	"gochip8/pkg/utils"
)

// defaultFrames bounds a headless run when -frames is not given.
const defaultFrames = 600

type runOptions struct {
	frames     int
	keys       string
	screenshot string
	wav        string
	logger     *log.Logger
}

func main() {
	inPath := flag.String("in", "", "input assembly file path")
	outPath := flag.String("out", "", "output program file path (default: input with .ch8 extension)")
	runProgram := flag.Bool("run", false, "run the assembled program headless")
	runBinPath := flag.String("run-bin", "", "run an existing program image headless")
	frames := flag.Int("frames", defaultFrames, "number of frames to run, 0 runs without limit")
	keys := flag.String("keys", "", "scripted key presses as frame:key pairs, e.g. 10:5,40:@W")
	screenshot := flag.String("screenshot", "", "write the final display as PNG")
	wavPath := flag.String("wav", "", "record the beeper to a WAV file")
	listDir := flag.String("list", "", "list the roms found in a directory")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := config.CreateLogger(*debug, false)

	if *listDir != "" {
		if err := listRoms(os.Stdout, *listDir); err != nil {
			fmt.Fprintf(os.Stderr, "listing %q failed: %v\n", *listDir, err)
			os.Exit(1)
		}
		return
	}

	if *runProgram && *runBinPath != "" {
		fmt.Fprintln(os.Stderr, "use either -run or -run-bin, not both")
		os.Exit(2)
	}
	if *frames < 0 {
		fmt.Fprintln(os.Stderr, "-frames must not be negative")
		os.Exit(2)
	}

	assembledOutput := ""
	if *inPath != "" {
		output := *outPath
		if output == "" {
			output = defaultOutputPath(*inPath)
		}

		size, err := assembleFile(*inPath, output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "assembly failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("assembled %d bytes -> %s\n", size, output)
		assembledOutput = output
	}

	if *inPath == "" && *runBinPath == "" && !*runProgram {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in to assemble, -run to run assembled output, or -run-bin <file> to run an existing program")
		flag.Usage()
		os.Exit(2)
	}

	runTarget := ""
	switch {
	case *runBinPath != "":
		runTarget = *runBinPath
	case *runProgram:
		if assembledOutput == "" {
			fmt.Fprintln(os.Stderr, "-run requires -in, or use -run-bin <file>")
			os.Exit(2)
		}
		runTarget = assembledOutput
	default:
		return
	}

	opts := runOptions{
		frames:     *frames,
		keys:       *keys,
		screenshot: *screenshot,
		wav:        *wavPath,
		logger:     logger,
	}
	vm, host, err := runBinary(app.Context(), runTarget, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run failed for %q: %v\n", runTarget, err)
		os.Exit(1)
	}
	printState(os.Stdout, runTarget, vm, host)
}

func defaultOutputPath(inPath string) string {
	return utils.ReplaceExt(inPath, ".ch8")
}

// assembleFile assembles the source at inPath and writes the program image
// to outPath, returning its size.
func assembleFile(inPath, outPath string) (int, error) {
	fullPath, _, err := utils.GetPathInfo(inPath)
	if err != nil {
		return 0, err
	}
	source, err := os.ReadFile(fullPath)
	if err != nil {
		return 0, fmt.Errorf("reading input file: %w", err)
	}

	code, _, err := asm.Assemble(string(source))
	if err != nil {
		return 0, err
	}
	if len(code) > cpu.MaxProgramSize {
		return 0, &cpu.CapacityError{Size: len(code), Limit: cpu.MaxProgramSize}
	}

	if err := writeBinary(outPath, code); err != nil {
		return 0, fmt.Errorf("writing program file: %w", err)
	}
	return len(code), nil
}

func writeBinary(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

// runBinary loads the rom at path and runs it on a headless host.
func runBinary(ctx context.Context, path string, opts runOptions) (*cpu.CPU, *peripherals.Headless, error) {
	image, err := rom.Load(path)
	if err != nil {
		return nil, nil, err
	}

	schedule, err := peripherals.ParseKeySchedule(opts.keys)
	if err != nil {
		return nil, nil, err
	}

	hostOpts := []peripherals.HeadlessOption{
		peripherals.WithFrameLimit(opts.frames),
		peripherals.WithKeySchedule(schedule),
	}
	var wav *peripherals.WavWriter
	if opts.wav != "" {
		wav = peripherals.NewWavWriter(opts.wav)
		hostOpts = append(hostOpts, peripherals.WithWav(wav))
	}
	host := peripherals.NewHeadless(hostOpts...)

	cpuOpts := []cpu.Option{}
	if opts.logger != nil {
		cpuOpts = append(cpuOpts, cpu.WithLogger(opts.logger))
	}
	vm, err := cpu.NewCPU(image, host, cpuOpts...)
	if err != nil {
		return nil, nil, err
	}

	if _, err := vm.RunUntilDone(ctx, opts.frames); err != nil {
		return nil, nil, err
	}

	if wav != nil {
		if err := wav.Close(); err != nil {
			return nil, nil, err
		}
	}
	if opts.screenshot != "" {
		frame := host.LastFrame()
		if err := frame.SaveScreenshot(opts.screenshot, 4); err != nil {
			return nil, nil, err
		}
	}
	return vm, host, nil
}

func printState(w io.Writer, path string, vm *cpu.CPU, host *peripherals.Headless) {
	r := vm.Regs
	fmt.Fprintf(w,
		"run complete (%s): frames=%d state=%s PC=0x%03X SP=0x%03X I=0x%03X DT=%d ST=%d\n",
		path, host.Frames(), vm.State(), r.PC, r.SP, r.I, r.DT, r.ST,
	)

	var b strings.Builder
	for i, v := range r.V {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "V%X=0x%02X", i, v)
	}
	fmt.Fprintln(w, b.String())
}

func listRoms(w io.Writer, dir string) error {
	entries, err := rom.Catalog(dir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return errors.New("no roms found")
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%-24s %6d bytes  %s\n", e.Name, e.Size, e.Modified.Format("2006-01-02 15:04"))
	}
	return nil
}
