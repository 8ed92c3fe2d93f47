// Command parwator runs the parallel, NUMA-aware Wa-Tor simulation engine
// and streams packed grid snapshots to a map file.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/wator-sim/parwator/internal/cli"
	xerrors "github.com/wator-sim/parwator/internal/errors"
	"github.com/wator-sim/parwator/internal/execplan"
	"github.com/wator-sim/parwator/internal/frame"
	"github.com/wator-sim/parwator/internal/grid"
	"github.com/wator-sim/parwator/internal/rules"
	"github.com/wator-sim/parwator/internal/simulation"
)

type config struct {
	width, height uint32
	iterCnt       uint32
	fish, shark   uint64
	fishBreed     uint
	sharkBreed    uint
	sharkStarve   uint
	workers       uint
	disableHT     bool
	seed          uint64
	output        string
	benchmark     bool
	minVersion    string
}

func main() {
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "version" {
		cli.PrintVersion("parwator", len(args) > 1 && args[1] == "--json")
		return
	}

	cfg, err := parseFlags(args)
	if err != nil {
		cli.ExitWithError("%v", err)
	}

	if err := run(cfg); err != nil {
		cli.ExitWithError("%v", err)
	}
}

func parseFlags(args []string) (*config, error) {
	fs := flag.NewFlagSet("parwator", flag.ContinueOnError)

	var width, height, iterCnt uint
	var fish, shark uint64
	var fishBreed, sharkBreed, sharkStarve, workers uint
	var disableHT, benchmark bool
	var seed uint64
	var output, minVersion string

	fs.UintVar(&width, "width", 0, "grid width (required)")
	fs.UintVar(&height, "height", 0, "grid height (required)")
	fs.UintVar(&iterCnt, "itercnt", 0, "number of chronons to simulate (required)")
	fs.Uint64Var(&fish, "fish", 0, "initial fish count (default floor(w*h/10), min 1)")
	fs.Uint64Var(&shark, "sharks", 0, "initial shark count (default floor(w*h/30), min 1)")
	fs.UintVar(&fishBreed, "fishbreed", 3, "fish breed age")
	fs.UintVar(&sharkBreed, "sharkbreed", 10, "shark breed age")
	fs.UintVar(&sharkStarve, "sharkstarve", 3, "shark starve threshold")
	fs.UintVar(&workers, "workers", uint(defaultWorkers()), "worker count (default hardware concurrency)")
	fs.BoolVar(&disableHT, "disable-ht", false, "avoid scheduling two workers on the same physical core")
	fs.Uint64Var(&seed, "seed", 0, "PRNG seed (default: OS entropy)")
	fs.StringVar(&output, "output", os.DevNull, "map file output path")
	fs.BoolVar(&benchmark, "benchmark", false, "print a compact one-line report instead of the verbose one")
	fs.StringVar(&minVersion, "min-version", "", "reject the run if the engine's frame FormatVersion is below this semver")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if width == 0 || height == 0 || iterCnt == 0 {
		return nil, xerrors.InvalidRules("--width, --height and --itercnt are required and must be non-zero",
			map[string]interface{}{"width": width, "height": height, "itercnt": iterCnt})
	}

	area := uint64(width) * uint64(height)
	if fish == 0 {
		fish = max64(area/10, 1)
	}
	if shark == 0 {
		shark = max64(area/30, 1)
	}
	if fish > math.MaxUint32 || shark > math.MaxUint32 {
		return nil, xerrors.InvalidRules("fish/shark count exceeds a 32-bit cell count",
			map[string]interface{}{"fish": fish, "shark": shark})
	}

	if seed == 0 {
		seed = osEntropySeed()
	}

	return &config{
		width:       uint32(width),
		height:      uint32(height),
		iterCnt:     uint32(iterCnt),
		fish:        fish,
		shark:       shark,
		fishBreed:   fishBreed,
		sharkBreed:  sharkBreed,
		sharkStarve: sharkStarve,
		workers:     workers,
		disableHT:   disableHT,
		seed:        seed,
		output:      output,
		benchmark:   benchmark,
		minVersion:  minVersion,
	}, nil
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func run(cfg *config) error {
	if cfg.minVersion != "" {
		ok, err := frame.SatisfiesMinVersion(cfg.minVersion)
		if err != nil {
			return xerrors.InvalidRules("--min-version is not a valid semver constraint",
				map[string]interface{}{"minVersion": cfg.minVersion, "cause": err.Error()})
		}
		if !ok {
			return xerrors.InvalidRules("engine frame FormatVersion is below --min-version",
				map[string]interface{}{"formatVersion": frame.FormatVersion.String(), "minVersion": cfg.minVersion})
		}
	}

	r, err := rules.New(cfg.width, cfg.height, uint32(cfg.fish), uint32(cfg.shark),
		uint8(cfg.fishBreed), uint8(cfg.sharkBreed), uint8(cfg.sharkStarve))
	if err != nil {
		return err
	}

	plan, err := execplan.New(uint32(cfg.workers), !cfg.disableHT)
	if err != nil {
		return err
	}

	driver, err := simulation.New(r, plan, grid.Default(), cfg.seed)
	if err != nil {
		return err
	}
	if err := driver.Start(); err != nil {
		return err
	}
	defer driver.Close()

	out, err := os.Create(cfg.output)
	if err != nil {
		return xerrors.IOFailure("open output file", err)
	}
	defer out.Close()

	writer := frame.New(fileSink{out}, cfg.width, cfg.height)

	start := time.Now()
	for i := uint32(0); i < cfg.iterCnt; i++ {
		driver.DoIteration()
		if err := writer.WriteFrame(driver.Grid()); err != nil {
			return err
		}
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	wallClock := time.Since(start)

	if cfg.benchmark {
		printBenchmarkReport(driver, wallClock)
	} else {
		printVerboseReport(plan, driver, wallClock)
	}

	return nil
}

// fileSink adapts *os.File to frame.Sink; os.File has no buffering of its
// own, so Flush degenerates to Sync.
type fileSink struct{ f *os.File }

func (s fileSink) Write(p []byte) (int, error) { return s.f.Write(p) }
func (s fileSink) Flush() error                { return s.f.Sync() }

func printBenchmarkReport(d *simulation.Driver, wallClock time.Duration) {
	fmt.Printf("parwator bench: wall=%.3fs avgFreq=%dMHz waitPct=%.2f%%\n",
		wallClock.Seconds(), d.AverageFrequencyKHz()/1000, weightedWaitPercent(d, wallClock))
}

func printVerboseReport(plan *execplan.Plan, d *simulation.Driver, wallClock time.Duration) {
	p := message.NewPrinter(language.English)

	plan.WriteStats(os.Stdout)
	p.Printf("wall-clock time:        %.3f seconds\n", wallClock.Seconds())
	p.Printf("average CPU frequency:  %v MHz\n", number.Decimal(d.AverageFrequencyKHz()/1000))
	p.Printf("weighted waiting time:  %v\n", d.WeightedWaitingTime())
	p.Printf("time spent waiting:     %.2f%%\n", weightedWaitPercent(d, wallClock))
}

func weightedWaitPercent(d *simulation.Driver, wallClock time.Duration) float64 {
	if wallClock <= 0 {
		return 0
	}
	return 100 * float64(d.WeightedWaitingTime()) / float64(wallClock)
}

func defaultWorkers() int {
	n := execplanHardwareConcurrency()
	if n <= 0 {
		return 1
	}
	return n
}
