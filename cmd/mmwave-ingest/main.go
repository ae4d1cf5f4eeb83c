// Command mmwave-ingest runs the radar ingest pipeline: one source driver
// per configured ByteSource, a processor that decodes and fans records out
// to the configured sinks, and graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fieldwave/mmwave-ingest/internal/config"
	"github.com/fieldwave/mmwave-ingest/internal/decode"
	"github.com/fieldwave/mmwave-ingest/internal/ingest"
	"github.com/fieldwave/mmwave-ingest/internal/pipeline"
	"github.com/fieldwave/mmwave-ingest/internal/ring"
	"github.com/fieldwave/mmwave-ingest/internal/sink"
	"github.com/fieldwave/mmwave-ingest/internal/version"
)

var (
	serialPorts  = flag.String("serial", "", "comma-separated serial device paths, one source per device")
	replayFile   = flag.String("replay", "", "capture file to replay instead of a live serial feed")
	replaySpeed  = flag.Float64("replay-speed", 0, "replay speed multiplier (0 = use tuning config default)")
	pcapFile     = flag.String("pcap", "", "pcap capture file to replay (requires the pcap build tag)")
	pcapPort     = flag.Int("pcap-port", 0, "TCP/UDP port to filter when replaying a pcap capture")
	csvPath      = flag.String("csv", "", "append-only CSV log path (empty disables the CSV sink)")
	sqlitePath   = flag.String("sqlite-path", "", "embedded sqlite capture database path (empty disables the sqlite sink)")
	consoleFlag  = flag.Bool("console", true, "enable the console sink")
	ringCapacity = flag.Int("ring-capacity", 0, "ring stage capacity per source (0 = use tuning config default)")
	outputQueue  = flag.Int("output-queue-capacity", 0, "bounded output queue capacity (0 = use tuning config default)")
	configFile   = flag.String("config", config.DefaultPath, "path to JSON tuning configuration file")
	versionFlag  = flag.Bool("version", false, "print version information and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(os.Stdout)

	wireDebugLogs()

	if *versionFlag {
		fmt.Printf("mmwave-ingest v%s (git SHA: %s)\n", version.Version, version.GitSHA)
		os.Exit(0)
	}

	tuning, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("loading tuning config %s: %v", *configFile, err)
	}

	sources, err := buildSources(tuning)
	if err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}
	if len(sources) == 0 {
		log.Println("error: no source configured (use -serial, -replay, or -pcap)")
		os.Exit(1)
	}

	recordSink, err := buildSink(tuning)
	if err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}

	capacity := *ringCapacity
	if capacity <= 0 {
		capacity = *tuning.RingCapacity
	}

	stages := make([]*ring.Stage, len(sources))
	for i := range sources {
		stages[i] = ring.NewStage(capacity)
	}

	outputCapacity := *outputQueue
	if outputCapacity <= 0 {
		outputCapacity = *tuning.OutputQueueCapacity
	}

	decodeOpts := decode.DefaultOptions()
	decodeOpts.VelocityScaleMPSPerLSB = *tuning.VelocityScaleMPSPerLSB

	processor := pipeline.New(pipeline.Config{
		Stages:              stages,
		DecodeOptions:       decodeOpts,
		Sink:                recordSink,
		OutputQueueCapacity: outputCapacity,
	})

	log.Printf("mmwave-ingest v%s starting (run %s, %d source(s))", version.Version, processor.RunID, len(sources))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	active := ingest.NewActiveFlag()

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(src ingest.Source, stage *ring.Stage) {
			defer wg.Done()
			if err := src.Run(ctx, stage, active); err != nil {
				log.Printf("source %d terminated: %v", src.SourceID(), err)
			}
		}(src, stages[i])
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := processor.Run(ctx); err != nil {
			log.Printf("processor terminated: %v", err)
		}
	}()

	wg.Wait()
	log.Println("graceful shutdown complete")
}

// buildSources constructs one ingest.Source per configured ByteSource.
// -serial (one or more devices), -replay and -pcap may be combined; source
// IDs are assigned in that order starting at 0.
func buildSources(tuning config.Tuning) ([]ingest.Source, error) {
	var sources []ingest.Source
	var sourceID uint16

	if *serialPorts != "" {
		for _, port := range strings.Split(*serialPorts, ",") {
			port = strings.TrimSpace(port)
			if port == "" {
				continue
			}
			src, err := ingest.NewSerialSource(sourceID, port)
			if err != nil {
				return nil, fmt.Errorf("opening serial source %q: %w", port, err)
			}
			sources = append(sources, src)
			sourceID++
		}
	}

	if *replayFile != "" {
		speed := *replaySpeed
		if speed <= 0 {
			speed = *tuning.ReplaySpeed
		}
		src, err := ingest.NewReplaySource(sourceID, *replayFile, speed)
		if err != nil {
			return nil, fmt.Errorf("opening replay capture %q: %w", *replayFile, err)
		}
		sources = append(sources, src)
		sourceID++
	}

	if *pcapFile != "" {
		src, err := newPCAPSource(sourceID, *pcapFile, *pcapPort)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
		sourceID++
	}

	return sources, nil
}

func buildSink(tuning config.Tuning) (sink.RecordSink, error) {
	var sinks []sink.RecordSink

	if *consoleFlag {
		sinks = append(sinks, sink.NewConsole(os.Stdout))
	}

	if *csvPath != "" {
		csvSink, err := sink.NewCSV(*csvPath)
		if err != nil {
			return nil, fmt.Errorf("opening csv sink %q: %w", *csvPath, err)
		}
		sinks = append(sinks, csvSink)
	}

	if *sqlitePath != "" {
		sqliteSink, err := sink.NewSQLite(*sqlitePath, newRunSuffix())
		if err != nil {
			return nil, fmt.Errorf("opening sqlite sink %q: %w", *sqlitePath, err)
		}
		sinks = append(sinks, sqliteSink)
	}

	return sink.NewMulti(sinks...), nil
}

var runCounter atomic.Uint64

// newRunSuffix gives the sqlite sink a run tag even before the processor
// (which owns the canonical RunID) has been constructed. The start time
// separates invocations; the counter separates calls within one process.
func newRunSuffix() string {
	return fmt.Sprintf("boot-%d-%d", time.Now().UnixNano(), runCounter.Add(1))
}

func wireDebugLogs() {
	opsPath := os.Getenv("MMWAVE_OPS_LOG")
	diagPath := os.Getenv("MMWAVE_DEBUG_LOG")
	tracePath := os.Getenv("MMWAVE_TRACE_LOG")
	if opsPath == "" && diagPath == "" && tracePath == "" {
		return
	}

	open := func(path string) *os.File {
		if path == "" {
			return nil
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Printf("warning: failed to open %s: %v", path, err)
			return nil
		}
		return f
	}

	ops, diag, trace := open(opsPath), open(diagPath), open(tracePath)
	ingest.SetLogWriters(fileOrNil(ops), fileOrNil(diag), fileOrNil(trace))
	pipeline.SetLogWriters(fileOrNil(ops), fileOrNil(diag), fileOrNil(trace))
}

// fileOrNil returns f as an io.Writer, or a true nil interface when f is
// nil — returning *os.File(nil) directly would produce a non-nil interface
// wrapping a nil pointer, which SetLogWriters' nil check would not catch.
func fileOrNil(f *os.File) io.Writer {
	if f == nil {
		return nil
	}
	return f
}
