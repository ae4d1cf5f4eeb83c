// Command replay-tty is a thin adapter that feeds a capture file out to an
// already-open TTY device (such as one half of a socat-created pty pair) at
// the protocol's wire pace, so a test harness can point a real serial
// client at what looks like a live AWR1843-class device. It duplicates
// ingest.ReplaySource's pacing math rather than importing it, since this
// tool is explicitly out of the ingest pipeline's core.
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"time"
)

const (
	chunkSize          = 2048
	baudRate           = 921600
	baudBytesPerSecond = baudRate / 8
)

func main() {
	capturePath := flag.String("capture", "", "capture file to replay")
	ttyPath := flag.String("tty", "", "TTY device path to write replayed bytes to")
	speed := flag.Float64("speed", 1.0, "replay speed multiplier")
	loop := flag.Bool("loop", true, "rewind and repeat when the capture is exhausted")
	flag.Parse()

	if *capturePath == "" || *ttyPath == "" {
		log.Fatal("-capture and -tty are required")
	}
	if *speed <= 0 {
		*speed = 1.0
	}

	in, err := os.Open(*capturePath)
	if err != nil {
		log.Fatalf("opening capture %s: %v", *capturePath, err)
	}
	defer in.Close()

	out, err := os.OpenFile(*ttyPath, os.O_WRONLY, 0)
	if err != nil {
		log.Fatalf("opening tty %s: %v", *ttyPath, err)
	}
	defer out.Close()

	delay := time.Duration(float64(chunkSize) / float64(baudBytesPerSecond) / *speed * float64(time.Second))
	buf := make([]byte, chunkSize)

	log.Printf("replaying %s to %s at %.2fx (chunk delay %s)", *capturePath, *ttyPath, *speed, delay)

	for {
		n, err := in.Read(buf)
		if err == io.EOF || n == 0 {
			if !*loop {
				log.Println("capture exhausted, exiting")
				return
			}
			if _, seekErr := in.Seek(0, io.SeekStart); seekErr != nil {
				log.Fatalf("rewinding capture: %v", seekErr)
			}
			continue
		}
		if err != nil {
			log.Fatalf("reading capture: %v", err)
		}

		if _, err := out.Write(buf[:n]); err != nil {
			log.Fatalf("writing to tty: %v", err)
		}

		time.Sleep(delay)
	}
}
