//go:build !pcap

package main

import (
	"fmt"

	"github.com/fieldwave/mmwave-ingest/internal/ingest"
)

func newPCAPSource(sourceID uint16, path string, port int) (ingest.Source, error) {
	return nil, fmt.Errorf("pcap source requested but this binary was built without the pcap tag")
}
