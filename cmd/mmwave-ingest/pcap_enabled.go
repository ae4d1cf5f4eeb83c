//go:build pcap

package main

import "github.com/fieldwave/mmwave-ingest/internal/ingest"

func newPCAPSource(sourceID uint16, path string, port int) (ingest.Source, error) {
	return ingest.NewPCAPSource(sourceID, path, port)
}
