// Command plot-capture is a one-shot diagnostic: it decodes a capture file
// in full and renders an HTML scatter plot of every detected point's x/y
// position in metres, colored by velocity, using go-echarts. It is a thin
// adapter around the core decoder — out of scope for the ingest pipeline
// itself.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/fieldwave/mmwave-ingest/internal/decode"
)

func main() {
	capturePath := flag.String("capture", "", "capture file to decode and plot")
	outPath := flag.String("out", "capture.html", "HTML file to write the chart to")
	flag.Parse()

	if *capturePath == "" {
		log.Fatal("-capture is required")
	}

	data, err := os.ReadFile(*capturePath)
	if err != nil {
		log.Fatalf("reading capture %s: %v", *capturePath, err)
	}

	records := decode.Decode(data, 0)

	var points []opts.ScatterData
	maxAbs := 1.0
	for _, r := range records {
		if r.Kind != decode.KindDetectedObject {
			continue
		}
		o := r.DetectedObject
		if math.Abs(o.X) > maxAbs {
			maxAbs = math.Abs(o.X)
		}
		if math.Abs(o.Y) > maxAbs {
			maxAbs = math.Abs(o.Y)
		}
		points = append(points, opts.ScatterData{Value: []interface{}{o.X, o.Y, o.VelocityMps}})
	}

	pad := maxAbs * 1.1

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Radar Capture", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Detected Points", Subtitle: fmt.Sprintf("%s (%d points)", *capturePath, len(points))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)"}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#3e4989", "#26828e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("points", points, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("creating %s: %v", *outPath, err)
	}
	defer f.Close()

	if err := scatter.Render(f); err != nil {
		log.Fatalf("rendering chart: %v", err)
	}

	log.Printf("wrote %s (%d detected points, %d total records)", *outPath, len(points), len(records))
}
