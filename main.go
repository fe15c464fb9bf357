package main

import (
	"flag"
	"fmt"
	"log"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	configFile    = flag.String("config", "config.yaml", "Path to configuration file")
	refFile       = flag.String("ref", "", "Reference cloud to register (.ply or .obj)")
	targetFile    = flag.String("target", "", "Target cloud to register against (.ply or .obj)")
	confFile      = flag.String("conf", "", "Stanford .conf file: register every scan against the first")
	infoOnly      = flag.Bool("info", false, "Print cloud summaries for the given files and exit")
	outputFile    = flag.String("output", "", "Write the transformed reference cloud here")
	renderFile    = flag.String("render", "", "Write an overlay render here (.svg or .png)")
	footprintFile = flag.String("footprint", "", "Write XY footprints as GeoJSON here")
	pairID        = flag.String("pair-id", "", "Identifier used in MQTT topics (default: derived from filenames)")
	algorithm     = flag.String("algorithm", "", "Congruent-set strategy: super or brute (default: from config)")
	seed          = flag.Int64("seed", 0, "RNG seed for reproducible runs (0 = from clock)")
	delta         = flag.Float64("delta", 0, "Distance tolerance override (0 = from config)")
	overlap       = flag.Float64("overlap", 0, "Overlap estimate override in (0,1] (0 = from config)")
	sampleSize    = flag.Int("sample", 0, "Per-cloud sample size override (0 = from config)")
	mqttMode      = flag.Bool("mqtt", false, "Publish results to the MQTT broker from the config")
)

func main() {
	flag.Parse()
	fmt.Printf("scanstitch version: %s\n", Version)

	app := NewApp()
	app.ApplyOptions(AppOptions{
		ConfigFile:    *configFile,
		RefFile:       *refFile,
		TargetFile:    *targetFile,
		ConfFile:      *confFile,
		OutputFile:    *outputFile,
		RenderFile:    *renderFile,
		FootprintFile: *footprintFile,
		PairID:        *pairID,
		Algorithm:     *algorithm,
		Seed:          *seed,
		Delta:         *delta,
		Overlap:       *overlap,
		SampleSize:    *sampleSize,
		MqttMode:      *mqttMode,
	})

	if *infoOnly {
		if flag.NArg() == 0 {
			log.Fatal("--info needs at least one cloud file argument")
		}
		app.RunInfo(flag.Args())
		return
	}

	if err := app.LoadConfiguration(); err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	if app.MqttMode {
		if err := app.ConnectPublisher(); err != nil {
			log.Fatalf("Error connecting to MQTT: %v", err)
		}
	}

	if *confFile != "" {
		app.RunConfSeries()
		return
	}

	if *refFile != "" && *targetFile != "" {
		app.RunAlign()
		return
	}

	fmt.Println("Usage:")
	fmt.Println("  scanstitch --ref scan1.ply --target scan2.ply [--output aligned.ply]")
	fmt.Println("  scanstitch --conf bunny.conf")
	fmt.Println("  scanstitch --info scan1.ply scan2.obj")
	fmt.Println("\nOptions:")
	fmt.Println("  --render out.svg|out.png   overlay render of target vs aligned reference")
	fmt.Println("  --footprint out.geojson    XY convex footprints of both clouds")
	fmt.Println("  --mqtt                     publish the result (config.yaml mqtt section)")
	fmt.Println("  --algorithm super|brute    congruent-set strategy")
	fmt.Println("  --seed N                   reproducible runs")
	fmt.Println("\nConfiguration:")
	fmt.Println("  config.yaml - matching options and MQTT settings")
}
