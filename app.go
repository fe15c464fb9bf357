package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kwv/scanstitch/align"
)

// App encapsulates the application state and dependencies
type App struct {
	Config    *align.Config
	Publisher *align.Publisher

	// CLI Flags (effectively dependencies)
	ConfigFile    string
	RefFile       string
	TargetFile    string
	ConfFile      string
	OutputFile    string
	RenderFile    string
	FootprintFile string
	PairID        string
	Algorithm     string
	Seed          int64
	Delta         float64
	Overlap       float64
	SampleSize    int
	MqttMode      bool
}

// AppOptions carries parsed CLI flags into the App.
type AppOptions struct {
	ConfigFile    string
	RefFile       string
	TargetFile    string
	ConfFile      string
	OutputFile    string
	RenderFile    string
	FootprintFile string
	PairID        string
	Algorithm     string
	Seed          int64
	Delta         float64
	Overlap       float64
	SampleSize    int
	MqttMode      bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.RefFile = opts.RefFile
	a.TargetFile = opts.TargetFile
	a.ConfFile = opts.ConfFile
	a.OutputFile = opts.OutputFile
	a.RenderFile = opts.RenderFile
	a.FootprintFile = opts.FootprintFile
	a.PairID = opts.PairID
	a.Algorithm = opts.Algorithm
	a.Seed = opts.Seed
	a.Delta = opts.Delta
	a.Overlap = opts.Overlap
	a.SampleSize = opts.SampleSize
	a.MqttMode = opts.MqttMode
}

// LoadConfiguration reads the config file when present, falls back to
// defaults otherwise, then layers any CLI overrides on top.
func (a *App) LoadConfiguration() error {
	if _, err := os.Stat(a.ConfigFile); err == nil {
		cfg, err := align.LoadConfig(a.ConfigFile)
		if err != nil {
			return err
		}
		a.Config = cfg
	} else {
		a.Config = &align.Config{Options: align.DefaultOptions()}
	}

	if a.Algorithm != "" {
		a.Config.Options.Algorithm = a.Algorithm
	}
	if a.Seed != 0 {
		a.Config.Options.Seed = a.Seed
	}
	if a.Delta > 0 {
		a.Config.Options.Delta = a.Delta
	}
	if a.Overlap > 0 {
		a.Config.Options.OverlapEstimate = a.Overlap
	}
	if a.SampleSize > 0 {
		a.Config.Options.SampleSize = a.SampleSize
	}
	return a.Config.Options.Validate()
}

// RunInfo prints a summary of each cloud file.
func (a *App) RunInfo(paths []string) {
	for _, path := range paths {
		cloud, err := align.ReadCloud(path)
		if err != nil {
			fmt.Printf("=== %s ===\nERROR: %v\n\n", filepath.Base(path), err)
			continue
		}
		min, max := cloud.Bounds()
		normals, colors := 0, 0
		for _, p := range cloud {
			if p.HasNormal {
				normals++
			}
			if p.HasColor {
				colors++
			}
		}
		fmt.Printf("=== %s ===\n", filepath.Base(path))
		fmt.Printf("Points: %d\n", len(cloud))
		fmt.Printf("Bounds: (%.3f, %.3f, %.3f) to (%.3f, %.3f, %.3f)\n",
			min.X, min.Y, min.Z, max.X, max.Y, max.Z)
		fmt.Printf("Diameter: %.3f\n", cloud.Diameter())
		fmt.Printf("Normals: %d/%d, Colors: %d/%d\n", normals, len(cloud), colors, len(cloud))
		fmt.Println()
	}
}

// RunAlign registers the reference cloud onto the target cloud and writes
// whatever outputs were requested.
func (a *App) RunAlign() {
	ref, err := align.ReadCloud(a.RefFile)
	if err != nil {
		log.Fatalf("Error reading reference cloud: %v", err)
	}
	target, err := align.ReadCloud(a.TargetFile)
	if err != nil {
		log.Fatalf("Error reading target cloud: %v", err)
	}
	fmt.Printf("Reference: %s (%d points)\n", filepath.Base(a.RefFile), len(ref))
	fmt.Printf("Target: %s (%d points)\n", filepath.Base(a.TargetFile), len(target))

	matcher, err := align.NewMatcher(a.Config.Options)
	if err != nil {
		log.Fatalf("Error creating matcher: %v", err)
	}

	result, err := matcher.ComputeTransformation(context.Background(), ref, target)
	if err != nil {
		log.Fatalf("Error computing transformation: %v", err)
	}

	fmt.Printf("Score: %.3f (bases: %d, candidates: %d, elapsed: %s)\n",
		result.Score, result.Bases, result.Candidates, result.Elapsed.Round(time.Millisecond))
	m := result.Transform.Matrix4()
	for i := 0; i < 4; i++ {
		fmt.Printf("  [%9.5f %9.5f %9.5f %9.5f]\n", m[i][0], m[i][1], m[i][2], m[i][3])
	}

	a.writeOutputs(ref, target, result)
}

// RunConfSeries loads a Stanford-style .conf file, registers every scan
// against the first, and compares each recovered rotation against the
// ground-truth poses stored in the file.
func (a *App) RunConfSeries() {
	entries, err := align.ParseConfFile(a.ConfFile)
	if err != nil {
		log.Fatalf("Error parsing conf file: %v", err)
	}
	fmt.Printf("Found %d scan(s) in %s\n", len(entries), a.ConfFile)

	clouds := make([]align.Cloud, len(entries))
	for i, e := range entries {
		c, err := align.ReadCloud(e.File)
		if err != nil {
			log.Fatalf("Error reading %s: %v", e.File, err)
		}
		clouds[i] = c
		fmt.Printf("  %s: %d points\n", filepath.Base(e.File), len(c))
	}
	if len(entries) < 2 {
		fmt.Println("Nothing to register: conf file holds a single scan")
		return
	}

	matcher, err := align.NewMatcher(a.Config.Options)
	if err != nil {
		log.Fatalf("Error creating matcher: %v", err)
	}

	anchor := entries[0]
	for i := 1; i < len(entries); i++ {
		name := strings.TrimSuffix(filepath.Base(entries[i].File), filepath.Ext(entries[i].File))
		fmt.Printf("\nRegistering %s onto %s...\n",
			filepath.Base(entries[i].File), filepath.Base(anchor.File))

		result, err := matcher.ComputeTransformation(context.Background(), clouds[i], clouds[0])
		if err != nil {
			log.Fatalf("Error registering %s: %v", entries[i].File, err)
		}

		// Ground truth maps scan i into the anchor frame.
		truth := anchor.Pose.Inverse().Compose(entries[i].Pose)
		residual := result.Transform.Compose(truth.Inverse())
		fmt.Printf("Score: %.3f, rotation error vs conf pose: %.2f deg\n",
			result.Score, residual.RotationAngle()*180/math.Pi)

		if a.Publisher != nil {
			pairID := fmt.Sprintf("%s-%s",
				strings.TrimSuffix(filepath.Base(anchor.File), filepath.Ext(anchor.File)), name)
			if err := a.Publisher.PublishResult(pairID, result); err != nil {
				log.Printf("Error publishing %s: %v", pairID, err)
			}
		}
	}
}

// writeOutputs handles the optional output products of a single alignment:
// the transformed cloud, the overlay render, the footprint GeoJSON and the
// MQTT announcement.
func (a *App) writeOutputs(ref, target align.Cloud, result align.MatchResult) {
	if a.OutputFile != "" {
		aligned := align.TransformCloud(ref, result.Transform)
		if err := align.WriteCloud(a.OutputFile, aligned); err != nil {
			log.Fatalf("Error writing aligned cloud: %v", err)
		}
		fmt.Printf("Wrote aligned cloud: %s\n", a.OutputFile)
	}

	if a.RenderFile != "" {
		renderer := align.NewOverlayRenderer(ref, target, result.Transform)
		f, err := os.Create(a.RenderFile)
		if err != nil {
			log.Fatalf("Error creating render file: %v", err)
		}
		switch strings.ToLower(filepath.Ext(a.RenderFile)) {
		case ".svg":
			err = renderer.RenderToSVG(f)
		case ".png":
			err = renderer.RenderToPNG(f)
		default:
			f.Close()
			log.Fatalf("Unsupported render format %q (want .svg or .png)", a.RenderFile)
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			log.Fatalf("Error rendering overlay: %v", err)
		}
		fmt.Printf("Wrote overlay render: %s\n", a.RenderFile)
	}

	if a.FootprintFile != "" {
		clouds := map[string]align.Cloud{
			"target":  target,
			"aligned": align.TransformCloud(ref, result.Transform),
		}
		if err := align.WriteFootprints(a.FootprintFile, clouds, a.Config.Options.Delta); err != nil {
			log.Fatalf("Error writing footprints: %v", err)
		}
		fmt.Printf("Wrote footprints: %s\n", a.FootprintFile)
	}

	if a.Publisher != nil {
		pairID := a.PairID
		if pairID == "" {
			refName := strings.TrimSuffix(filepath.Base(a.RefFile), filepath.Ext(a.RefFile))
			tgtName := strings.TrimSuffix(filepath.Base(a.TargetFile), filepath.Ext(a.TargetFile))
			pairID = fmt.Sprintf("%s-%s", refName, tgtName)
		}
		if err := a.Publisher.PublishResult(pairID, result); err != nil {
			log.Printf("Error publishing result: %v", err)
		}
	}
}

// ConnectPublisher connects the MQTT publisher per the loaded config.
func (a *App) ConnectPublisher() error {
	if a.Config.MQTT == nil {
		return fmt.Errorf("mqtt requested but config has no mqtt section")
	}
	client, err := align.ConnectMQTT(a.Config.MQTT)
	if err != nil {
		return err
	}
	a.Publisher = align.NewPublisher(client)
	if a.Config.MQTT.PublishPrefix != "" {
		a.Publisher.SetPrefix(a.Config.MQTT.PublishPrefix)
	}
	return nil
}
