package align

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ConfEntry is one scan referenced by a Stanford repository conf file: the
// mesh file (resolved relative to the conf file) and its ground-truth pose.
type ConfEntry struct {
	File string
	Pose RigidTransform
}

// ParseConfFile reads a Stanford 3D scanning repository configuration file.
// Recognized lines have the form
//
//	bmesh <file> tx ty tz qx qy qz qw
//
// giving each scan's pose as a translation and a unit quaternion. Other
// lines (camera, section markers) are ignored, matching how registration
// pipelines consume these files.
func ParseConfFile(path string) ([]ConfEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening conf file: %w", err)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	var entries []ConfEntry

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		tokens := strings.Fields(scanner.Text())
		if len(tokens) == 0 || tokens[0] != "bmesh" {
			continue
		}
		if len(tokens) != 9 {
			return nil, fmt.Errorf("conf line %d: bmesh wants 9 tokens, got %d", lineNo, len(tokens))
		}
		vals := make([]float64, 7)
		for i, tok := range tokens[2:] {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("conf line %d: parsing %q: %w", lineNo, tok, err)
			}
			vals[i] = v
		}
		entries = append(entries, ConfEntry{
			File: filepath.Join(dir, tokens[1]),
			Pose: QuaternionTransform(vals[3], vals[4], vals[5], vals[6], Vec3{vals[0], vals[1], vals[2]}),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading conf file: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("conf file %s contains no bmesh entries", path)
	}
	return entries, nil
}
