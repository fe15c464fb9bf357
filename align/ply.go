package align

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// plyProperty names we map onto Point3 fields; everything else in a vertex
// row is read and discarded.
var plyKnownProps = map[string]bool{
	"x": true, "y": true, "z": true,
	"nx": true, "ny": true, "nz": true,
	"red": true, "green": true, "blue": true,
}

// ReadPly reads an ASCII PLY point cloud. Positions are required; normals
// (nx, ny, nz) and colors (red, green, blue) are picked up when the vertex
// element declares them. Face elements are skipped: only the point set
// matters for registration.
func ReadPly(path string) (Cloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ply file: %w", err)
	}
	defer f.Close()
	return parsePly(f)
}

func parsePly(r io.Reader) (Cloud, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "ply" {
		return nil, fmt.Errorf("not a ply file: missing magic")
	}

	// Header: we accept ascii only and record the vertex property layout.
	var (
		vertexCount  = -1
		vertexProps  []string
		otherCounts  []int
		inVertexElem bool
		formatOK     bool
	)
	for scanner.Scan() {
		tokens := strings.Fields(scanner.Text())
		if len(tokens) == 0 {
			continue
		}
		switch tokens[0] {
		case "comment", "obj_info":
		case "format":
			if len(tokens) < 2 || tokens[1] != "ascii" {
				return nil, fmt.Errorf("unsupported ply format %v (ascii only)", tokens[1:])
			}
			formatOK = true
		case "element":
			if len(tokens) != 3 {
				return nil, fmt.Errorf("malformed element line %q", scanner.Text())
			}
			n, err := strconv.Atoi(tokens[2])
			if err != nil {
				return nil, fmt.Errorf("parsing element count: %w", err)
			}
			if tokens[1] == "vertex" {
				vertexCount = n
				inVertexElem = true
			} else {
				otherCounts = append(otherCounts, n)
				inVertexElem = false
			}
		case "property":
			if inVertexElem && len(tokens) >= 3 && tokens[1] != "list" {
				vertexProps = append(vertexProps, tokens[len(tokens)-1])
			}
		case "end_header":
			goto body
		default:
			return nil, fmt.Errorf("unexpected header line %q", scanner.Text())
		}
	}
	return nil, fmt.Errorf("ply header has no end_header")

body:
	if !formatOK {
		return nil, fmt.Errorf("ply header has no format line")
	}
	if vertexCount < 0 {
		return nil, fmt.Errorf("ply header has no vertex element")
	}
	col := make(map[string]int, len(vertexProps))
	for i, name := range vertexProps {
		if plyKnownProps[name] {
			col[name] = i
		}
	}
	for _, axis := range []string{"x", "y", "z"} {
		if _, ok := col[axis]; !ok {
			return nil, fmt.Errorf("ply vertex element lacks %s property", axis)
		}
	}
	_, hasNormal := col["nx"]
	_, hasColor := col["red"]

	cloud := make(Cloud, 0, vertexCount)
	for i := 0; i < vertexCount; i++ {
		if !scanner.Scan() {
			return nil, fmt.Errorf("ply body truncated at vertex %d of %d", i, vertexCount)
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < len(vertexProps) {
			return nil, fmt.Errorf("ply vertex %d has %d values, want %d", i, len(fields), len(vertexProps))
		}
		get := func(name string) (float64, error) {
			return strconv.ParseFloat(fields[col[name]], 64)
		}
		var p Point3
		var err error
		if p.Pos.X, err = get("x"); err == nil {
			if p.Pos.Y, err = get("y"); err == nil {
				p.Pos.Z, err = get("z")
			}
		}
		if err != nil {
			return nil, fmt.Errorf("ply vertex %d: %w", i, err)
		}
		if hasNormal {
			if p.Normal.X, err = get("nx"); err == nil {
				if p.Normal.Y, err = get("ny"); err == nil {
					p.Normal.Z, err = get("nz")
				}
			}
			if err != nil {
				return nil, fmt.Errorf("ply vertex %d normal: %w", i, err)
			}
			p.HasNormal = true
		}
		if hasColor {
			if p.Color.X, err = get("red"); err == nil {
				if p.Color.Y, err = get("green"); err == nil {
					p.Color.Z, err = get("blue")
				}
			}
			if err != nil {
				return nil, fmt.Errorf("ply vertex %d color: %w", i, err)
			}
			p.HasColor = true
		}
		cloud = append(cloud, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ply body: %w", err)
	}
	return cloud, nil
}

// WritePly writes the cloud as ASCII PLY. Normal and color properties are
// emitted when every point carries them.
func WritePly(path string, c Cloud) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating ply file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := writePly(w, c); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing ply file: %w", err)
	}
	return nil
}

func writePly(w io.Writer, c Cloud) error {
	withNormals := len(c) > 0
	withColors := len(c) > 0
	for _, p := range c {
		withNormals = withNormals && p.HasNormal
		withColors = withColors && p.HasColor
	}

	fmt.Fprintln(w, "ply")
	fmt.Fprintln(w, "format ascii 1.0")
	fmt.Fprintf(w, "element vertex %d\n", len(c))
	fmt.Fprintln(w, "property float x")
	fmt.Fprintln(w, "property float y")
	fmt.Fprintln(w, "property float z")
	if withNormals {
		fmt.Fprintln(w, "property float nx")
		fmt.Fprintln(w, "property float ny")
		fmt.Fprintln(w, "property float nz")
	}
	if withColors {
		fmt.Fprintln(w, "property uchar red")
		fmt.Fprintln(w, "property uchar green")
		fmt.Fprintln(w, "property uchar blue")
	}
	fmt.Fprintln(w, "end_header")

	for _, p := range c {
		if _, err := fmt.Fprintf(w, "%g %g %g", p.Pos.X, p.Pos.Y, p.Pos.Z); err != nil {
			return fmt.Errorf("writing ply vertex: %w", err)
		}
		if withNormals {
			fmt.Fprintf(w, " %g %g %g", p.Normal.X, p.Normal.Y, p.Normal.Z)
		}
		if withColors {
			fmt.Fprintf(w, " %d %d %d", int(p.Color.X), int(p.Color.Y), int(p.Color.Z))
		}
		fmt.Fprintln(w)
	}
	return nil
}
