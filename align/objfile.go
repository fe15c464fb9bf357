package align

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadObj reads a Wavefront OBJ file as a point cloud: v lines become
// positions, and vn / vt lines are attached per-vertex when their counts
// line up with the vertex count (the layout point-cloud exports use). Face
// and material statements are ignored.
func ReadObj(path string) (Cloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening obj file: %w", err)
	}
	defer f.Close()
	return parseObj(f)
}

func parseObj(r io.Reader) (Cloud, error) {
	var positions, normals []Vec3
	var texcoords [][2]float64

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		tokens := strings.Fields(scanner.Text())
		if len(tokens) == 0 {
			continue
		}
		switch tokens[0] {
		case "v", "vn":
			if len(tokens) < 4 {
				return nil, fmt.Errorf("obj line %d: %s wants 3 coordinates", lineNo, tokens[0])
			}
			v, err := parseVec3(tokens[1:4])
			if err != nil {
				return nil, fmt.Errorf("obj line %d: %w", lineNo, err)
			}
			if tokens[0] == "v" {
				positions = append(positions, v)
			} else {
				normals = append(normals, v)
			}
		case "vt":
			if len(tokens) < 3 {
				return nil, fmt.Errorf("obj line %d: vt wants 2 coordinates", lineNo)
			}
			u, err1 := strconv.ParseFloat(tokens[1], 64)
			v, err2 := strconv.ParseFloat(tokens[2], 64)
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("obj line %d: malformed vt", lineNo)
			}
			texcoords = append(texcoords, [2]float64{u, v})
		default:
			// f, mtllib, usemtl, o, g, s, comments: not point data.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading obj file: %w", err)
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("obj file contains no vertices")
	}

	attachNormals := len(normals) == len(positions)
	attachTex := len(texcoords) == len(positions)
	cloud := make(Cloud, len(positions))
	for i, pos := range positions {
		p := Point3{Pos: pos}
		if attachNormals {
			p.Normal = normals[i]
			p.HasNormal = true
		}
		if attachTex {
			p.TexU = texcoords[i][0]
			p.TexV = texcoords[i][1]
			p.HasTex = true
		}
		cloud[i] = p
	}
	return cloud, nil
}

func parseVec3(tokens []string) (Vec3, error) {
	var v Vec3
	var err error
	if v.X, err = strconv.ParseFloat(tokens[0], 64); err != nil {
		return v, fmt.Errorf("malformed coordinate %q", tokens[0])
	}
	if v.Y, err = strconv.ParseFloat(tokens[1], 64); err != nil {
		return v, fmt.Errorf("malformed coordinate %q", tokens[1])
	}
	if v.Z, err = strconv.ParseFloat(tokens[2], 64); err != nil {
		return v, fmt.Errorf("malformed coordinate %q", tokens[2])
	}
	return v, nil
}

// WriteObj writes the cloud as a Wavefront OBJ vertex list, including vn
// and vt lines when every point carries those attributes.
func WriteObj(path string, c Cloud) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating obj file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	withNormals := len(c) > 0
	withTex := len(c) > 0
	for _, p := range c {
		withNormals = withNormals && p.HasNormal
		withTex = withTex && p.HasTex
	}
	for _, p := range c {
		if _, err := fmt.Fprintf(w, "v %g %g %g\n", p.Pos.X, p.Pos.Y, p.Pos.Z); err != nil {
			return fmt.Errorf("writing obj vertex: %w", err)
		}
	}
	if withNormals {
		for _, p := range c {
			fmt.Fprintf(w, "vn %g %g %g\n", p.Normal.X, p.Normal.Y, p.Normal.Z)
		}
	}
	if withTex {
		for _, p := range c {
			fmt.Fprintf(w, "vt %g %g\n", p.TexU, p.TexV)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing obj file: %w", err)
	}
	return nil
}

// ReadCloud dispatches on the file extension: .ply and .obj are supported,
// matching the formats the scanning repositories ship.
func ReadCloud(path string) (Cloud, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ply":
		return ReadPly(path)
	case ".obj":
		return ReadObj(path)
	default:
		return nil, fmt.Errorf("unsupported cloud format %q (want .ply or .obj)", filepath.Ext(path))
	}
}

// WriteCloud is the writing counterpart of ReadCloud.
func WriteCloud(path string, c Cloud) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ply":
		return WritePly(path, c)
	case ".obj":
		return WriteObj(path, c)
	default:
		return fmt.Errorf("unsupported cloud format %q (want .ply or .obj)", filepath.Ext(path))
	}
}
