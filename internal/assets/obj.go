package assets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Faultbox/fitme-ar/internal/engine/model"
	"github.com/Faultbox/fitme-ar/internal/engine/scene"
)

// ParseOBJ reads a Wavefront OBJ stream. Each o/g group becomes a child
// node with one mesh; polygons are fan-triangulated.
func ParseOBJ(r io.Reader) (*scene.Node, error) {
	p := &objParser{}
	p.begin("default")

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if err := p.handle(fields); err != nil {
			return nil, fmt.Errorf("obj line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading obj: %w", err)
	}

	root := scene.NewNode("asset")
	for _, g := range p.groups {
		if len(g.mesh.Indices) == 0 {
			continue
		}
		if !g.hasNormals {
			g.mesh.ComputeNormals()
		}
		n := scene.NewNode(g.mesh.Name)
		n.Meshes = []*model.Mesh{g.mesh}
		root.Add(n)
	}
	if root.MeshCount() == 0 {
		return nil, errors.New("obj has no faces")
	}
	return root, nil
}

type objGroup struct {
	mesh       *model.Mesh
	remap      map[[3]int]uint32
	hasNormals bool
}

type objParser struct {
	positions [][3]float32
	normals   [][3]float32
	texCoords [][2]float32
	groups    []*objGroup
	cur       *objGroup
	material  string
}

func (p *objParser) begin(name string) {
	// Reuse an empty current group instead of leaving it behind.
	if p.cur != nil && len(p.cur.mesh.Indices) == 0 {
		p.cur.mesh.Name = name
		return
	}
	mat := model.DefaultMaterial()
	if p.material != "" {
		mat.Name = p.material
	}
	p.cur = &objGroup{
		mesh:  &model.Mesh{Name: name, Material: mat},
		remap: make(map[[3]int]uint32),
	}
	p.groups = append(p.groups, p.cur)
}

func (p *objParser) handle(fields []string) error {
	switch fields[0] {
	case "v":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		p.positions = append(p.positions, [3]float32{v[0], v[1], v[2]})
	case "vn":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		p.normals = append(p.normals, [3]float32{v[0], v[1], v[2]})
	case "vt":
		v, err := parseFloats(fields[1:], 2)
		if err != nil {
			return err
		}
		p.texCoords = append(p.texCoords, [2]float32{v[0], v[1]})
	case "o", "g":
		name := "group"
		if len(fields) > 1 {
			name = strings.Join(fields[1:], " ")
		}
		p.begin(name)
	case "usemtl":
		if len(fields) > 1 {
			p.material = fields[1]
			p.cur.mesh.Material.Name = fields[1]
		}
	case "f":
		return p.face(fields[1:])
	}
	// mtllib, s, l and others are ignored.
	return nil
}

func (p *objParser) face(refs []string) error {
	if len(refs) < 3 {
		return fmt.Errorf("face has %d vertices", len(refs))
	}
	idx := make([]uint32, len(refs))
	for i, ref := range refs {
		key, err := p.parseRef(ref)
		if err != nil {
			return err
		}
		idx[i] = p.vertex(key)
	}
	for i := 1; i+1 < len(idx); i++ {
		p.cur.mesh.Indices = append(p.cur.mesh.Indices, idx[0], idx[i], idx[i+1])
	}
	return nil
}

// parseRef resolves "v", "v/vt", "v//vn" or "v/vt/vn" into zero-based
// indices, -1 for absent components. Negative references count back from
// the most recent element.
func (p *objParser) parseRef(ref string) ([3]int, error) {
	key := [3]int{-1, -1, -1}
	parts := strings.Split(ref, "/")
	counts := [3]int{len(p.positions), len(p.texCoords), len(p.normals)}
	for i := 0; i < len(parts) && i < 3; i++ {
		if parts[i] == "" {
			continue
		}
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return key, fmt.Errorf("invalid face reference %q", ref)
		}
		switch {
		case n > 0:
			n--
		case n < 0:
			n += counts[i]
		default:
			return key, fmt.Errorf("zero index in face reference %q", ref)
		}
		if n < 0 || n >= counts[i] {
			return key, fmt.Errorf("face reference %q out of range", ref)
		}
		key[i] = n
	}
	if key[0] < 0 {
		return key, fmt.Errorf("face reference %q has no position", ref)
	}
	return key, nil
}

func (p *objParser) vertex(key [3]int) uint32 {
	g := p.cur
	if idx, ok := g.remap[key]; ok {
		return idx
	}
	v := model.Vertex{Position: p.positions[key[0]]}
	if key[1] >= 0 {
		v.TexCoord = p.texCoords[key[1]]
	}
	if key[2] >= 0 {
		v.Normal = p.normals[key[2]]
		g.hasNormals = true
	}
	idx := uint32(len(g.mesh.Vertices))
	g.mesh.Vertices = append(g.mesh.Vertices, v)
	g.remap[key] = idx
	return idx
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d components, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", fields[i])
		}
		out[i] = float32(f)
	}
	return out, nil
}
