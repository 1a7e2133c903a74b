package scene

import (
	"testing"

	"github.com/Faultbox/fitme-ar/internal/engine/model"
	"github.com/Faultbox/fitme-ar/pkg/math"
)

func cube(min, max [3]float32) *model.Mesh {
	var verts []model.Vertex
	for _, x := range []float32{min[0], max[0]} {
		for _, y := range []float32{min[1], max[1]} {
			for _, z := range []float32{min[2], max[2]} {
				verts = append(verts, model.Vertex{Position: [3]float32{x, y, z}})
			}
		}
	}
	return &model.Mesh{Vertices: verts, Indices: []uint32{0, 1, 2}}
}

func near(a, b float32) bool {
	d := a - b
	return d < 1e-3 && d > -1e-3
}

func TestBoundingBoxHierarchy(t *testing.T) {
	root := NewNode("asset")
	child := NewNode("body")
	child.Position = math.Vec3{X: 10}
	child.Scale = math.Vec3{X: 2, Y: 2, Z: 2}
	child.Meshes = []*model.Mesh{cube([3]float32{-1, 0, -1}, [3]float32{1, 1, 1})}
	root.Add(child)

	box := BoundingBox(root)
	if !near(box.Min.X, 8) || !near(box.Max.X, 12) {
		t.Errorf("unexpected X range [%v, %v]", box.Min.X, box.Max.X)
	}
	if !near(box.Min.Y, 0) || !near(box.Max.Y, 2) {
		t.Errorf("unexpected Y range [%v, %v]", box.Min.Y, box.Max.Y)
	}
}

func TestBoundingBoxUsesParentSpace(t *testing.T) {
	sc := New()
	holder := NewNode("holder")
	holder.Position = math.Vec3{Y: 100}
	sc.Add(holder)

	n := NewNode("mesh")
	n.Meshes = []*model.Mesh{cube([3]float32{0, 0, 0}, [3]float32{1, 1, 1})}
	holder.Add(n)

	box := BoundingBox(n)
	if !near(box.Min.Y, 100) || !near(box.Max.Y, 101) {
		t.Errorf("expected box in world space, got Y [%v, %v]", box.Min.Y, box.Max.Y)
	}
}

func TestBoundingBoxEmpty(t *testing.T) {
	if !BoundingBox(NewNode("empty")).IsEmpty() {
		t.Error("expected empty box for node without meshes")
	}
}

func TestBoundingBoxSkipsHidden(t *testing.T) {
	root := NewNode("root")
	hidden := NewNode("hidden")
	hidden.Visible = false
	hidden.Meshes = []*model.Mesh{cube([3]float32{0, 0, 0}, [3]float32{5, 5, 5})}
	root.Add(hidden)
	if !BoundingBox(root).IsEmpty() {
		t.Error("hidden nodes should not contribute to bounds")
	}
}

func TestAddReparents(t *testing.T) {
	a := NewNode("a")
	b := NewNode("b")
	c := NewNode("c")
	a.Add(c)
	b.Add(c)

	if len(a.Children) != 0 {
		t.Errorf("expected c detached from a, a has %d children", len(a.Children))
	}
	if c.Parent() != b {
		t.Error("expected c parented to b")
	}
	if b.Remove(c) != true || c.Parent() != nil {
		t.Error("expected Remove to detach c")
	}
	if b.Remove(c) {
		t.Error("second Remove should report false")
	}
}

func TestWorldMatrixExplicitMatrix(t *testing.T) {
	parent := NewNode("parent")
	parent.Position = math.Vec3{X: 1}
	child := NewNode("child")
	m := math.Translate(math.Vec3{Y: 2})
	child.Matrix = &m
	parent.Add(child)

	p := child.WorldMatrix().TransformVec3(math.Vec3{})
	if !near(p.X, 1) || !near(p.Y, 2) {
		t.Errorf("expected (1,2,0), got %+v", p)
	}
	if parent.Find("child") != child || parent.Find("missing") != nil {
		t.Error("Find returned wrong node")
	}
}

func TestNewSceneLights(t *testing.T) {
	sc := New()
	if sc.Ambient.Intensity != 0.7 {
		t.Errorf("expected ambient 0.7, got %v", sc.Ambient.Intensity)
	}
	if sc.Directional.Position != (math.Vec3{Y: 200, Z: 100}) {
		t.Errorf("unexpected key light position %+v", sc.Directional.Position)
	}
	d := sc.Directional.Direction()
	if !near(d.Length(), 1) {
		t.Errorf("light direction not normalized: %+v", d)
	}
}
