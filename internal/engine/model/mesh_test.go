package model

import "testing"

func quad() *Mesh {
	return &Mesh{
		Vertices: []Vertex{
			{Position: [3]float32{-1, 0, 0}},
			{Position: [3]float32{1, 0, 0}},
			{Position: [3]float32{1, 2, 0}},
			{Position: [3]float32{-1, 2, 0}},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

func TestMeshBounds(t *testing.T) {
	b, ok := quad().Bounds()
	if !ok {
		t.Fatal("expected bounds for non-empty mesh")
	}
	if b.Min != [3]float32{-1, 0, 0} || b.Max != [3]float32{1, 2, 0} {
		t.Errorf("unexpected bounds %+v", b)
	}

	if _, ok := (&Mesh{}).Bounds(); ok {
		t.Error("expected no bounds for empty mesh")
	}
}

func TestMeshValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Mesh)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Mesh) {}},
		{name: "no indices", mutate: func(m *Mesh) { m.Indices = nil }, wantErr: true},
		{name: "partial triangle", mutate: func(m *Mesh) { m.Indices = m.Indices[:4] }, wantErr: true},
		{name: "out of range", mutate: func(m *Mesh) { m.Indices[5] = 9 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := quad()
			tt.mutate(m)
			if err := m.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestComputeNormals(t *testing.T) {
	m := quad()
	if m.HasNormals() {
		t.Fatal("quad starts without normals")
	}
	m.ComputeNormals()
	for i, v := range m.Vertices {
		if v.Normal != [3]float32{0, 0, 1} {
			t.Errorf("vertex %d: expected +Z normal, got %v", i, v.Normal)
		}
	}
	if !m.HasNormals() {
		t.Error("expected normals after ComputeNormals")
	}
}
