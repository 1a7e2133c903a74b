package math

import "github.com/chewxy/math32"

// Box3 is an axis-aligned bounding box.
type Box3 struct {
	Min Vec3
	Max Vec3
}

// EmptyBox returns a box that contains nothing; expanding it by a point yields that point.
func EmptyBox() Box3 {
	inf := math32.Inf(1)
	return Box3{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

// IsEmpty reports whether the box has not been expanded by any point.
func (b Box3) IsEmpty() bool {
	return b.Max.X < b.Min.X || b.Max.Y < b.Min.Y || b.Max.Z < b.Min.Z
}

// ExpandByPoint grows the box to include p.
func (b Box3) ExpandByPoint(p Vec3) Box3 {
	return Box3{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Union returns the smallest box containing both boxes.
func (b Box3) Union(other Box3) Box3 {
	if other.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return other
	}
	return Box3{Min: b.Min.Min(other.Min), Max: b.Max.Max(other.Max)}
}

// Size returns the extent along each axis. An empty box has zero size.
func (b Box3) Size() Vec3 {
	if b.IsEmpty() {
		return Vec3{}
	}
	return b.Max.Sub(b.Min)
}

// Center returns the geometric center.
func (b Box3) Center() Vec3 {
	if b.IsEmpty() {
		return Vec3{}
	}
	return b.Min.Add(b.Max).Scale(0.5)
}

// Corners returns the eight corner points.
func (b Box3) Corners() [8]Vec3 {
	return [8]Vec3{
		{b.Min.X, b.Min.Y, b.Min.Z},
		{b.Max.X, b.Min.Y, b.Min.Z},
		{b.Max.X, b.Min.Y, b.Max.Z},
		{b.Min.X, b.Min.Y, b.Max.Z},
		{b.Min.X, b.Max.Y, b.Min.Z},
		{b.Max.X, b.Max.Y, b.Min.Z},
		{b.Max.X, b.Max.Y, b.Max.Z},
		{b.Min.X, b.Max.Y, b.Max.Z},
	}
}
