package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func quad() ([]Vertex3D, []uint32) {
	vertices := []Vertex3D{
		{Position: Vec3{0, 0, 0}, Texcoord: Vec2{0, 0}},
		{Position: Vec3{1, 0, 0}, Texcoord: Vec2{1, 0}},
		{Position: Vec3{0, 1, 0}, Texcoord: Vec2{0, 1}},
		{Position: Vec3{1, 0, 0}, Texcoord: Vec2{1, 0}},
		{Position: Vec3{1, 1, 0}, Texcoord: Vec2{1, 1}},
		{Position: Vec3{0, 1, 0}, Texcoord: Vec2{0, 1}},
	}
	return vertices, []uint32{0, 1, 2, 3, 4, 5}
}

func TestGenerateNormals(t *testing.T) {
	vertices, indices := quad()
	GenerateNormals(vertices, indices)
	for _, v := range vertices {
		assert.True(t, v.Normal.Compare(Vec3{0, 0, 1}, FloatEpsilon), "normal %v", v.Normal)
	}
}

func TestGenerateTangents(t *testing.T) {
	vertices, indices := quad()
	GenerateTangents(vertices, indices)
	// The handedness sign is folded into the tangent.
	for _, v := range vertices {
		assert.True(t, v.Tangent.Compare(Vec3{-1, 0, 0}, FloatEpsilon), "tangent %v", v.Tangent)
	}
}

func TestDeduplicateVertices(t *testing.T) {
	vertices, indices := quad()
	unique := DeduplicateVertices(vertices, indices)
	assert.Len(t, unique, 4)
	assert.Equal(t, []uint32{0, 1, 2, 1, 3, 2}, indices)
}

func TestNormalizedZero(t *testing.T) {
	assert.Equal(t, Vec3{}, Vec3{}.Normalized())
	assert.InDelta(t, 5, Vec3{3, 4, 0}.Length(), 1e-6)
}
