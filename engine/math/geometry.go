package math

import "github.com/kevinpruvost/VenomEngine-sub001/engine/core"

// GenerateNormals writes face normals on every triangle of the list.
func GenerateNormals(vertices []Vertex3D, indices []uint32) {
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]

		edge1 := vertices[i1].Position.Sub(vertices[i0].Position)
		edge2 := vertices[i2].Position.Sub(vertices[i0].Position)
		normal := edge1.Cross(edge2).Normalized()

		// NOTE: face normals only, smoothing is a separate pass.
		vertices[i0].Normal = normal
		vertices[i1].Normal = normal
		vertices[i2].Normal = normal
	}
}

// GenerateTangents writes per triangle tangents. Triangles with degenerate
// texture coordinates keep their tangent.
func GenerateTangents(vertices []Vertex3D, indices []uint32) {
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]

		edge1 := vertices[i1].Position.Sub(vertices[i0].Position)
		edge2 := vertices[i2].Position.Sub(vertices[i0].Position)

		deltaU1 := vertices[i1].Texcoord.X - vertices[i0].Texcoord.X
		deltaV1 := vertices[i1].Texcoord.Y - vertices[i0].Texcoord.Y
		deltaU2 := vertices[i2].Texcoord.X - vertices[i0].Texcoord.X
		deltaV2 := vertices[i2].Texcoord.Y - vertices[i0].Texcoord.Y

		dividend := deltaU1*deltaV2 - deltaU2*deltaV1
		if dividend == 0 {
			continue
		}
		fc := 1.0 / dividend

		tangent := Vec3{
			fc * (deltaV2*edge1.X - deltaV1*edge2.X),
			fc * (deltaV2*edge1.Y - deltaV1*edge2.Y),
			fc * (deltaV2*edge1.Z - deltaV1*edge2.Z),
		}.Normalized()

		if deltaV1*deltaU2-deltaV2*deltaU1 < 0 {
			tangent = tangent.MulScalar(-1)
		}
		vertices[i0].Tangent = tangent
		vertices[i1].Tangent = tangent
		vertices[i2].Tangent = tangent
	}
}

func VertexEqual(vert0, vert1 Vertex3D) bool {
	return vert0.Position.Compare(vert1.Position, FloatEpsilon) &&
		vert0.Normal.Compare(vert1.Normal, FloatEpsilon) &&
		vert0.Texcoord.Compare(vert1.Texcoord, FloatEpsilon) &&
		vert0.Colour.Compare(vert1.Colour, FloatEpsilon) &&
		vert0.Tangent.Compare(vert1.Tangent, FloatEpsilon)
}

// DeduplicateVertices merges equal vertices and rewrites indices in place
// to point at the unique ones.
func DeduplicateVertices(vertices []Vertex3D, indices []uint32) []Vertex3D {
	unique := make([]Vertex3D, 0, len(vertices))
	remap := make([]uint32, len(vertices))

	for v := range vertices {
		found := -1
		for u := range unique {
			if VertexEqual(vertices[v], unique[u]) {
				found = u
				break
			}
		}
		if found < 0 {
			found = len(unique)
			unique = append(unique, vertices[v])
		}
		remap[v] = uint32(found)
	}
	for i, idx := range indices {
		core.Assert(int(idx) < len(vertices), "index %d out of %d vertices", idx, len(vertices))
		indices[i] = remap[idx]
	}

	if removed := len(vertices) - len(unique); removed > 0 {
		core.LogDebug("deduplicate vertices: removed %d vertices, orig/now %d/%d", removed, len(vertices), len(unique))
	}
	return unique
}
