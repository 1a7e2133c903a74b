package assets

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// boxBuffer returns 8 corner positions followed by 36 uint16 indices.
func boxBuffer(min, max [3]float32) []byte {
	var buf bytes.Buffer
	for _, x := range []float32{min[0], max[0]} {
		for _, y := range []float32{min[1], max[1]} {
			for _, z := range []float32{min[2], max[2]} {
				for _, f := range []float32{x, y, z} {
					binary.Write(&buf, binary.LittleEndian, math.Float32bits(f))
				}
			}
		}
	}
	// Corner i has bits (x<<2 | y<<1 | z).
	faces := [][4]uint16{
		{0, 1, 3, 2}, {4, 6, 7, 5}, // -x, +x
		{0, 4, 5, 1}, {2, 3, 7, 6}, // -y, +y
		{0, 2, 6, 4}, {1, 5, 7, 3}, // -z, +z
	}
	for _, f := range faces {
		for _, i := range []uint16{f[0], f[1], f[2], f[0], f[2], f[3]} {
			binary.Write(&buf, binary.LittleEndian, i)
		}
	}
	return buf.Bytes()
}

func boxJSON(min, max [3]float32, uri string, node string) string {
	buffer := fmt.Sprintf(`{"byteLength":168}`)
	if uri != "" {
		buffer = fmt.Sprintf(`{"byteLength":168,"uri":%q}`, uri)
	}
	return fmt.Sprintf(`{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"nodes": [0]}],
  "nodes": [%s],
  "meshes": [{"name": "box", "primitives": [{"attributes": {"POSITION": 0}, "indices": 1, "material": 0}]}],
  "materials": [{"name": "cloth", "doubleSided": true, "pbrMetallicRoughness": {"baseColorFactor": [0.2, 0.4, 0.6, 1.0]}}],
  "buffers": [%s],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 96, "target": 34962},
    {"buffer": 0, "byteOffset": 96, "byteLength": 72, "target": 34963}
  ],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 8, "type": "VEC3", "min": [%g, %g, %g], "max": [%g, %g, %g]},
    {"bufferView": 1, "componentType": 5123, "count": 36, "type": "SCALAR"}
  ]
}`, node, buffer, min[0], min[1], min[2], max[0], max[1], max[2])
}

// boxGLTF returns a .gltf document with an embedded data URI buffer.
func boxGLTF(min, max [3]float32, node string) []byte {
	uri := "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(boxBuffer(min, max))
	return []byte(boxJSON(min, max, uri, node))
}

// boxGLB returns the same document packed as binary glTF.
func boxGLB(min, max [3]float32, node string) []byte {
	js := []byte(boxJSON(min, max, "", node))
	for len(js)%4 != 0 {
		js = append(js, ' ')
	}
	bin := boxBuffer(min, max)

	var out bytes.Buffer
	total := 12 + 8 + len(js) + 8 + len(bin)
	out.WriteString("glTF")
	binary.Write(&out, binary.LittleEndian, uint32(2))
	binary.Write(&out, binary.LittleEndian, uint32(total))
	binary.Write(&out, binary.LittleEndian, uint32(len(js)))
	binary.Write(&out, binary.LittleEndian, uint32(0x4E4F534A))
	out.Write(js)
	binary.Write(&out, binary.LittleEndian, uint32(len(bin)))
	binary.Write(&out, binary.LittleEndian, uint32(0x004E4942))
	out.Write(bin)
	return out.Bytes()
}

const plainNode = `{"name": "body", "mesh": 0}`
