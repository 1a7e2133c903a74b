// Package shader provides OpenGL shader compilation utilities and the
// embedded GLSL programs.
package shader

import (
	"embed"
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
)

//go:embed shaders/*.vert shaders/*.frag
var sources embed.FS

// Source returns the embedded vertex and fragment source of program name.
func Source(name string) (vertex, fragment string, err error) {
	v, err := sources.ReadFile("shaders/" + name + ".vert")
	if err != nil {
		return "", "", fmt.Errorf("shader %q: %w", name, err)
	}
	f, err := sources.ReadFile("shaders/" + name + ".frag")
	if err != nil {
		return "", "", fmt.Errorf("shader %q: %w", name, err)
	}
	return string(v), string(f), nil
}

// Load compiles the embedded program name.
func Load(name string) (uint32, error) {
	v, f, err := Source(name)
	if err != nil {
		return 0, err
	}
	program, err := CompileProgram(v, f)
	if err != nil {
		return 0, fmt.Errorf("shader %q: %w", name, err)
	}
	return program, nil
}

// CompileProgram compiles vertex and fragment shaders and links them into a program.
func CompileProgram(vertexSrc, fragmentSrc string) (uint32, error) {
	vertShader, err := compileShader(vertexSrc, gl.VERTEX_SHADER, "vertex")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vertShader)

	fragShader, err := compileShader(fragmentSrc, gl.FRAGMENT_SHADER, "fragment")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fragShader)

	program := gl.CreateProgram()
	gl.AttachShader(program, vertShader)
	gl.AttachShader(program, fragShader)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetProgramInfoLog(program, logLen, nil, &log[0])
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("link: %s", string(log))
	}

	return program, nil
}

func compileShader(source string, shaderType uint32, name string) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetShaderInfoLog(shader, logLen, nil, &log[0])
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("%s shader: %s", name, string(log))
	}

	return shader, nil
}

// GetUniform returns the uniform location for the given name, or -1 if the
// uniform is not active.
func GetUniform(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
}
