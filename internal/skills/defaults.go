package skills

import (
	"embed"
	"io/fs"
)

//go:embed defaults
var defaultFiles embed.FS

// Builtin returns the skills compiled into the binary.
func Builtin() fs.FS {
	sub, err := fs.Sub(defaultFiles, "defaults")
	if err != nil {
		panic(err) // embedded path is fixed at compile time
	}
	return sub
}
