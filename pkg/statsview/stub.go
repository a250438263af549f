//go:build !statsview

package statsview

import (
	"fmt"
	"io"
)

// Launch reports that the binary was built without statistics support.
func Launch(output io.Writer) {
	fmt.Fprintf(output, "stats server not available, rebuild with -tags statsview\n")
}

// Available returns true if a statsview is available to launch.
func Available() bool {
	return false
}
