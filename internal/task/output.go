package task

import (
	"fmt"
	"io"
)

// SetVariable writes the Azure Pipelines logging command that exposes value
// to downstream steps under the given variable name.
func SetVariable(w io.Writer, variable, value string) {
	fmt.Fprintf(w, "##vso[task.setvariable variable=%s;]%s\n", variable, value)
}
