package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/marcelocantos/pipe/internal/audit"
)

// RunAuditVerify checks the hash chain of the audit log at path.
func RunAuditVerify(w io.Writer, path string) int {
	n, err := audit.Verify(path)
	if err != nil {
		fmt.Fprintf(w, "audit verification FAILED: %v\n", err)
		return 1
	}
	fmt.Fprintf(w, "audit log integrity verified (%d entries)\n", n)
	return 0
}

// RunAuditTail prints the last n entries of the audit log at path.
func RunAuditTail(w io.Writer, path string, n int) int {
	entries, err := audit.Tail(path, n)
	if err != nil {
		fmt.Fprintf(w, "pipe audit: %v\n", err)
		return 1
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "no audit entries")
		return 0
	}
	for _, e := range entries {
		data, _ := json.MarshalIndent(e, "", "  ")
		fmt.Fprintf(w, "%s\n", data)
	}
	return 0
}
