package snapshot

import (
	"fmt"
	"strings"
)

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// Rebase inserts the mount segment immediately after the root slash of a
// backend path. The empty path addresses the whole workflow.
//
//	Rebase("activeWorkflow", "/nodes/n1") == "/activeWorkflow/nodes/n1"
//	Rebase("activeWorkflow", "")          == "/activeWorkflow"
func Rebase(mount, path string) (string, error) {
	prefix := "/" + pointerEscaper.Replace(mount)
	if path == "" {
		return prefix, nil
	}
	if !strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("path %q is not rooted", path)
	}
	return prefix + path, nil
}
