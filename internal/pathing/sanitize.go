// internal/pathing/sanitize.go
package pathing

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// illegalChars are characters not allowed in filenames on common filesystems,
// plus ASCII control bytes.
var illegalChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// SanitizeComponent makes a single path component safe for the target
// filesystem. Illegal characters are replaced with "_" rather than stripped,
// and leading/trailing spaces and dots are trimmed. The operation is
// idempotent.
func SanitizeComponent(name string) string {
	name = norm.NFC.String(name)
	name = illegalChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, " .")
	return name
}
