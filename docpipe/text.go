package docpipe

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// extractText decodes plain text bytes. The content must be valid UTF-8;
// a UTF-8 BOM is tolerated and stripped.
func extractText(data []byte) (string, error) {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: invalid UTF-8 encoding", ErrParseFailure)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n"), nil
}
