package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// sectionHeaderRe matches RFP section headers at line start: a "Section"
// keyword, an alphanumeric/dotted identifier ("C", "3.1", "L.2"), then a
// separator and a label. Example: "Section C: Performance Work Statement".
var sectionHeaderRe = regexp.MustCompile(`(?i)^(Section\s+[\w.]+)[\s:]+(.+)`)

// ChunkText splits normalized text into ordered chunks, one per non-blank
// line, tracking section headers as it scans. A header line updates the
// active section and subsection (the header's 1-based line number) and does
// not itself become a chunk. Blank lines are dropped.
func ChunkText(text string) []Chunk {
	lines := strings.Split(text, "\n")
	currentSection := "Unknown"
	currentSubsection := "0"

	var chunks []Chunk
	for lineNum, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := sectionHeaderRe.FindStringSubmatch(line); m != nil {
			currentSection = m[1]
			currentSubsection = strconv.Itoa(lineNum + 1)
			continue
		}

		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Text:       line,
			Section:    currentSection,
			Subsection: currentSubsection,
			Page:       1,
			Paragraph:  len(chunks) + 1,
		})
	}
	return chunks
}
