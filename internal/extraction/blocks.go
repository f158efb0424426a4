package extraction

import (
	"regexp"
	"strings"

	"ScholarshipScanner/internal/domain"
)

var (
	blockMarker   = regexp.MustCompile(`(?i)PROGRAMA:|DADOS\s+DO(S)?\s+PROJETO(S)?`)
	summaryMarker = regexp.MustCompile(`(?is)^(.*?)(RESUMO.*)$`)
)

// programHeaderReach is how close a project header must follow a program header
// to be treated as part of the same block.
const programHeaderReach = 400

// Block is the text of one project inside an inscription document, with the
// summary section split off.
type Block struct {
	Body    string
	Summary string
}

// SplitProjectBlocks cuts document text at program and project headers.
func SplitProjectBlocks(text string) []Block {
	matches := blockMarker.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	starts := []int{matches[0][0]}
	for i := 0; i < len(matches)-1; i++ {
		cur, next := matches[i], matches[i+1]
		isProgram := strings.Contains(strings.ToUpper(text[cur[0]:cur[1]]), "PROGRAMA")
		isData := strings.Contains(strings.ToUpper(text[next[0]:next[1]]), "DADOS")
		if isProgram && isData && next[0]-cur[0] < programHeaderReach {
			continue
		}
		starts = append(starts, next[0])
	}

	blocks := make([]Block, 0, len(starts))
	for i, start := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		blocks = append(blocks, splitSummary(text[start:end]))
	}
	return blocks
}

func splitSummary(chunk string) Block {
	m := summaryMarker.FindStringSubmatch(chunk)
	if m == nil {
		return Block{Body: strings.TrimSpace(chunk)}
	}
	return Block{Body: strings.TrimSpace(m[1]), Summary: strings.TrimSpace(m[2])}
}

// SummaryCarry assigns summaries to projects in document order. Layouts print a
// project's summary after the next project header, so a block whose project already
// carries a summary hands the one it found to the following project.
type SummaryCarry struct {
	pending string
}

// Assign updates p with the summary that belongs to it.
func (c *SummaryCarry) Assign(p *domain.ProjectDraft, found string) {
	if c.pending != "" {
		p.Summary = cleanSummary(c.pending)
		c.pending = ""
	}
	switch {
	case found == "":
	case p.Summary != "":
		c.pending = found
	default:
		p.Summary = cleanSummary(found)
	}
}

func cleanSummary(s string) string {
	return strings.TrimSpace(strings.Replace(s, "RESUMO", "", 1))
}
