// Package extraction converts what the extractor reads out of documents into drafts.
package extraction

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"ScholarshipScanner/internal/domain"
)

// Cell is one table value; extractors emit numbers and strings interchangeably.
type Cell string

// UnmarshalJSON accepts any JSON scalar.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*c = ""
	case string:
		*c = Cell(t)
	case float64:
		*c = Cell(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		*c = Cell(strconv.FormatBool(t))
	default:
		return fmt.Errorf("unexpected cell %s", string(data))
	}
	return nil
}

// ResultTable is a result listing as returned by the extractor.
type ResultTable struct {
	Headers []string `json:"headers"`
	Rows    [][]Cell `json:"rows"`
}

var (
	advisorHeaders   = []string{"COORDENADOR", "ORIENTADOR"}
	candidateHeaders = []string{"CANDIDATO", "DISCENTE", "BOLSISTA", "NOME"}
	profileHeaders   = []string{"PERFIL", "Nº PERFIL"}
	placementHeaders = []string{"COLOCAÇÃO", "CLASSIFICAÇÃO"}
	projectHeaders   = []string{"PROJETO"}
)

// ApprovalsFromTable maps table columns by header alias and keeps approved rows.
// Reserve-list rows, rows with a non-numeric profile and short rows are dropped.
func ApprovalsFromTable(table ResultTable) ([]domain.ApprovalDraft, error) {
	headers := make([]string, len(table.Headers))
	for i, h := range table.Headers {
		headers[i] = strings.ToUpper(strings.TrimSpace(h))
	}

	advisor := column(headers, advisorHeaders)
	candidate := column(headers, candidateHeaders)
	profile := column(headers, profileHeaders)
	placement := column(headers, placementHeaders)
	project := column(headers, projectHeaders)

	indices := []int{advisor, candidate, profile, placement, project}
	if slices.Contains(indices, -1) {
		return nil, fmt.Errorf("map result columns %v: %w", headers, domain.ErrMalformed)
	}
	last := slices.Max(indices)

	var drafts []domain.ApprovalDraft
	for _, row := range table.Rows {
		if len(row) <= last {
			continue
		}
		if strings.Contains(strings.ToUpper(string(row[placement])), "RESERVA") {
			continue
		}
		code := strings.TrimSpace(string(row[profile]))
		if !isDigits(code) {
			continue
		}
		drafts = append(drafts, domain.ApprovalDraft{
			Advisor:      strings.TrimSpace(string(row[advisor])),
			ProjectTitle: strings.TrimSpace(string(row[project])),
			Profile:      domain.ProfileCode(code),
			Candidate:    strings.TrimSpace(string(row[candidate])),
		})
	}
	return drafts, nil
}

func column(headers, aliases []string) int {
	for _, alias := range aliases {
		if i := slices.Index(headers, alias); i >= 0 {
			return i
		}
	}
	return -1
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
