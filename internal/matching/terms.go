package matching

import "strings"

// DefaultStopWords are Portuguese function words that carry no identity in a title.
var DefaultStopWords = []string{
	"A", "O", "E", "UM", "UMA", "DE", "DO", "DA", "EM", "NO", "NA", "COM", "POR", "PARA", "SE",
	"SÃO", "AS", "OS", "DOS", "DAS", "NOS", "NAS", "PELO", "PELA", "PRA", "AO", "AOS", "QUE",
	"QUANDO", "COMO", "ONDE", "QUEM", "QUAL", "SEU", "SUA",
}

// DefaultBoilerplate are announcement terms that layouts add or drop around a project title.
var DefaultBoilerplate = []string{
	"EDITAL", "PROJETO", "BOLSA", "PROEX", "PIBEX", "EXTENSÃO", "PESQUISA", "SELEÇÃO",
	"BOLSISTA", "RESULTADO", "INSCRIÇÃO", "CLASSIFICAÇÃO", "CANDIDATO", "PROGRAMA", "ANO",
	"PUBLICO", "PRIVADO", "INSTITUCIONAL", "VOLUNTARIA",
}

// TermFilter builds project-title keys that keep only the semantic core of a title.
type TermFilter struct {
	drop map[string]struct{}
}

// NewTermFilter keys every configured word so accented entries match normalized tokens.
func NewTermFilter(stopWords, boilerplate []string) *TermFilter {
	drop := make(map[string]struct{}, len(stopWords)+len(boilerplate))
	for _, list := range [][]string{stopWords, boilerplate} {
		for _, w := range list {
			for _, token := range strings.Fields(Key(w)) {
				drop[token] = struct{}{}
			}
		}
	}
	return &TermFilter{drop: drop}
}

// DefaultTermFilter uses DefaultStopWords and DefaultBoilerplate.
func DefaultTermFilter() *TermFilter {
	return NewTermFilter(DefaultStopWords, DefaultBoilerplate)
}

// Key returns the filtered key of a project title.
func (f *TermFilter) Key(title string) string {
	tokens := f.Tokens(title)
	return strings.Join(tokens, " ")
}

// Tokens returns the filtered tokens of a project title in order.
func (f *TermFilter) Tokens(title string) []string {
	words := strings.Fields(Key(title))
	kept := words[:0]
	for _, w := range words {
		if _, skip := f.drop[w]; skip || isNumeric(w) {
			continue
		}
		kept = append(kept, w)
	}
	return kept
}
