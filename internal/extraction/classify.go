package extraction

import (
	"strings"

	"ScholarshipScanner/internal/domain"
	"ScholarshipScanner/internal/matching"
)

var (
	programKeywords     = []string{"PROEX", "EXTENSAO"}
	resultKeywords      = []string{"RESULTADO", "CLASSIFICADOS", "CONVOCACAO"}
	inscriptionKeywords = []string{"INSCREVE", "INSCRICOES", "INSCRICAO", "SELETIVO", "SELECAO"}
	supportKeywords     = []string{"PROAC", "APOIO ACADEMICO"}
)

// IsProgramTitle reports whether a listing title belongs to the extension program.
func IsProgramTitle(title string) bool {
	return containsAny(matching.Key(title), programKeywords)
}

// ClassifyStage reads the stage from a title. Result wording wins over inscription wording.
func ClassifyStage(title string) (domain.Stage, bool) {
	key := matching.Key(title)
	switch {
	case containsAny(key, resultKeywords):
		return domain.StageResult, true
	case containsAny(key, inscriptionKeywords):
		return domain.StageInscription, true
	case strings.Contains(key, "ENTREVISTA"):
		return domain.StageInterview, true
	case strings.Contains(key, "HOMOLOGADAS"):
		return domain.StageHomologation, true
	}
	return "", false
}

// ClassifyModality separates academic-support calls; everything else is extension.
func ClassifyModality(title string) domain.Modality {
	if containsAny(matching.Key(title), supportKeywords) {
		return domain.ModalityAcademicSupport
	}
	return domain.ModalityExtension
}

func containsAny(key string, words []string) bool {
	for _, w := range words {
		if strings.Contains(key, w) {
			return true
		}
	}
	return false
}
