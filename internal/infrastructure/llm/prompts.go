package llm

import "fmt"

const resultPromptTemplate = `Extract the result table of this page of a scholarship result document (in Portuguese) as strict JSON.

Rules:
1. Answer with a single JSON object only. No explanation, no markdown.
2. The object has two keys: "headers" (list of strings) and "rows" (list of lists of strings).
3. When one entry, such as a long project title, spans several lines, join it into a single cell.
4. Extract every row that looks like part of the table, even with imperfect layout. Partial rows are better than missing rows.
5. Normalize headers to: "COORDENADOR", "PROJETO", "NOME", "COLOCAÇÃO", "PERFIL", "Nº VAGAS". For example "NOME DO BOLSISTA" or "NOME DISCENTE" becomes "NOME", "ORIENTADOR" becomes "COORDENADOR".
6. Scholarships named "Universidade Aberta" are "Bolsa UA", with three levels: médio, superior and fundamental.
7. When the page has no result table, answer {"headers": [], "rows": []}.

Example input:
COORDENADOR PROJETO NOME COLOCAÇÃO PERFIL Nº VAGAS
Gerson Adriano Silva
Entomologia Nas Escolas: Uso De Coleções
Entomológicas. Maria Luiza da Silva 1º Classificado 1 1

Example output:
{"headers": ["COORDENADOR", "PROJETO", "NOME", "COLOCAÇÃO", "PERFIL", "Nº VAGAS"],
 "rows": [["Gerson Adriano Silva", "Entomologia Nas Escolas: Uso De Coleções Entomológicas.", "Maria Luiza da Silva", "1º Classificado", "1", "1"]]}

Page text:
---
%s
---`

const projectPromptTemplate = `Extract the project described in this excerpt of a scholarship call (in Portuguese) as strict JSON.

Rules:
1. Answer with the JSON object only.
2. Schema:
   - "project_title" (string)
   - "advisor" (string)
   - "slots" (list of objects), each with:
     - "type" (string, the scholarship type)
     - "seats" (integer)
     - "profile_number" (integer)
     - "requirement" (string)
     - "stipend" (number)
3. Ignore any program coordinator or program name at the top of the text. Use only the project title and advisor tied to the scholarship details.
4. Scholarships named "Universidade Aberta" are "Bolsa UA", with three levels: médio, superior and fundamental.
5. "seats" and "profile_number" are integers, "stipend" is a number.

Example:
{"project_title": "Trilhas das Abelhas", "advisor": "Maria Cristina Gaglianone",
 "slots": [{"type": "Bolsa Extensão Discente UENF", "seats": 3, "profile_number": 1,
            "requirement": "Estar matriculado em curso de graduação na UENF em Ciências Biológicas...", "stipend": 700.00}]}

Text:
---
%s
---`

const deadlinePromptTemplate = `Read the scholarship call below (in Portuguese) and find the last day of registration.
Look for "Período de Inscrição" or "Cronograma".
Answer with a JSON object with the key "data_fim_inscricao" holding the date as "DD/MM/YYYY", or null.

Call text:
---
%s
---`

func resultPrompt(page string) string {
	return fmt.Sprintf(resultPromptTemplate, page)
}

func projectPrompt(block string) string {
	return fmt.Sprintf(projectPromptTemplate, block)
}

func deadlinePrompt(text string) string {
	return fmt.Sprintf(deadlinePromptTemplate, text)
}
