package llm

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ScholarshipScanner/internal/config"
	"ScholarshipScanner/internal/domain"
)

type scriptedChat struct {
	mu      sync.Mutex
	answers []string
	errs    []error
	route   func(prompt string) string
	calls   int
}

func (s *scriptedChat) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if s.route != nil {
		return s.route(prompt), nil
	}
	if i < len(s.answers) {
		return s.answers[i], nil
	}
	return "", errors.New("no scripted answer")
}

func newTestExtractor(chat completer, attempts int) *Extractor {
	return NewExtractor(chat, config.LLMConfig{MaxAttempts: attempts}, nil)
}

func TestKeyRingForgetsPastHours(t *testing.T) {
	t.Parallel()

	ring := NewKeyRing([]string{"k1"}, 0, nil)
	now := time.Date(2025, 7, 1, 10, 30, 0, 0, time.UTC)
	ring.now = func() time.Time { return now }

	ring.Track(0)
	ring.Track(0)
	now = now.Add(time.Hour)
	assert.Equal(t, 1, ring.Track(0))
	assert.Len(t, ring.usage, 1)
	assert.Equal(t, map[int]int{0: 1}, ring.Usage())
}

func TestKeyRingRotatesAndCounts(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ring := NewKeyRing([]string{"k1", "k2"}, 2, slog.New(slog.NewTextHandler(&buf, nil)))
	ring.now = func() time.Time { return time.Date(2025, 7, 1, 10, 30, 0, 0, time.UTC) }

	key, index, err := ring.Current()
	require.NoError(t, err)
	assert.Equal(t, "k1", key)

	ring.Track(index)
	assert.Equal(t, 2, ring.Track(index))
	assert.Contains(t, buf.String(), "api key usage above threshold")

	assert.True(t, ring.Exhaust(0))
	assert.True(t, ring.Exhaust(0), "stale index must not skip a key")
	key, index, err = ring.Current()
	require.NoError(t, err)
	assert.Equal(t, "k2", key)
	ring.Track(index)

	assert.Equal(t, map[int]int{0: 2, 1: 1}, ring.Usage())

	assert.False(t, ring.Exhaust(1))
	_, _, err = ring.Current()
	assert.ErrorIs(t, err, ErrKeysExhausted)
}

func TestChatClientRotatesOnDailyQuota(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer k1":
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"Quota exceeded for metric GenerateRequestsPerDay"}}`))
		case "Bearer k2":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	ring := NewKeyRing([]string{"k1", "k2"}, 0, nil)
	client := NewChatClient(config.LLMConfig{Endpoint: server.URL, Model: "test-model"}, ring, nil)

	answer, err := client.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, answer)

	_, index, err := ring.Current()
	require.NoError(t, err)
	assert.Equal(t, 1, index)
}

func TestChatClientStopsWhenKeysRunOut(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`quota per day reached`))
	}))
	defer server.Close()

	client := NewChatClient(config.LLMConfig{Endpoint: server.URL, Model: "m"}, NewKeyRing([]string{"a", "b"}, 0, nil), nil)

	_, err := client.Complete(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrKeysExhausted)
}

func TestChatClientKeepsKeyOnRateLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`requests per minute exceeded`))
	}))
	defer server.Close()

	ring := NewKeyRing([]string{"a", "b"}, 0, nil)
	client := NewChatClient(config.LLMConfig{Endpoint: server.URL, Model: "m"}, ring, nil)

	_, err := client.Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrKeysExhausted)

	_, index, err := ring.Current()
	require.NoError(t, err)
	assert.Equal(t, 0, index)
}

func TestExtractApprovals(t *testing.T) {
	t.Parallel()

	chat := &scriptedChat{answers: []string{"```json\n" + `{
	  "headers": ["COORDENADOR", "PROJETO", "NOME", "COLOCAÇÃO", "PERFIL", "Nº VAGAS"],
	  "rows": [
	    ["Maria Cristina Gaglianone", "Trilhas das Abelhas", "Ana Souza", "1º Classificado", 1, 1],
	    ["Maria Cristina Gaglianone", "Trilhas das Abelhas", "Bruno Lima", "Cadastro Reserva", 1, 1]
	  ]
	}` + "\n```"}}

	doc := domain.Document{
		Ref:  domain.DocumentRef{URL: "http://portal/resultado.pdf"},
		Text: strings.Repeat("COORDENADOR PROJETO NOME COLOCAÇÃO PERFIL\n", 4),
	}

	drafts, err := newTestExtractor(chat, 1).ExtractApprovals(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "Ana Souza", drafts[0].Candidate)
	assert.Equal(t, domain.ProfileCode("1"), drafts[0].Profile)
}

func TestExtractApprovalsStopsOnExhaustedKeys(t *testing.T) {
	t.Parallel()

	chat := &scriptedChat{errs: []error{ErrKeysExhausted}}
	doc := domain.Document{Text: strings.Repeat("linha de resultado com texto suficiente\n", 5)}

	_, err := newTestExtractor(chat, 3).ExtractApprovals(context.Background(), doc)
	assert.ErrorIs(t, err, ErrKeysExhausted)
	assert.Equal(t, 1, chat.calls)
}

func TestExtractProjectsAssignsSummariesAndOrgUnit(t *testing.T) {
	t.Parallel()

	text := "DADOS DO PROJETO\nTítulo: Trilhas das Abelhas\nOrientador: Maria Cristina Gaglianone\n" +
		"RESUMO Polinizadores nativos em escolas.\n" +
		"DADOS DO PROJETO\nTítulo: Horta Escolar\nOrientador: José da Silva\n" +
		"DADOS DO PROJETO\nTítulo: Sem Vagas\nOrientador: Paulo Roberto Dias\n"

	chat := &scriptedChat{route: func(prompt string) string {
		switch {
		case strings.Contains(prompt, "Título: Trilhas das Abelhas"):
			return `{"project_title":"Trilhas das Abelhas","advisor":"Maria Cristina Gaglianone",
			  "slots":[{"type":"Bolsa Extensão","seats":2,"profile_number":1,"requirement":"Biologia","stipend":700}]}`
		case strings.Contains(prompt, "Título: Horta Escolar"):
			return "```json\n" + `{"project_title":"Horta Escolar","advisor":"José da Silva",
			  "slots":[{"type":"Bolsa UA","seats":1,"profile_number":"2","requirement":"","stipend":500.5}]}` + "\n```"
		default:
			return `{"project_title":"Sem Vagas","advisor":"Paulo Roberto Dias","slots":[]}`
		}
	}}

	doc := domain.Document{
		Ref:  domain.DocumentRef{URL: "http://portal/cbb.pdf", Role: domain.DocumentProject, OrgUnit: "cbb"},
		Text: text,
	}

	projects, err := newTestExtractor(chat, 1).ExtractProjects(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, projects, 2)

	assert.Equal(t, "Trilhas das Abelhas", projects[0].Title)
	assert.Equal(t, "Polinizadores nativos em escolas.", projects[0].Summary)
	assert.Equal(t, "cbb", projects[0].OrgUnit)
	assert.Equal(t, 2, projects[0].Slots[0].Seats)

	assert.Equal(t, "Horta Escolar", projects[1].Title)
	assert.Empty(t, projects[1].Summary)
	assert.Equal(t, domain.ProfileCode("2"), projects[1].Slots[0].Profile)
	assert.InDelta(t, 500.5, projects[1].Slots[0].Stipend, 0.001)
}

func TestExtractDeadline(t *testing.T) {
	t.Parallel()

	doc := domain.Document{Text: strings.Repeat("Cronograma: período de inscrição do edital. ", 4)}

	chat := &scriptedChat{answers: []string{"not json", `{"data_fim_inscricao": "15/03/2025"}`}}
	deadline, err := newTestExtractor(chat, 2).ExtractDeadline(context.Background(), doc)
	require.NoError(t, err)
	require.NotNil(t, deadline)
	assert.True(t, deadline.Equal(time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)))

	chat = &scriptedChat{answers: []string{`{"data_fim_inscricao": null}`}}
	deadline, err = newTestExtractor(chat, 1).ExtractDeadline(context.Background(), doc)
	require.NoError(t, err)
	assert.Nil(t, deadline)

	deadline, err = newTestExtractor(&scriptedChat{}, 1).ExtractDeadline(context.Background(), domain.Document{Text: "curto"})
	require.NoError(t, err)
	assert.Nil(t, deadline)
}

func TestExtractDeadlineRejectsBadDate(t *testing.T) {
	t.Parallel()

	doc := domain.Document{Text: strings.Repeat("Cronograma do edital de extensão. ", 5)}
	chat := &scriptedChat{answers: []string{`{"data_fim_inscricao": "março"}`}}

	_, err := newTestExtractor(chat, 1).ExtractDeadline(context.Background(), doc)
	assert.ErrorIs(t, err, domain.ErrMalformed)
}

func TestChunkText(t *testing.T) {
	t.Parallel()

	line := strings.Repeat("x", 60)
	text := strings.Join([]string{line, line, line, line, "tail"}, "\n")

	chunks := chunkText(text, 130)
	require.Len(t, chunks, 2)
	assert.Equal(t, line+"\n"+line, chunks[0])
	assert.Equal(t, line+"\n"+line+"\ntail", chunks[1])
}
