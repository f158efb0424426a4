package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ScholarshipScanner/internal/config"
	"ScholarshipScanner/internal/domain"
	"ScholarshipScanner/internal/extraction"
	"ScholarshipScanner/internal/ports"
)

// Texts shorter than this carry no table or project.
const minTextChars = 100

type completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Extractor implements ports.Extractor with prompt-driven JSON extraction.
type Extractor struct {
	chat        completer
	maxAttempts int
	pause       time.Duration
	chunkChars  int
	logger      *slog.Logger
}

var _ ports.Extractor = (*Extractor)(nil)

// NewExtractor wires a chat completer with retry and pacing settings.
func NewExtractor(chat completer, cfg config.LLMConfig, logger *slog.Logger) *Extractor {
	e := &Extractor{
		chat:        chat,
		maxAttempts: cfg.MaxAttempts,
		pause:       cfg.Pause,
		chunkChars:  cfg.ChunkChars,
		logger:      logger,
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = 1
	}
	if e.chunkChars <= 0 {
		e.chunkChars = 6000
	}
	return e
}

// ExtractApprovals reads result tables chunk by chunk. Chunks the model cannot turn
// into a usable table are skipped; running out of keys stops the document.
func (e *Extractor) ExtractApprovals(ctx context.Context, doc domain.Document) ([]domain.ApprovalDraft, error) {
	var drafts []domain.ApprovalDraft
	for i, chunk := range chunkText(doc.Text, e.chunkChars) {
		if i > 0 {
			if err := e.wait(ctx); err != nil {
				return drafts, err
			}
		}

		var table extraction.ResultTable
		if err := e.ask(ctx, resultPrompt(chunk), &table); err != nil {
			if errors.Is(err, ErrKeysExhausted) || ctx.Err() != nil {
				return drafts, fmt.Errorf("extract approvals from %s: %w", doc.Ref.URL, err)
			}
			e.warn("result chunk dropped", "url", doc.Ref.URL, "chunk", i+1, "error", err)
			continue
		}
		if len(table.Headers) == 0 {
			continue
		}

		rows, err := extraction.ApprovalsFromTable(table)
		if err != nil {
			e.warn("result table unusable", "url", doc.Ref.URL, "chunk", i+1, "error", err)
			continue
		}
		drafts = append(drafts, rows...)
	}

	e.debug("approvals extracted", "url", doc.Ref.URL, "count", len(drafts))
	return drafts, nil
}

// ExtractProjects asks for one project per block of the document.
func (e *Extractor) ExtractProjects(ctx context.Context, doc domain.Document) ([]domain.ProjectDraft, error) {
	if len(strings.TrimSpace(doc.Text)) < minTextChars {
		return nil, nil
	}

	blocks := extraction.SplitProjectBlocks(doc.Text)
	e.debug("project blocks found", "url", doc.Ref.URL, "blocks", len(blocks))

	var (
		projects []domain.ProjectDraft
		carry    extraction.SummaryCarry
	)
	for i, block := range blocks {
		if i > 0 {
			if err := e.wait(ctx); err != nil {
				return projects, err
			}
		}

		var p domain.ProjectDraft
		if err := e.ask(ctx, projectPrompt(block.Body), &p); err != nil {
			if errors.Is(err, ErrKeysExhausted) || ctx.Err() != nil {
				return projects, fmt.Errorf("extract projects from %s: %w", doc.Ref.URL, err)
			}
			e.warn("project block dropped", "url", doc.Ref.URL, "block", i+1, "error", err)
			continue
		}
		if len(p.Slots) == 0 || strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Advisor) == "" {
			e.warn("project block incomplete", "url", doc.Ref.URL, "block", i+1, "title", p.Title)
			continue
		}

		carry.Assign(&p, block.Summary)
		p.OrgUnit = doc.Ref.OrgUnit
		projects = append(projects, p)
	}
	return projects, nil
}

// ExtractDeadline asks for the registration deadline of a main document.
func (e *Extractor) ExtractDeadline(ctx context.Context, doc domain.Document) (*time.Time, error) {
	if len(strings.TrimSpace(doc.Text)) < minTextChars {
		return nil, nil
	}

	var answer struct {
		Deadline *string `json:"data_fim_inscricao"`
	}
	if err := e.ask(ctx, deadlinePrompt(doc.Text), &answer); err != nil {
		return nil, fmt.Errorf("extract deadline from %s: %w", doc.Ref.URL, err)
	}
	if answer.Deadline == nil {
		return nil, nil
	}

	deadline, ok := extraction.ParseBrazilianDate(*answer.Deadline)
	if !ok {
		return nil, fmt.Errorf("deadline %q: %w", *answer.Deadline, domain.ErrMalformed)
	}
	return deadline, nil
}

// ask sends prompt and decodes the JSON answer into v, retrying failed attempts.
func (e *Extractor) ask(ctx context.Context, prompt string, v any) error {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := e.wait(ctx); err != nil {
				return err
			}
		}

		answer, err := e.chat.Complete(ctx, prompt)
		if err != nil {
			if errors.Is(err, ErrKeysExhausted) {
				return err
			}
			lastErr = err
		} else if err := json.Unmarshal([]byte(extraction.StripCodeFence(answer)), v); err != nil {
			lastErr = fmt.Errorf("decode answer: %w: %w", domain.ErrMalformed, err)
		} else {
			return nil
		}
		e.debug("extraction attempt failed", "attempt", attempt, "of", e.maxAttempts, "error", lastErr)
	}
	return lastErr
}

func (e *Extractor) wait(ctx context.Context) error {
	if e.pause <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(e.pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// chunkText splits text on line boundaries into pieces of at most size characters.
// Pieces too short to hold a table are dropped.
func chunkText(text string, size int) []string {
	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if len(strings.TrimSpace(current.String())) >= minTextChars {
			chunks = append(chunks, strings.TrimSpace(current.String()))
		}
		current.Reset()
	}
	for _, line := range strings.Split(text, "\n") {
		if current.Len() > 0 && current.Len()+len(line)+1 > size {
			flush()
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	flush()
	return chunks
}

func (e *Extractor) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Extractor) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
