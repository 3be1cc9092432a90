// Package convocontext tracks what each session has been about, so
// prompts can stay coherent across turns: topics, detected infractions,
// statute articles cited by the assistant, and the most salient Q/A
// pairs.
package convocontext

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/vialy-app/vialy-api/internal/domain"
	"github.com/vialy-app/vialy-api/internal/observability"
	"github.com/vialy-app/vialy-api/internal/refdata"
)

const (
	maxSalientQuestions = 5
	maxKeyAnswers       = 10
	maxAnswerLength     = 500
	minAnswerLength     = 20
	// questions of 3 words or fewer are not considered substantial
	minQuestionWords = 4
)

// NoContextSentinel is returned by GetFormattedContext when nothing has
// been accumulated yet.
const NoContextSentinel = "Sin contexto previo."

// statutePatterns covers "Artículo N", "Articulo N", "Art. N" and bare
// "Art N", each with an optional letter-dot suffix like 131-D.4.
var statutePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bartículo\s+((?:\d+-)?(?:[A-F]\.)?\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)\barticulo\s+((?:\d+-)?(?:[A-F]\.)?\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)\bart\.\s*((?:\d+-)?(?:[A-F]\.)?\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)\bart\s+((?:\d+-)?(?:[A-F]\.)?\d+(?:\.\d+)?)`),
}

// Manager owns conversation contexts backed by a ContextStore.
type Manager struct {
	store domain.ContextStore
	now   func() time.Time
}

func NewManager(store domain.ContextStore) *Manager {
	return &Manager{
		store: store,
		now:   time.Now,
	}
}

// GetOrCreate loads the context for a session, creating an empty one if
// none exists yet.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID domain.SessionID) (*domain.ConversationContext, error) {
	c, err := m.store.GetContext(ctx, sessionID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, domain.ErrContextNotFound) {
		return nil, fmt.Errorf("loading context: %w", err)
	}

	c = &domain.ConversationContext{
		SessionID: sessionID,
		UpdatedAt: m.now(),
	}
	if err := m.store.SaveContext(ctx, c); err != nil {
		return nil, fmt.Errorf("creating context: %w", err)
	}
	return c, nil
}

// Update folds a completed turn into the session's context. All bounded
// lists are trimmed to their cap before the context is saved.
func (m *Manager) Update(ctx context.Context, sessionID domain.SessionID, userText, systemText string, category domain.Category) error {
	c, err := m.GetOrCreate(ctx, sessionID)
	if err != nil {
		return err
	}

	categoryLower := strings.ToLower(string(category))
	if !containsFold(c.Topics, categoryLower) {
		c.Topics = append(c.Topics, categoryLower)
	}

	for _, key := range refdata.DetectInfractions(userText) {
		if !containsFold(c.ViolationsMentioned, key) {
			c.ViolationsMentioned = append(c.ViolationsMentioned, key)
		}
	}

	for _, ref := range extractStatuteReferences(systemText) {
		if !containsFold(c.StatuteReferences, ref) {
			c.StatuteReferences = append(c.StatuteReferences, ref)
		}
	}

	if c.PrimaryTopic == "" {
		c.PrimaryTopic = category
	}

	if len(strings.Fields(userText)) >= minQuestionWords && !containsFold(c.SalientQuestions, userText) {
		c.SalientQuestions = append(c.SalientQuestions, userText)
		if len(c.SalientQuestions) > maxSalientQuestions {
			c.SalientQuestions = c.SalientQuestions[len(c.SalientQuestions)-maxSalientQuestions:]
		}
	}

	if len(systemText) > minAnswerLength {
		c.KeyAnswers = append(c.KeyAnswers, domain.KeyAnswer{
			Question:  userText,
			Answer:    truncate(systemText, maxAnswerLength),
			Category:  category,
			Timestamp: m.now(),
		})
		if len(c.KeyAnswers) > maxKeyAnswers {
			c.KeyAnswers = c.KeyAnswers[len(c.KeyAnswers)-maxKeyAnswers:]
		}
	}

	c.UpdatedAt = m.now()

	if err := m.store.SaveContext(ctx, c); err != nil {
		return fmt.Errorf("saving context: %w", err)
	}

	observability.LoggerFromContext(ctx).Debug("conversation context updated",
		"session_id", sessionID,
		"topics", len(c.Topics),
		"violations", len(c.ViolationsMentioned),
	)
	return nil
}

// GetFormattedContext renders the digest injected into prompts.
func (m *Manager) GetFormattedContext(ctx context.Context, sessionID domain.SessionID, maxItems int) string {
	c, err := m.store.GetContext(ctx, sessionID)
	if err != nil {
		return NoContextSentinel
	}
	if maxItems <= 0 {
		maxItems = 5
	}

	var parts []string

	if c.PrimaryTopic != "" {
		parts = append(parts, "📌 Tema Principal: "+string(c.PrimaryTopic))
	}
	if len(c.Topics) > 0 {
		parts = append(parts, "🏷️ Temas: "+strings.Join(c.Topics, ", "))
	}
	if len(c.ViolationsMentioned) > 0 {
		var names []string
		for _, key := range firstN(c.ViolationsMentioned, maxItems) {
			names = append(names, titleCase(strings.ReplaceAll(key, "_", " ")))
		}
		parts = append(parts, "⚠️ Infracciones Mencionadas: "+strings.Join(names, ", "))
	}
	if len(c.StatuteReferences) > 0 {
		parts = append(parts, "📜 Artículos: "+strings.Join(firstN(c.StatuteReferences, maxItems), ", "))
	}
	if len(c.SalientQuestions) > 0 {
		parts = append(parts, "❓ Preguntas Principales:")
		for _, q := range lastN(c.SalientQuestions, 3) {
			parts = append(parts, "  • "+q)
		}
	}

	if len(parts) == 0 {
		return NoContextSentinel
	}
	return strings.Join(parts, "\n")
}

// ShouldIncludeContext reports whether the digest is worth injecting:
// true once the session has at least one topic or detected infraction.
// This keeps noise off a session's first turn.
func (m *Manager) ShouldIncludeContext(ctx context.Context, sessionID domain.SessionID) bool {
	c, err := m.store.GetContext(ctx, sessionID)
	if err != nil {
		return false
	}
	return len(c.Topics) > 0 || len(c.ViolationsMentioned) > 0
}

// Clear drops the context for a session. Missing contexts are not an error.
func (m *Manager) Clear(ctx context.Context, sessionID domain.SessionID) error {
	err := m.store.DeleteContext(ctx, sessionID)
	if errors.Is(err, domain.ErrContextNotFound) {
		return nil
	}
	return err
}

// extractStatuteReferences finds article citations in an assistant
// reply, de-duplicated in order of first appearance.
func extractStatuteReferences(text string) []string {
	var refs []string
	for _, pattern := range statutePatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			if !containsFold(refs, match[1]) {
				refs = append(refs, match[1])
			}
		}
	}
	return refs
}

func containsFold(items []string, s string) bool {
	for _, item := range items {
		if strings.EqualFold(strings.TrimSpace(item), strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func lastN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}
