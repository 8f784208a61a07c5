// Package answer turns retrieved chunks into a grounded LLM answer, with
// context budgeting and scope refusal.
package answer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"librag/internal/providers"
	"librag/internal/retrieval"
)

// OutsideScopeAnswer is returned when retrieval produced nothing to ground
// an answer on.
const OutsideScopeAnswer = "Sorry, this question is outside the scope of the selected library."

// DefaultSystemPrompt keeps the model inside the selected library's content.
const DefaultSystemPrompt = `You are a helpful assistant designed to answer user questions based on the content of a selected library of uploaded books (PDFs). Each library belongs to a specific subject domain (e.g., Engineering, Literature, Commerce) and contains parsed, embedded documents for semantic search. Your job is to: 1. Answer only using the content retrieved from the active library. 2. Refuse politely if a question falls outside the scope of the selected library or the content available. - Use the retrieved text chunks to answer questions accurately. - NEVER generate answers beyond the scope of the retrieved content. - If no relevant information is retrieved or the question is unrelated, respond with: "Sorry, this question is outside the scope of the selected library." - Use clear, academic, and helpful language. - If relevant, refer to the chapter or topic titles (if available in metadata). - Keep answers self-contained and easy to understand. - Do not hallucinate facts or cite books not currently selected. Your answers should always reflect only what the currently selected book library contains. Stay focused, helpful, and within bounds.`

// contextTokenBudget caps how much retrieved text goes into the prompt.
const contextTokenBudget = 3500

// EstimateTokens approximates token count as one token per four runes,
// never less than one.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

type Completer interface {
	Complete(ctx context.Context, messages []providers.ChatMessage, maxTokens int) (string, providers.ProviderInfo, error)
}

type Composer struct {
	llm          Completer
	systemPrompt string
}

func NewComposer(llm Completer) *Composer {
	return &Composer{llm: llm, systemPrompt: DefaultSystemPrompt}
}

// Answer is the composed result. Degraded is set when the LLM call failed
// and Text carries the fallback message instead of a real answer.
type Answer struct {
	Text     string
	Sources  []string
	Degraded bool
}

// Compose builds the prompt from the retrieved chunks and asks the LLM.
// With no chunks it refuses without calling the LLM at all. An LLM failure
// degrades to an apology carrying the provider error instead of failing the
// request.
func (c *Composer) Compose(ctx context.Context, question string, chunks []retrieval.Chunk, responseLength string) Answer {
	if len(chunks) == 0 {
		return Answer{Text: OutsideScopeAnswer, Sources: []string{}}
	}

	contextText := buildContext(diversifyByTOCTitle(chunks))
	systemPrompt, maxTokens := c.promptForLength(responseLength)

	messages := []providers.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf(
			"Based on the following context from the documents, please answer the question. If the answer is not in the context, please say so.\n\nContext:\n%s\n\nQuestion: %s",
			contextText, question)},
	}

	sources := collectSources(chunks)
	text, info, err := c.llm.Complete(ctx, messages, maxTokens)
	if err != nil {
		log.Error().Err(err).Msg("llm completion failed")
		return Answer{
			Text:     fmt.Sprintf("I'm having trouble connecting to the AI service. Error: %v", err),
			Sources:  sources,
			Degraded: true,
		}
	}
	log.Debug().Str("provider", info.Name).Str("model", info.Model).Msg("llm completion ok")
	return Answer{Text: text, Sources: sources}
}

// diversifyByTOCTitle prefers one chunk per distinct toc_title so the context
// spans chapters, then tops the list back up with the displaced chunks.
func diversifyByTOCTitle(chunks []retrieval.Chunk) []retrieval.Chunk {
	seen := make(map[string]bool)
	var picked, extra []retrieval.Chunk
	for _, c := range chunks {
		title := c.Metadata.TOCTitle()
		if title != "" && !seen[title] {
			picked = append(picked, c)
			seen[title] = true
		} else {
			extra = append(extra, c)
		}
	}
	if fill := 5 - len(picked); fill > 0 {
		if fill > len(extra) {
			fill = len(extra)
		}
		picked = append(picked, extra[:fill]...)
	}
	return picked
}

// buildContext groups chunks per document and renders them under the token
// budget, cutting off once the budget is hit.
func buildContext(chunks []retrieval.Chunk) string {
	var docOrder []string
	groups := make(map[string][]retrieval.Chunk)
	for _, c := range chunks {
		if _, ok := groups[c.DocumentName]; !ok {
			docOrder = append(docOrder, c.DocumentName)
		}
		groups[c.DocumentName] = append(groups[c.DocumentName], c)
	}

	var parts []string
	totalTokens := 0
	for _, name := range docOrder {
		var b strings.Builder
		fmt.Fprintf(&b, "=== DOCUMENT: %s ===\n", name)
		for _, c := range groups[name] {
			section := c.Metadata.TOCTitle()
			if section == "" {
				section = "Unknown"
			}
			chunkText := fmt.Sprintf("[Page %d, Section: %s]\n%s", c.PageNumber, section, c.Content)
			tokens := EstimateTokens(chunkText)
			if totalTokens+tokens > contextTokenBudget {
				break
			}
			b.WriteString(chunkText + "\n\n")
			totalTokens += tokens
		}
		parts = append(parts, b.String())
		if totalTokens >= contextTokenBudget {
			break
		}
	}
	return strings.Join(parts, "\n")
}

func (c *Composer) promptForLength(responseLength string) (string, int) {
	switch responseLength {
	case "short":
		return c.systemPrompt + "\n\nProvide a concise answer (2-3 sentences maximum). Focus on the most relevant information only.", 500
	case "long":
		return c.systemPrompt + "\n\nProvide a comprehensive answer with detailed explanations and examples from the documents. Include relevant context and connections between different parts of the documents.", 2000
	default:
		return c.systemPrompt + "\n\nProvide a balanced answer with sufficient detail to fully address the question while remaining focused and clear.", 1000
	}
}

// collectSources lists "document (Page N)" references, deduplicated in
// first-appearance order.
func collectSources(chunks []retrieval.Chunk) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ref := fmt.Sprintf("%s (Page %d)", c.DocumentName, c.PageNumber)
		if seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}
