package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/ua-proxy-go/internal/models"
	"github.com/ua-proxy-go/internal/quota"
	"github.com/ua-proxy-go/internal/services/ai"
)

// searchMarkers are the reserved tokens that flag a question for web
// augmentation. The canonical token comes first; the rest are localized
// aliases. Matching is a prefix check on the trimmed core question.
var searchMarkers = []string{
	"@websearch",
	"@網路搜尋",
	"@网络搜索",
}

const (
	deepDiveLimit       = 3
	minExtractChars     = 100
	maxSummarySource    = 4000
	queryPromptTemplate = "You are a search engine optimization expert. Convert the user's question into a concise, keyword-based search query. Output ONLY the query itself.\n\n### USER QUESTION ###\n\"%s\"\n\n### OPTIMIZED SEARCH QUERY ###"
	summaryTemplate     = "Please read the main content from '%s' and extract ONLY the key points relevant to: '%s'.\n\n--- WEBPAGE MAIN CONTENT ---\n%s\n\n--- RELEVANT KEY POINTS SUMMARY ---"
	verdictTemplate     = "You are a fact-checker. Determine if the provided CONTEXT contains enough information to directly answer the USER'S QUESTION. Answer ONLY with 'Yes' or 'No'.\n\n--- USER'S QUESTION ---\n%s\n\n--- CONTEXT ---\n%s\n\n--- VERDICT (Yes/No) ---"
)

// DetectMarker reports whether the core question starts with a search
// marker and returns the question text following it on the first line.
func DetectMarker(coreQuestion string) (string, bool) {
	trimmed := strings.TrimSpace(coreQuestion)
	for _, marker := range searchMarkers {
		if !strings.HasPrefix(trimmed, marker) {
			continue
		}
		firstLine := trimmed
		if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
			firstLine = firstLine[:idx]
		}
		question := strings.TrimSpace(strings.Replace(firstLine, marker, "", 1))
		return question, true
	}
	return "", false
}

// Augmenter runs the search side of the pipeline. Every step degrades to
// "no augmentation" on failure; nothing here ever fails the request.
type Augmenter struct {
	ai         *ai.Client
	search     *GoogleClient
	guard      *quota.Guard
	extractor  *Extractor
	maxResults int
	logger     *logrus.Logger
}

// NewAugmenter wires the augmentation pipeline.
func NewAugmenter(aiClient *ai.Client, searchClient *GoogleClient, guard *quota.Guard, extractor *Extractor, maxResults int, logger *logrus.Logger) *Augmenter {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Augmenter{
		ai:         aiClient,
		search:     searchClient,
		guard:      guard,
		extractor:  extractor,
		maxResults: maxResults,
		logger:     logger,
	}
}

// OptimizeQuery rewrites a question into a keyword query via the backend
// model, falling back to the question itself when the call fails.
func (a *Augmenter) OptimizeQuery(ctx context.Context, question string) string {
	prompt := fmt.Sprintf(queryPromptTemplate, question)
	response, err := a.ai.Generate(ctx, prompt, map[string]interface{}{"temperature": 0.0})
	if err != nil {
		a.logger.WithError(err).Warn("Query optimization failed, using original question")
		return question
	}

	optimized := strings.ReplaceAll(strings.TrimSpace(response), "\"", "")
	if optimized == "" {
		return question
	}
	a.logger.WithFields(logrus.Fields{
		"question": question,
		"query":    optimized,
	}).Info("Search query optimized")
	return optimized
}

// Search runs a quota-gated web search. Quota denial or any API error
// yields an empty result list.
func (a *Augmenter) Search(ctx context.Context, query string) []models.SearchResult {
	if !a.guard.TryConsume() {
		return nil
	}

	results, err := a.search.Search(ctx, query, a.maxResults)
	if err != nil {
		a.logger.WithError(err).Error("Web search failed")
		return nil
	}
	return results
}

// BuildContext assembles the context block: one source entry per result,
// plus deep-dive summaries for the leading results. A failure on one
// source never blocks the remaining sources.
func (a *Augmenter) BuildContext(ctx context.Context, results []models.SearchResult, question string) string {
	if len(results) == 0 {
		return ""
	}
	a.logger.WithField("results", len(results)).Info("Building search context")

	var b strings.Builder
	b.WriteString("--- CONTEXTUAL SOURCES ---\n")
	for i, result := range results {
		fmt.Fprintf(&b, "[Source %d]\nTitle: %s\nURL: %s\nContent Snippet: %s\n\n",
			i+1, result.Title, result.Link, result.Snippet)
	}

	var deepDive strings.Builder
	for i, result := range results {
		if i >= deepDiveLimit {
			break
		}
		if result.Link == "" {
			continue
		}

		entry := a.logger.WithFields(logrus.Fields{
			"source": i + 1,
			"url":    result.Link,
		})

		text, err := a.extractor.MainText(ctx, result.Link)
		if err != nil {
			entry.WithError(err).Warn("Deep dive fetch failed, skipping source")
			continue
		}
		if len(text) <= minExtractChars {
			entry.Warn("Extracted content too short, skipping source")
			continue
		}
		if len(text) > maxSummarySource {
			text = text[:maxSummarySource]
		}

		prompt := fmt.Sprintf(summaryTemplate, result.Title, question, text)
		summary, err := a.ai.Chat(ctx, []models.Message{{Role: "user", Content: prompt}})
		if err != nil {
			entry.WithError(err).Warn("Deep dive summarization failed, skipping source")
			continue
		}
		if summary == "" {
			continue
		}

		fmt.Fprintf(&deepDive, "[Deep Dive Summary for Source %d: %s]\n%s\n\n", i+1, result.Title, summary)
		entry.Info("Deep dive summary completed")
	}

	if deepDive.Len() > 0 {
		b.WriteString("--- DEEP DIVE SUMMARIES ---\n")
		b.WriteString(deepDive.String())
	}
	return b.String()
}

// IsRelevant asks the backend for a yes/no verdict on whether the context
// answers the question. Empty context and any call failure are both false.
func (a *Augmenter) IsRelevant(ctx context.Context, searchContext, question string) bool {
	if searchContext == "" {
		return false
	}

	prompt := fmt.Sprintf(verdictTemplate, question, searchContext)
	response, err := a.ai.Generate(ctx, prompt, map[string]interface{}{
		"temperature": 0.0,
		"top_p":       0.1,
	})
	if err != nil {
		a.logger.WithError(err).Error("Relevance check failed, treating context as irrelevant")
		return false
	}

	verdict := strings.ToLower(strings.TrimSpace(response))
	a.logger.WithField("verdict", verdict).Info("Relevance check completed")
	return strings.Contains(verdict, "yes")
}
