package experts

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/ua-proxy-go/internal/models"
	"github.com/ua-proxy-go/internal/services/ai"
)

// keywordExperts maps an expert name to the literal keywords that make it
// mandatory when they appear near the start of a question.
var keywordExperts = map[string][]string{
	"Writer":                    {"作家", "Writer"},
	"UX_UI_Developer":           {"使用者體驗", "介面開發者", "UX/UI", "UX_UI_Developer"},
	"Cyber_Security_Specialist": {"網路安全", "Cyber_Security_Specialist"},
	"Legal_Advisor":             {"法律顧問", "Legal_Advisor"},
	"Relationship_Coach":        {"關係教練", "Relationship_Coach"},
	"Philosopher":               {"哲學家", "Philosopher"},
	"Doctor":                    {"醫師", "醫學專家", "Doctor"},
	"Financial_Analyst":         {"財務分析師", "Financial_Analyst"},
}

// preselectScanBytes bounds the keyword scan to the head of the question.
const preselectScanBytes = 256

// Selector picks a weighted expert team for a question. The fallback chain
// never lets this stage fail the request: parsed model output, then the
// keyword pre-selection at Medium, then the Assistant at High.
type Selector struct {
	ai      *ai.Client
	catalog *Catalog
	logger  *logrus.Logger
}

// NewSelector creates an expert selector.
func NewSelector(aiClient *ai.Client, catalog *Catalog, logger *logrus.Logger) *Selector {
	return &Selector{ai: aiClient, catalog: catalog, logger: logger}
}

// Select returns the ordered expert team for the question. Search results,
// when present, contribute a context preview to the decision prompt.
func (s *Selector) Select(ctx context.Context, question string, results []models.SearchResult) []models.ExpertChoice {
	mandatory := s.preselect(question)
	s.logger.WithField("experts", mandatory).Info("Keyword pre-selection completed")

	prompt := s.buildDecisionPrompt(question, mandatory, results)
	response, err := s.ai.Generate(ctx, prompt, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Expert decision call failed, using fallback selection")
		return s.fallback(mandatory)
	}

	parsed := s.parseSelection(response)
	if len(parsed) == 0 {
		s.logger.WithField("response", strings.TrimSpace(response)).Warn("Expert decision unparseable, using fallback selection")
		return s.fallback(mandatory)
	}

	s.logger.WithField("experts", parsed).Info("Expert team selected")
	return parsed
}

// preselect scans the head of the question for mandatory experts. Order
// follows the catalog's sorted names so results are deterministic.
func (s *Selector) preselect(question string) []string {
	scanArea := question
	if len(scanArea) > preselectScanBytes {
		scanArea = scanArea[:preselectScanBytes]
	}
	scanArea = strings.ToLower(scanArea)

	var selected []string
	for _, name := range s.catalog.Names() {
		keywords, ok := keywordExperts[name]
		if !ok {
			continue
		}
		for _, keyword := range keywords {
			if strings.Contains(scanArea, strings.ToLower(keyword)) {
				selected = append(selected, name)
				break
			}
		}
	}
	return selected
}

func (s *Selector) buildDecisionPrompt(question string, mandatory []string, results []models.SearchResult) string {
	mandatorySet := make(map[string]bool, len(mandatory))
	for _, name := range mandatory {
		mandatorySet[name] = true
	}
	var remaining []string
	for _, name := range s.catalog.Names() {
		if !mandatorySet[name] {
			remaining = append(remaining, name)
		}
	}

	mandatoryText := "None"
	if len(mandatory) > 0 {
		mandatoryText = strings.Join(mandatory, ", ")
	}

	var preview strings.Builder
	if len(results) > 0 {
		preview.WriteString("### AVAILABLE INFORMATION PREVIEW ###\n")
		for i, result := range results {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&preview, "- Title %d: %s\n  Snippet: %s\n", i+1, result.Title, result.Snippet)
		}
		preview.WriteString("\n")
	}

	return fmt.Sprintf(
		"You are a strict and efficient Chief of Staff. Your task is to finalize an expert team.\n\n"+
			"**A pre-selection has already been made based on the user's explicit request. The following experts are MANDATORY for this task:**\n%s\n\n"+
			"**Your tasks are:**\n"+
			"1.  **Assign Influence Levels:** Assign an influence level (High, Medium, or Low) to all mandatory experts.\n"+
			"2.  **Select Additional Experts (if necessary):** Analyze the user's request to see if any OTHER experts are needed from the list below. Do NOT re-select the mandatory experts.\n"+
			"3.  **Combine and Finalize:** Create a single, final comma-separated list of all chosen experts and their influence levels.\n\n"+
			"### List of Additional Experts to Consider ###\n%s\n\n"+
			"%s### User Request ###\n\"%s\"\n\n"+
			"Your output MUST BE a single, comma-separated list of 'Expert (Influence)' pairs, including both the mandatory and any additional experts you selected.",
		mandatoryText, strings.Join(remaining, ", "), preview.String(), question)
}

// parseSelection applies the strict "Name (Influence)" grammar to the
// model's free-text reply. A pair is accepted only when the name exactly
// matches a catalog entry; anything else is dropped silently.
func (s *Selector) parseSelection(response string) []models.ExpertChoice {
	var choices []models.ExpertChoice
	for _, part := range strings.Split(response, ",") {
		part = strings.TrimSpace(part)
		open := strings.Index(part, "(")
		close := strings.Index(part, ")")
		if open < 0 || close < 0 || close < open {
			continue
		}

		name := strings.TrimSpace(part[:open])
		influence := normalizeInfluence(strings.TrimSpace(part[open+1 : close]))
		if name == "" || !s.catalog.Has(name) {
			continue
		}
		choices = append(choices, models.ExpertChoice{Name: name, Influence: influence})
	}
	return choices
}

func normalizeInfluence(raw string) string {
	switch strings.ToLower(raw) {
	case "high":
		return models.InfluenceHigh
	case "medium":
		return models.InfluenceMedium
	case "low":
		return models.InfluenceLow
	default:
		return raw
	}
}

func (s *Selector) fallback(mandatory []string) []models.ExpertChoice {
	if len(mandatory) > 0 {
		choices := make([]models.ExpertChoice, 0, len(mandatory))
		for _, name := range mandatory {
			choices = append(choices, models.ExpertChoice{Name: name, Influence: models.InfluenceMedium})
		}
		return choices
	}
	return []models.ExpertChoice{{Name: DefaultExpertName, Influence: models.InfluenceHigh}}
}
