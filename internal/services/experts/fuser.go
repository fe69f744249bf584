package experts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ua-proxy-go/internal/models"
)

// Fuse merges the selected personas into one system prompt. The stable
// influence sort keeps the original relative order on ties; the top-ranked
// expert leads with its text verbatim and the rest become a consulting
// section subordinate to it.
func (c *Catalog) Fuse(selection []models.ExpertChoice) string {
	if len(selection) == 0 {
		text, _ := c.Get(DefaultExpertName)
		return text
	}

	sorted := make([]models.ExpertChoice, len(selection))
	copy(sorted, selection)
	sort.SliceStable(sorted, func(i, j int) bool {
		return models.InfluenceRank(sorted[i].Influence) < models.InfluenceRank(sorted[j].Influence)
	})

	leadText, _ := c.Get(sorted[0].Name)
	if len(sorted) == 1 {
		return leadText
	}

	var b strings.Builder
	b.WriteString(leadText)
	b.WriteString("\n### CONSULTING EXPERTS' PERSPECTIVES ###\nYou must incorporate the perspectives of:\n")
	for _, choice := range sorted[1:] {
		text, _ := c.Get(choice.Name)
		fmt.Fprintf(&b, "- **%s (Influence: %s)**: %s\n", choice.Name, choice.Influence, text)
	}
	return b.String()
}

// Lead returns the name of the expert that would lead the fused prompt.
func Lead(selection []models.ExpertChoice) string {
	if len(selection) == 0 {
		return DefaultExpertName
	}
	lead := selection[0]
	for _, choice := range selection[1:] {
		if models.InfluenceRank(choice.Influence) < models.InfluenceRank(lead.Influence) {
			lead = choice
		}
	}
	return lead.Name
}
