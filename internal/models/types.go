package models

// Message is a single chat turn in the shape the backend expects.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ParsedQuestion is the adapter's normalized view of a client request.
type ParsedQuestion struct {
	RawPrompt    string // literal text of the last user turn
	CoreQuestion string // marker-stripped canonical question
	ImageBase64  string // empty when the request carries no image
}

// SearchResult is one item returned by the web search API, in rank order.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Influence levels an expert can be assigned. Lower rank sorts first.
const (
	InfluenceHigh   = "High"
	InfluenceMedium = "Medium"
	InfluenceLow    = "Low"
)

// InfluenceRank maps an influence label to its sort rank. Unknown labels
// sort last so malformed model output never displaces a valid lead.
func InfluenceRank(influence string) int {
	switch influence {
	case InfluenceHigh:
		return 0
	case InfluenceMedium:
		return 1
	case InfluenceLow:
		return 2
	default:
		return 99
	}
}

// ExpertChoice is one selected persona with its influence weight.
type ExpertChoice struct {
	Name      string
	Influence string
}

// QuotaState is the persisted daily counter for the search API.
type QuotaState struct {
	Count      int    `json:"count"`
	DailyLimit int    `json:"daily_limit"`
	ResetDate  string `json:"reset_date"` // YYYY-MM-DD
}
