package adapters

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ua-proxy-go/internal/models"
)

// Adapter parses one client family's payload shape into a normalized
// question/image pair and knows which backend route that family expects.
type Adapter interface {
	Name() string
	Parse(body []byte) (*models.ParsedQuestion, error)
	FinalStreamEndpoint() string
	// ApologyBody renders a locally synthesized assistant reply in the
	// family's native streaming framing.
	ApologyBody(text string) (contentType string, body []byte)
}

type registryEntry struct {
	pathToken string
	adapter   Adapter
}

// Registry holds adapters in registration order. Lookup is a substring
// match over the request sub-path; the first registered match wins.
type Registry struct {
	entries []registryEntry
}

// NewRegistry builds the default registry. Order is significant.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register("api/chat", &LobeChatAdapter{})
	r.Register("v1/chat/completions", &CherryStudioAdapter{})
	return r
}

// Register appends an adapter bound to a path token.
func (r *Registry) Register(pathToken string, adapter Adapter) {
	r.entries = append(r.entries, registryEntry{pathToken: pathToken, adapter: adapter})
}

// Find returns the first adapter whose token occurs in subpath, or nil.
func (r *Registry) Find(subpath string) Adapter {
	for _, e := range r.entries {
		if strings.Contains(subpath, e.pathToken) {
			return e.adapter
		}
	}
	return nil
}

// Tokens returns the registered path tokens in order.
func (r *Registry) Tokens() []string {
	tokens := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		tokens = append(tokens, e.pathToken)
	}
	return tokens
}

// clientMessage is the common inbound message shape. Content stays raw
// because clients send either a plain string or a list of typed parts.
type clientMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Images  []string        `json:"images"`
}

type clientRequest struct {
	Messages []clientMessage `json:"messages"`
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

// stripDataURI drops a data-URI prefix, keeping only the base64 payload.
func stripDataURI(data string) string {
	if idx := strings.Index(data, ","); idx >= 0 {
		return data[idx+1:]
	}
	return data
}

// LobeChatAdapter handles generate-chat style clients whose last user turn
// is a plain string and whose images ride in a message-level list.
type LobeChatAdapter struct{}

func (a *LobeChatAdapter) Name() string { return "lobe_chat" }

func (a *LobeChatAdapter) FinalStreamEndpoint() string { return "/api/chat" }

func (a *LobeChatAdapter) Parse(body []byte) (*models.ParsedQuestion, error) {
	var req clientRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("invalid chat payload: %w", err)
	}

	var prompt string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		msg := req.Messages[i]
		if msg.Role != "user" {
			continue
		}
		var s string
		if err := json.Unmarshal(msg.Content, &s); err == nil {
			prompt = s
			break
		}
	}

	var image string
	for _, msg := range req.Messages {
		if msg.Role != "user" || len(msg.Images) == 0 {
			continue
		}
		image = stripDataURI(msg.Images[0])
		break
	}

	return &models.ParsedQuestion{
		RawPrompt:    prompt,
		CoreQuestion: ExtractCoreQuestion(prompt),
		ImageBase64:  image,
	}, nil
}

func (a *LobeChatAdapter) ApologyBody(text string) (string, []byte) {
	chunk := struct {
		Message models.Message `json:"message"`
		Done    bool           `json:"done"`
	}{
		Message: models.Message{Role: "assistant", Content: text},
		Done:    false,
	}
	final := struct {
		Message models.Message `json:"message"`
		Done    bool           `json:"done"`
	}{
		Message: models.Message{Role: "assistant", Content: ""},
		Done:    true,
	}

	var b strings.Builder
	first, _ := json.Marshal(chunk)
	last, _ := json.Marshal(final)
	b.Write(first)
	b.WriteByte('\n')
	b.Write(last)
	b.WriteByte('\n')
	return "application/x-ndjson", []byte(b.String())
}

// CherryStudioAdapter handles OpenAI-compatible clients whose message
// content may be a list of typed text/image_url parts.
type CherryStudioAdapter struct{}

func (a *CherryStudioAdapter) Name() string { return "cherry_studio" }

func (a *CherryStudioAdapter) FinalStreamEndpoint() string { return "/v1/chat/completions" }

func (a *CherryStudioAdapter) Parse(body []byte) (*models.ParsedQuestion, error) {
	var req clientRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("invalid chat payload: %w", err)
	}

	var prompt, image string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		msg := req.Messages[i]
		if msg.Role != "user" {
			continue
		}

		var s string
		if err := json.Unmarshal(msg.Content, &s); err == nil {
			prompt = s
		} else {
			var parts []contentPart
			if err := json.Unmarshal(msg.Content, &parts); err == nil {
				for _, part := range parts {
					switch part.Type {
					case "text":
						if prompt == "" {
							prompt = part.Text
						}
					case "image_url":
						if image == "" {
							image = stripDataURI(part.ImageURL.URL)
						}
					}
				}
			}
		}

		if prompt != "" {
			break
		}
	}

	return &models.ParsedQuestion{
		RawPrompt:    prompt,
		CoreQuestion: ExtractCoreQuestion(prompt),
		ImageBase64:  image,
	}, nil
}

func (a *CherryStudioAdapter) ApologyBody(text string) (string, []byte) {
	chunk := struct {
		Choices []struct {
			Delta models.Message `json:"delta"`
		} `json:"choices"`
	}{
		Choices: []struct {
			Delta models.Message `json:"delta"`
		}{{Delta: models.Message{Role: "assistant", Content: text}}},
	}

	payload, _ := json.Marshal(chunk)
	var b strings.Builder
	b.WriteString("data: ")
	b.Write(payload)
	b.WriteString("\n\n")
	b.WriteString("data: [DONE]\n\n")
	return "text/event-stream", []byte(b.String())
}
