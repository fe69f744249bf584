package adapters

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryFind(t *testing.T) {
	registry := NewRegistry()

	t.Run("lobe chat path", func(t *testing.T) {
		adapter := registry.Find("api/chat")
		require.NotNil(t, adapter)
		require.Equal(t, "lobe_chat", adapter.Name())
	})

	t.Run("cherry studio path", func(t *testing.T) {
		adapter := registry.Find("v1/chat/completions")
		require.NotNil(t, adapter)
		require.Equal(t, "cherry_studio", adapter.Name())
	})

	t.Run("token as substring", func(t *testing.T) {
		adapter := registry.Find("some/prefix/v1/chat/completions")
		require.NotNil(t, adapter)
		require.Equal(t, "cherry_studio", adapter.Name())
	})

	t.Run("first registered wins on overlap", func(t *testing.T) {
		adapter := registry.Find("v1/api/chat/completions")
		require.NotNil(t, adapter)
		require.Equal(t, "lobe_chat", adapter.Name())
	})

	t.Run("unknown path", func(t *testing.T) {
		require.Nil(t, registry.Find("api/embeddings"))
	})
}

func TestLobeChatParse(t *testing.T) {
	adapter := &LobeChatAdapter{}

	t.Run("last user message wins", func(t *testing.T) {
		body := []byte(`{"messages":[
			{"role":"user","content":"first"},
			{"role":"assistant","content":"reply"},
			{"role":"user","content":"second"}
		]}`)
		parsed, err := adapter.Parse(body)
		require.NoError(t, err)
		require.Equal(t, "second", parsed.RawPrompt)
		require.Equal(t, "second", parsed.CoreQuestion)
		require.Empty(t, parsed.ImageBase64)
	})

	t.Run("image from message-level list", func(t *testing.T) {
		body := []byte(`{"messages":[
			{"role":"user","content":"what is this","images":["data:image/png;base64,AAAA"]}
		]}`)
		parsed, err := adapter.Parse(body)
		require.NoError(t, err)
		require.Equal(t, "AAAA", parsed.ImageBase64)
	})

	t.Run("bare base64 image kept as-is", func(t *testing.T) {
		body := []byte(`{"messages":[{"role":"user","content":"x","images":["BBBB"]}]}`)
		parsed, err := adapter.Parse(body)
		require.NoError(t, err)
		require.Equal(t, "BBBB", parsed.ImageBase64)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := adapter.Parse([]byte(`{"messages":`))
		require.Error(t, err)
	})
}

func TestCherryStudioParse(t *testing.T) {
	adapter := &CherryStudioAdapter{}

	t.Run("string content", func(t *testing.T) {
		body := []byte(`{"messages":[{"role":"user","content":"plain question"}]}`)
		parsed, err := adapter.Parse(body)
		require.NoError(t, err)
		require.Equal(t, "plain question", parsed.RawPrompt)
	})

	t.Run("typed content parts", func(t *testing.T) {
		body := []byte(`{"messages":[{"role":"user","content":[
			{"type":"text","text":"describe the image"},
			{"type":"image_url","image_url":{"url":"data:image/jpeg;base64,CCCC"}}
		]}]}`)
		parsed, err := adapter.Parse(body)
		require.NoError(t, err)
		require.Equal(t, "describe the image", parsed.RawPrompt)
		require.Equal(t, "CCCC", parsed.ImageBase64)
	})

	t.Run("first text part wins", func(t *testing.T) {
		body := []byte(`{"messages":[{"role":"user","content":[
			{"type":"text","text":"first"},
			{"type":"text","text":"second"}
		]}]}`)
		parsed, err := adapter.Parse(body)
		require.NoError(t, err)
		require.Equal(t, "first", parsed.RawPrompt)
	})
}

func TestExtractCoreQuestion(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{"plain text untouched", "what is Go", "what is Go"},
		{"english marker stripped", "Some preamble. My question is: what is Go", "what is Go"},
		{"chinese marker stripped", "前言。我的問題是：Go 是什麼", "Go 是什麼"},
		{"repeated markers stripped", "My question is: My question is: what is Go", "what is Go"},
		{"marker only falls back", "My question is:", "My question is:"},
		{"whitespace trimmed", "  hello  ", "hello"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ExtractCoreQuestion(tc.prompt))
		})
	}

	t.Run("idempotent", func(t *testing.T) {
		once := ExtractCoreQuestion("My question is: what is Go")
		require.Equal(t, once, ExtractCoreQuestion(once))
	})

	t.Run("mainText unwrap", func(t *testing.T) {
		prompt := `[{"role":"user","mainText":"My question is: unwrapped"}]`
		require.Equal(t, "unwrapped", ExtractCoreQuestion(prompt))
	})

	t.Run("non-user mainText ignored", func(t *testing.T) {
		prompt := `[{"role":"system","mainText":"nope"}]`
		require.Equal(t, prompt, ExtractCoreQuestion(prompt))
	})
}

func TestApologyBody(t *testing.T) {
	t.Run("lobe chat ndjson framing", func(t *testing.T) {
		contentType, body := (&LobeChatAdapter{}).ApologyBody("sorry")
		require.Equal(t, "application/x-ndjson", contentType)

		lines := strings.Split(strings.TrimSpace(string(body)), "\n")
		require.Len(t, lines, 2)
		require.Contains(t, lines[0], `"sorry"`)
		require.Contains(t, lines[0], `"done":false`)
		require.Contains(t, lines[1], `"done":true`)
	})

	t.Run("cherry studio sse framing", func(t *testing.T) {
		contentType, body := (&CherryStudioAdapter{}).ApologyBody("sorry")
		require.Equal(t, "text/event-stream", contentType)

		text := string(body)
		require.True(t, strings.HasPrefix(text, "data: "))
		require.Contains(t, text, `"sorry"`)
		require.Contains(t, text, "data: [DONE]")
	})
}
