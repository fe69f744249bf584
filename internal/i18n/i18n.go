package i18n

import (
	"encoding/json"
	"fmt"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/ua-proxy-go/internal/config"
	"golang.org/x/text/language"
)

// Localizer manages internationalization
type Localizer struct {
	bundle          *goi18n.Bundle
	defaultLanguage string
	localizers      map[string]*goi18n.Localizer
}

// NewLocalizer creates a new localizer. Built-in defaults cover every message
// ID; files under configs/i18n override them when present.
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := goi18n.NewBundle(language.TraditionalChinese)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	registerDefaults(bundle)

	for _, lang := range cfg.Languages {
		// Translation files are optional; defaults apply when missing.
		_, _ = bundle.LoadMessageFile(fmt.Sprintf("configs/i18n/%s.json", lang))
	}

	langs := cfg.Languages
	if len(langs) == 0 {
		langs = []string{"en", "zh-TW"}
	}
	localizers := make(map[string]*goi18n.Localizer)
	for _, lang := range langs {
		localizers[lang] = goi18n.NewLocalizer(bundle, lang)
	}

	defaultLanguage := cfg.DefaultLanguage
	if defaultLanguage == "" {
		defaultLanguage = "zh-TW"
	}
	if _, ok := localizers[defaultLanguage]; !ok {
		localizers[defaultLanguage] = goi18n.NewLocalizer(bundle, defaultLanguage)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: defaultLanguage,
		localizers:      localizers,
	}, nil
}

// Get returns localized message
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&goi18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID // Fallback to message ID
	}

	return msg
}

// GetDefault returns the message in the configured default language.
func (l *Localizer) GetDefault(messageID string, data map[string]interface{}) string {
	return l.Get(l.defaultLanguage, messageID, data)
}

// Message IDs
const (
	MsgSearchApology     = "search_apology"
	MsgUnsupportedPath   = "unsupported_path"
	MsgAdapterError      = "adapter_error"
	MsgForwardingError   = "forwarding_error"
	MsgVisionModelError  = "vision_model_error"
	MsgThinkingModelErr  = "thinking_model_error"
	MsgRateLimitExceeded = "rate_limit_exceeded"
)

func registerDefaults(bundle *goi18n.Bundle) {
	en := []*goi18n.Message{
		{ID: MsgSearchApology, Other: "I searched the web, but the material I found does not appear closely related to your question. Please rephrase it or narrow it down, and I will try again."},
		{ID: MsgUnsupportedPath, Other: "Unsupported API path: {{.Path}}"},
		{ID: MsgAdapterError, Other: "Failed to parse client request: {{.Reason}}"},
		{ID: MsgForwardingError, Other: "Failed to forward request: {{.Reason}}"},
		{ID: MsgVisionModelError, Other: "Vision model call failed: {{.Reason}}"},
		{ID: MsgThinkingModelErr, Other: "Thinking model call failed: {{.Reason}}"},
		{ID: MsgRateLimitExceeded, Other: "Too many requests, please slow down."},
	}
	zhTW := []*goi18n.Message{
		{ID: MsgSearchApology, Other: "我進行了網路搜尋，但找到的資料似乎與您提出的問題關聯性不高。請換個方式描述或縮小範圍，我會再試一次。"},
		{ID: MsgUnsupportedPath, Other: "不支援的 API 路徑: {{.Path}}"},
		{ID: MsgAdapterError, Other: "適配器解析失敗: {{.Reason}}"},
		{ID: MsgForwardingError, Other: "請求轉發失敗: {{.Reason}}"},
		{ID: MsgVisionModelError, Other: "調用視覺模型出錯: {{.Reason}}"},
		{ID: MsgThinkingModelErr, Other: "調用思考模型出錯: {{.Reason}}"},
		{ID: MsgRateLimitExceeded, Other: "請求過於頻繁，請稍後再試。"},
	}

	if err := bundle.AddMessages(language.English, en...); err != nil {
		panic(err)
	}
	if err := bundle.AddMessages(language.TraditionalChinese, zhTW...); err != nil {
		panic(err)
	}
}
