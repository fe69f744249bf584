package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ua-proxy-go/internal/adapters"
	"github.com/ua-proxy-go/internal/i18n"
	"github.com/ua-proxy-go/internal/models"
)

const visionInstruction = "Describe this image in detail."

// handleVision captions the image with the vision model, then re-asks the
// thinking model with the caption folded into the system prompt, streaming
// the answer back through the adapter's endpoint.
func (h *Handler) handleVision(w http.ResponseWriter, r *http.Request, adapter adapters.Adapter, parsed *models.ParsedQuestion, systemPrompt string, log *logrus.Entry) {
	ctx := r.Context()
	log.Info("Entering vision branch")

	start := time.Now()
	description, err := h.ai.GenerateVision(ctx, visionInstruction, []string{parsed.ImageBase64})
	if err != nil {
		h.metrics.RecordBackendCall("vision", "error", time.Since(start))
		h.metrics.RecordRequest(adapter.Name(), "vision", "error")
		writeError(w, log, ErrVisionModel, h.msg(i18n.MsgVisionModelError, err), http.StatusBadGateway)
		return
	}
	h.metrics.RecordBackendCall("vision", "ok", time.Since(start))
	if description == "" {
		description = "Could not get a description."
	}

	messages := []models.Message{
		{Role: "system", Content: fmt.Sprintf("%s\n\nImage Description: '%s'.", systemPrompt, description)},
		{Role: "user", Content: parsed.RawPrompt},
	}
	payload := map[string]interface{}{
		"model":    h.ai.ThinkingModel(),
		"messages": messages,
		"stream":   true,
	}

	resp, err := h.ai.StreamPost(ctx, adapter.FinalStreamEndpoint(), payload)
	if err != nil {
		h.metrics.RecordRequest(adapter.Name(), "vision", "error")
		writeError(w, log, ErrThinkingModel, h.msg(i18n.MsgThinkingModelErr, err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	log.Info("Relaying vision-grounded response")
	relayStream(w, resp)
	h.metrics.RecordRequest(adapter.Name(), "vision", "ok")
}
