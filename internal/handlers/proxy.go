package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ua-proxy-go/internal/adapters"
	"github.com/ua-proxy-go/internal/i18n"
	"github.com/ua-proxy-go/internal/middleware"
	"github.com/ua-proxy-go/internal/models"
	"github.com/ua-proxy-go/internal/quota"
	"github.com/ua-proxy-go/internal/services/ai"
	"github.com/ua-proxy-go/internal/services/experts"
	"github.com/ua-proxy-go/internal/services/search"
	"github.com/ua-proxy-go/pkg/logger"
)

const citationInstruction = "**CRITICAL INSTRUCTIONS (You must follow BOTH):**\n" +
	"1.  **In-line Citations:** Cite the sources you rely on in-line as `[Source X]`.\n" +
	"2.  **Final Reference List:** End with a `References` (or `資料來源`) section listing every source you cited. The format MUST be exactly as follows:\n" +
	"    *   [Source 1] - Title of the first article (URL: the_full_url_here)"

// Handler orchestrates the request-classification pipeline.
type Handler struct {
	log           *logrus.Logger
	registry      *adapters.Registry
	ai            *ai.Client
	augmenter     *search.Augmenter
	selector      *experts.Selector
	catalog       *experts.Catalog
	guard         *quota.Guard
	limiter       middleware.RateLimiter
	localizer     *i18n.Localizer
	metrics       *middleware.Metrics
	forwardClient *http.Client
}

// NewHandler wires the orchestrator.
func NewHandler(
	log *logrus.Logger,
	registry *adapters.Registry,
	aiClient *ai.Client,
	augmenter *search.Augmenter,
	selector *experts.Selector,
	catalog *experts.Catalog,
	guard *quota.Guard,
	limiter middleware.RateLimiter,
	localizer *i18n.Localizer,
	metrics *middleware.Metrics,
	forwardTimeout time.Duration,
) *Handler {
	return &Handler{
		log:           log,
		registry:      registry,
		ai:            aiClient,
		augmenter:     augmenter,
		selector:      selector,
		catalog:       catalog,
		guard:         guard,
		limiter:       limiter,
		localizer:     localizer,
		metrics:       metrics,
		forwardClient: &http.Client{Timeout: forwardTimeout},
	}
}

// chatPathTokens identify the chat endpoints the pipeline intercepts.
var chatPathTokens = []string{"v1/chat/completions", "api/chat"}

func isChatPath(subpath string) bool {
	for _, token := range chatPathTokens {
		if strings.Contains(subpath, token) {
			return true
		}
	}
	return false
}

func (h *Handler) msg(id string, err error) string {
	var data map[string]interface{}
	if err != nil {
		data = map[string]interface{}{"Reason": err.Error()}
	}
	return h.localizer.GetDefault(id, data)
}

// Proxy is the catch-all entry point for POST and OPTIONS requests.
func (h *Handler) Proxy(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	subpath := strings.TrimPrefix(r.URL.Path, "/")
	log := logger.WithRequest(h.log, middleware.GetRequestID(r.Context()), subpath)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, log, ErrForwarding, h.msg(i18n.MsgForwardingError, err), http.StatusBadGateway)
		return
	}

	if r.Method != http.MethodPost || !isChatPath(subpath) {
		h.genericForward(w, r, subpath, body, log)
		return
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		writeError(w, log, ErrAdapter, h.msg(i18n.MsgAdapterError, err), http.StatusBadRequest)
		return
	}

	if streaming, _ := raw["stream"].(bool); !streaming {
		log.Info("Non-streamed request detected, bypassing pipeline")
		h.forwardBuffered(w, r, subpath, body, log)
		return
	}

	if !h.limiter.Allow(middleware.ClientKey(r)) {
		h.metrics.RecordRateLimited()
		writeError(w, log, ErrRateLimitExceeded, h.localizer.GetDefault(i18n.MsgRateLimitExceeded, nil), http.StatusTooManyRequests)
		return
	}

	adapter := h.registry.Find(subpath)
	if adapter == nil {
		writeError(w, log, ErrUnsupportedPath,
			h.localizer.GetDefault(i18n.MsgUnsupportedPath, map[string]interface{}{"Path": subpath}),
			http.StatusNotFound)
		return
	}
	log = log.WithField("adapter", adapter.Name())

	parsed, err := adapter.Parse(body)
	if err != nil {
		h.metrics.RecordRequest(adapter.Name(), "parse", "error")
		writeError(w, log, ErrAdapter, h.msg(i18n.MsgAdapterError, err), http.StatusBadRequest)
		return
	}
	log.WithField("question", truncate(parsed.CoreQuestion, 200)).Info("Core question extracted")

	ctx := r.Context()

	// Search branch. Entering it discards any carried image: search and
	// vision are mutually exclusive for the same request.
	originalQuestion := parsed.CoreQuestion
	var searchContext string
	var results []models.SearchResult

	if question, triggered := search.DetectMarker(parsed.CoreQuestion); triggered {
		parsed.ImageBase64 = ""
		if question != "" {
			originalQuestion = question
			query := h.augmenter.OptimizeQuery(ctx, question)
			results = h.augmenter.Search(ctx, query)
			if len(results) > 0 {
				h.metrics.RecordSearch("ok")
				searchContext = h.augmenter.BuildContext(ctx, results, question)
			} else {
				h.metrics.RecordSearch("empty")
			}
			h.metrics.SetQuotaUsed(float64(h.guard.Snapshot().Count))
		}
	}

	selection := h.selector.Select(ctx, originalQuestion, results)
	fusedPrompt := h.catalog.Fuse(selection)
	log.WithFields(logrus.Fields{
		"experts": len(selection),
		"lead":    experts.Lead(selection),
	}).Info("Expert team fused")

	if parsed.ImageBase64 != "" && searchContext == "" {
		h.handleVision(w, r, adapter, parsed, fusedPrompt, log)
		return
	}

	var finalMessages []interface{}
	branch := "plain_text"

	if searchContext != "" && originalQuestion != "" {
		if !h.augmenter.IsRelevant(ctx, searchContext, originalQuestion) {
			log.Warn("Context relevance check failed, emitting canned reply")
			contentType, apology := adapter.ApologyBody(h.localizer.GetDefault(i18n.MsgSearchApology, nil))
			w.Header().Set("Content-Type", contentType)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(apology)
			h.metrics.RecordRequest(adapter.Name(), "apology", "ok")
			return
		}

		branch = "search_answer"
		systemPrompt := fusedPrompt + "\n\n" + citationInstruction + "\n\n" + searchContext
		finalMessages = []interface{}{
			map[string]interface{}{"role": "system", "content": systemPrompt},
			map[string]interface{}{"role": "user", "content": originalQuestion},
		}
	} else {
		finalMessages = append(finalMessages, map[string]interface{}{"role": "system", "content": fusedPrompt})
		if history, ok := raw["messages"].([]interface{}); ok {
			for _, msg := range history {
				entry, ok := msg.(map[string]interface{})
				if !ok {
					continue
				}
				if role, _ := entry["role"].(string); role == "system" || role == "developer" {
					continue
				}
				finalMessages = append(finalMessages, msg)
			}
		}
	}

	raw["messages"] = finalMessages
	raw["model"] = h.ai.ThinkingModel()

	start := time.Now()
	resp, err := h.ai.StreamPost(ctx, adapter.FinalStreamEndpoint(), raw)
	if err != nil {
		h.metrics.RecordBackendCall("forward", "error", time.Since(start))
		h.metrics.RecordRequest(adapter.Name(), branch, "error")
		writeError(w, log, ErrForwarding, h.msg(i18n.MsgForwardingError, err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	log.WithField("branch", branch).Info("Relaying backend response")
	relayStream(w, resp)
	h.metrics.RecordBackendCall("forward", "ok", time.Since(start))
	h.metrics.RecordRequest(adapter.Name(), branch, "ok")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
