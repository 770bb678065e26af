// Package server exposes the cleanup pipeline and the advisor over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/raine/katazuke-proxy/internal/advisor"
	"github.com/raine/katazuke-proxy/internal/cleanup"
	"github.com/raine/katazuke-proxy/internal/llm"
	"github.com/raine/katazuke-proxy/internal/quota"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/text/language"
)

// Editor runs before/after cleanup requests.
type Editor interface {
	Edit(ctx context.Context, req cleanup.EditRequest) (*cleanup.EditResult, error)
	Usage() quota.Status
}

// AdvisorService serves the auxiliary tidying endpoints.
type AdvisorService interface {
	StrategicAnalysis(ctx context.Context, img llm.Image, lang language.Tag) (*advisor.StrategicResult, error)
	Inpaint(ctx context.Context, img llm.Image, mask *llm.Image) (llm.Image, error)
	CleanupSpots(ctx context.Context, img llm.Image, lang language.Tag) (*advisor.SpotsResult, error)
	ChatAddress(ctx context.Context, req advisor.ChatRequest) (string, error)
}

// Options configures the HTTP surface.
type Options struct {
	Version          string
	Production       bool
	ProductionOrigin string
	MaxBodyBytes     int64
	// APIKeyConfigured is false when the proxy started without a Gemini key.
	APIKeyConfigured bool
}

// App holds the handler dependencies.
type App struct {
	editor  Editor
	advisor AdvisorService
	opts    Options
}

// NewApp creates the handler container.
func NewApp(editor Editor, advisor AdvisorService, opts Options) *App {
	return &App{editor: editor, advisor: advisor, opts: opts}
}

type errorBody struct {
	Error      string       `json:"error"`
	Code       string       `json:"code,omitempty"`
	Usage      quota.Status `json:"usage,omitempty"`
	Suggestion string       `json:"suggestion,omitempty"`
	RetryAfter int          `json:"retryAfter,omitempty"`
	AIResponse *string      `json:"aiResponse,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) fail(w http.ResponseWriter, code int, body errorBody) {
	a.json(w, code, body)
}

// decode reads a JSON body, answering 413 or 400 itself on failure.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if a.opts.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.opts.MaxBodyBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.fail(w, http.StatusRequestEntityTooLarge, errorBody{Error: localize(r, msgBodyTooLarge)})
			return false
		}
		hlog.FromRequest(r).Warn().Err(err).Msg("failed to decode request body")
		a.fail(w, http.StatusBadRequest, errorBody{Error: localize(r, msgInvalidBody)})
		return false
	}
	return true
}

// image decodes a required image payload, answering 400 itself on failure.
func (a *App) image(w http.ResponseWriter, r *http.Request, payload string) (llm.Image, bool) {
	img, err := decodeImage(payload)
	if err != nil {
		a.fail(w, http.StatusBadRequest, errorBody{Error: localize(r, msgImageRequired)})
		return llm.Image{}, false
	}
	return img, true
}

// upstreamError passes an upstream status and message through. Errors
// without an upstream status become 500.
func (a *App) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	status := llm.StatusCode(err)
	if status == 0 {
		a.fail(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	msg := llm.Message(err)
	if msg == "" {
		msg = localize(r, msgUpstreamError)
	}
	a.fail(w, status, errorBody{Error: msg})
}

// requireAPIKey rejects requests that need the backend when no key is
// configured.
func (a *App) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.opts.APIKeyConfigured {
			a.fail(w, http.StatusServiceUnavailable, errorBody{
				Error: localize(r, msgMissingAPIKey),
				Code:  "MISSING_API_KEY",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Health reports liveness.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok", "version": a.opts.Version})
}

// Usage reports the quota snapshot.
func (a *App) Usage(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"success": true, "usage": a.editor.Usage()})
}
