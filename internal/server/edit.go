package server

import (
	"errors"
	"net/http"

	"github.com/raine/katazuke-proxy/internal/cleanup"
	"github.com/raine/katazuke-proxy/internal/quota"
	"github.com/rs/zerolog/hlog"
)

const (
	rateLimitRetryAfter = 30
	overloadRetryAfter  = 10
	aiResponseMaxLength = 200
)

type editRequest struct {
	ImageBase64 string `json:"imageBase64"`
	EditType    string `json:"editType"`
	HighQuality bool   `json:"highQuality"`
}

type editResponse struct {
	Success        bool          `json:"success"`
	ImageBase64    string        `json:"imageBase64"`
	ImageURL       string        `json:"imageUrl"`
	Model          string        `json:"model"`
	UsedFallback   bool          `json:"usedFallback"`
	FallbackReason *string       `json:"fallbackReason"`
	Usage          quota.Status  `json:"usage"`
	Debug          cleanup.Debug `json:"debug"`
}

// EditImage runs the before/after cleanup pipeline.
func (a *App) EditImage(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !a.decode(w, r, &req) {
		return
	}
	img, ok := a.image(w, r, req.ImageBase64)
	if !ok {
		return
	}

	result, err := a.editor.Edit(r.Context(), cleanup.EditRequest{
		Image:       img,
		EditType:    req.EditType,
		HighQuality: req.HighQuality,
	})
	if err != nil {
		a.editError(w, r, err)
		return
	}

	encoded := encodeImage(result.Image)
	resp := editResponse{
		Success:      true,
		ImageBase64:  encoded,
		ImageURL:     pngDataURI(encoded),
		Model:        result.Model,
		UsedFallback: result.UsedFallback,
		Usage:        result.Usage,
		Debug:        result.Debug,
	}
	if result.UsedFallback {
		reason := localize(r, msgFallbackReason)
		resp.FallbackReason = &reason
	}
	a.json(w, http.StatusOK, resp)
}

func (a *App) editError(w http.ResponseWriter, r *http.Request, err error) {
	logger := hlog.FromRequest(r)

	var quotaErr *cleanup.QuotaError
	var backendErr *cleanup.BackendError
	var noImageErr *cleanup.NoImageError

	switch {
	case errors.Is(err, cleanup.ErrInvalidImage):
		a.fail(w, http.StatusBadRequest, errorBody{Error: localize(r, msgImageRequired)})

	case errors.As(err, &quotaErr):
		body := errorBody{
			Error:      localize(r, msgQuotaStandard),
			Usage:      quotaErr.Usage,
			Suggestion: localize(r, msgTryTomorrow),
		}
		if quotaErr.Capability == quota.HighQualityGeneration {
			body.Error = localize(r, msgQuotaHighQuality)
			body.Suggestion = localize(r, msgTryStandard)
		}
		a.fail(w, http.StatusTooManyRequests, body)

	case errors.As(err, &backendErr):
		logger.Error().Err(err).Int("status", backendErr.Status).Str("model", backendErr.Model).Msg("generation failed")
		switch {
		case backendErr.Status == http.StatusTooManyRequests:
			a.fail(w, http.StatusTooManyRequests, errorBody{
				Error:      localize(r, msgRateLimited),
				RetryAfter: rateLimitRetryAfter,
			})
		case backendErr.Overloaded:
			a.fail(w, http.StatusServiceUnavailable, errorBody{
				Error:      localize(r, msgOverloaded),
				RetryAfter: overloadRetryAfter,
				Suggestion: localize(r, msgOverloadSuggestion),
			})
		case backendErr.Status > 0:
			msg := backendErr.Message
			if msg == "" {
				msg = localize(r, msgUpstreamError)
			}
			a.fail(w, backendErr.Status, errorBody{Error: msg})
		default:
			a.fail(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		}

	case errors.As(err, &noImageErr):
		logger.Warn().Str("text", noImageErr.Text).Msg("generation returned no image")
		body := errorBody{Error: localize(r, msgNoImage)}
		if noImageErr.Text != "" {
			text := truncateRunes(noImageErr.Text, aiResponseMaxLength)
			body.AIResponse = &text
		}
		a.fail(w, http.StatusInternalServerError, body)

	default:
		logger.Error().Err(err).Msg("edit request failed")
		a.fail(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}

// GenerateImageLegacy redirects the old endpoint to edit-image, keeping the
// method and body.
func (a *App) GenerateImageLegacy(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/api/gemini/edit-image", http.StatusTemporaryRedirect)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
