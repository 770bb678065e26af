package server

import (
	"errors"
	"net/http"

	"github.com/raine/katazuke-proxy/internal/advisor"
	"github.com/raine/katazuke-proxy/internal/llm"
	"github.com/rs/zerolog/hlog"
)

type imageRequest struct {
	ImageBase64 string `json:"imageBase64"`
}

// Analyze runs the strategic zoning analysis.
func (a *App) Analyze(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if !a.decode(w, r, &req) {
		return
	}
	img, ok := a.image(w, r, req.ImageBase64)
	if !ok {
		return
	}

	result, err := a.advisor.StrategicAnalysis(r.Context(), img, LocaleFromContext(r.Context()))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("strategic analysis failed")
		a.upstreamError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"success":     true,
		"analysis":    result.Analysis,
		"rawResponse": result.Raw,
	})
}

type inpaintRequest struct {
	ImageBase64 string `json:"imageBase64"`
	MaskBase64  string `json:"maskBase64"`
}

// Inpaint runs the fixed cleanup edit, optionally confined to a mask.
func (a *App) Inpaint(w http.ResponseWriter, r *http.Request) {
	var req inpaintRequest
	if !a.decode(w, r, &req) {
		return
	}
	img, ok := a.image(w, r, req.ImageBase64)
	if !ok {
		return
	}
	var mask *llm.Image
	if req.MaskBase64 != "" {
		m, ok := a.image(w, r, req.MaskBase64)
		if !ok {
			return
		}
		mask = &m
	}

	out, err := a.advisor.Inpaint(r.Context(), img, mask)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("inpaint failed")
		if errors.Is(err, advisor.ErrNoImage) {
			a.fail(w, http.StatusInternalServerError, errorBody{Error: localize(r, msgInpaintNoImage)})
			return
		}
		a.upstreamError(w, r, err)
		return
	}

	encoded := encodeImage(out)
	a.json(w, http.StatusOK, map[string]any{
		"success":     true,
		"imageBase64": encoded,
		"imageUrl":    pngDataURI(encoded),
	})
}

// CleanupSpots proposes micro tidying tasks.
func (a *App) CleanupSpots(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if !a.decode(w, r, &req) {
		return
	}
	img, ok := a.image(w, r, req.ImageBase64)
	if !ok {
		return
	}

	result, err := a.advisor.CleanupSpots(r.Context(), img, LocaleFromContext(r.Context()))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("cleanup spots failed")
		a.upstreamError(w, r, err)
		return
	}

	if !result.Parsed {
		a.json(w, http.StatusOK, map[string]any{
			"success": true,
			"rawText": result.RawText,
			"spots":   []advisor.Spot{},
		})
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"success":            true,
		"spots":              result.Spots,
		"totalEstimatedTime": result.TotalEstimatedTime,
		"encouragement":      result.Encouragement,
	})
}

type chatRequest struct {
	ImageBase64 string                `json:"imageBase64"`
	ItemName    string                `json:"itemName"`
	Category    string                `json:"category"`
	Messages    []advisor.ChatMessage `json:"messages"`
}

// ChatAddress continues the item address conversation.
func (a *App) ChatAddress(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !a.decode(w, r, &req) {
		return
	}

	chat := advisor.ChatRequest{
		ItemName: req.ItemName,
		Category: req.Category,
		Messages: req.Messages,
		Language: LocaleFromContext(r.Context()),
	}
	if req.ImageBase64 != "" {
		img, ok := a.image(w, r, req.ImageBase64)
		if !ok {
			return
		}
		chat.Image = &img
	}

	reply, err := a.advisor.ChatAddress(r.Context(), chat)
	if err != nil {
		if errors.Is(err, advisor.ErrItemNameRequired) {
			a.fail(w, http.StatusBadRequest, errorBody{Error: localize(r, msgItemNameRequired)})
			return
		}
		hlog.FromRequest(r).Error().Err(err).Msg("address chat failed")
		if llm.StatusCode(err) != 0 {
			a.upstreamError(w, r, err)
			return
		}
		a.fail(w, http.StatusInternalServerError, errorBody{Error: localize(r, msgChatFailed)})
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "reply": reply})
}
