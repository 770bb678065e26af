package server

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

type localeContextKey struct{}

// supportedLanguages lists the languages user-facing messages are available
// in. The first entry is the default.
var supportedLanguages = []language.Tag{language.English, language.Japanese}

var languageMatcher = language.NewMatcher(supportedLanguages)

// User-facing messages. The English text doubles as the catalog key.
const (
	msgImageRequired      = "Image data is required."
	msgInvalidBody        = "The request body could not be read."
	msgBodyTooLarge       = "The request body is too large."
	msgItemNameRequired   = "itemName is required."
	msgMissingAPIKey      = "The Gemini API key is not configured."
	msgQuotaStandard      = "The daily limit for standard mode has been reached."
	msgQuotaHighQuality   = "The daily limit for high quality mode has been reached."
	msgTryStandard        = "Please try standard mode."
	msgTryTomorrow        = "Please try again tomorrow."
	msgRateLimited        = "The API rate limit was reached. Please wait a moment and try again."
	msgOverloaded         = "The AI model is busy right now. Please wait a little and try again."
	msgOverloadSuggestion = "Turning off high quality mode may improve the success rate."
	msgNoImage            = "Image generation failed. The AI returned only text."
	msgInpaintNoImage     = "Failed to generate the inpainting image."
	msgChatFailed         = "Something went wrong while processing the chat."
	msgUpstreamError      = "Gemini API error."
	msgFallbackReason     = "The high quality model was busy, so the image was generated with the standard model."
)

var messages = newCatalog()

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	ja := map[string]string{
		msgImageRequired:      "画像データが必要です",
		msgInvalidBody:        "リクエストを読み取れませんでした",
		msgBodyTooLarge:       "リクエストが大きすぎます",
		msgItemNameRequired:   "itemName は必須です",
		msgMissingAPIKey:      "Gemini APIキーが設定されていません",
		msgQuotaStandard:      "本日の通常モードの使用回数上限に達しました",
		msgQuotaHighQuality:   "本日の高画質モードの使用回数上限に達しました",
		msgTryStandard:        "通常モードをお試しください",
		msgTryTomorrow:        "明日またお試しください",
		msgRateLimited:        "APIのレート制限に達しました。少し時間をおいてから再度お試しください。",
		msgOverloaded:         "AIモデルが現在混雑しています。しばらく待ってから再度お試しください。",
		msgOverloadSuggestion: "高画質モードをOFFにすると成功率が上がる場合があります",
		msgNoImage:            "画像の生成に失敗しました。AIがテキストのみを返しました。",
		msgInpaintNoImage:     "Inpainting 画像の生成に失敗しました",
		msgChatFailed:         "チャット処理中にエラーが発生しました",
		msgUpstreamError:      "Gemini API エラー",
		msgFallbackReason:     "高画質モデルが混雑していたため、通常モデルで生成しました",
	}
	for key, text := range ja {
		if err := b.SetString(language.Japanese, key, text); err != nil {
			panic(err)
		}
	}
	return b
}

// negotiateLanguage picks the best supported language for an
// Accept-Language header value.
func negotiateLanguage(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return supportedLanguages[0]
	}
	_, index, _ := languageMatcher.Match(tags...)
	return supportedLanguages[index]
}

// Locale stores the negotiated language in the request context.
func Locale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := negotiateLanguage(r.Header.Get("Accept-Language"))
		ctx := context.WithValue(r.Context(), localeContextKey{}, tag)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LocaleFromContext returns the negotiated language, English when unset.
func LocaleFromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(localeContextKey{}).(language.Tag); ok {
		return tag
	}
	return supportedLanguages[0]
}

func localize(r *http.Request, key string) string {
	return message.NewPrinter(LocaleFromContext(r.Context()), message.Catalog(messages)).Sprintf(key)
}
