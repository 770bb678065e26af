package server

import (
	"encoding/base64"
	"errors"
	"regexp"

	"github.com/raine/katazuke-proxy/internal/llm"
)

var errEmptyImage = errors.New("empty image payload")

var dataURIPrefix = regexp.MustCompile(`^data:(image/[a-zA-Z0-9.+-]+);base64,`)

// decodeImage strips an optional data URI prefix and decodes the base64
// payload. The MIME type comes from the prefix when there is one.
func decodeImage(payload string) (llm.Image, error) {
	mimeType := llm.DefaultImageMIMEType
	if m := dataURIPrefix.FindStringSubmatch(payload); m != nil {
		mimeType = m[1]
		payload = payload[len(m[0]):]
	}
	if payload == "" {
		return llm.Image{}, errEmptyImage
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return llm.Image{}, err
	}
	if len(data) == 0 {
		return llm.Image{}, errEmptyImage
	}
	return llm.Image{Data: data, MIMEType: mimeType}, nil
}

func encodeImage(img llm.Image) string {
	return base64.StdEncoding.EncodeToString(img.Data)
}

// pngDataURI labels the payload as PNG regardless of the model's output type.
func pngDataURI(encoded string) string {
	return "data:image/png;base64," + encoded
}
