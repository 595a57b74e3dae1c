package queue

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"strings"
)

type legacyItem struct {
	Text      string   `json:"text"`
	ImageURLs []string `json:"imageUrls"`
	Format    string   `json:"format"`
	Config    struct {
		URL      string `json:"url"`
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"config"`
}

// DecodeLegacyQueue converts the browser app's localStorage "publishQueue"
// array into payloads. Images must be inline data: URLs; anything else is
// rejected because the original blob can no longer be fetched.
func DecodeLegacyQueue(data []byte) ([]Payload, error) {
	var items []legacyItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode legacy queue: %w", err)
	}
	payloads := make([]Payload, 0, len(items))
	for i, item := range items {
		images := make([]Image, 0, len(item.ImageURLs))
		for j, raw := range item.ImageURLs {
			img, err := decodeDataURL(raw, fmt.Sprintf("legacy-%d-%d", i+1, j+1))
			if err != nil {
				return nil, fmt.Errorf("legacy item %d image %d: %w", i+1, j+1, err)
			}
			images = append(images, img)
		}
		format := DefaultFormat(len(images))
		if strings.TrimSpace(item.Format) != "" {
			parsed, err := ParseFormat(item.Format)
			if err != nil {
				return nil, fmt.Errorf("legacy item %d: %w", i+1, err)
			}
			format = parsed
		}
		payloads = append(payloads, Payload{
			Text:   item.Text,
			Images: images,
			Status: ModePublish,
			Format: format,
			Credentials: Credentials{
				SiteURL:  item.Config.URL,
				Username: item.Config.Username,
				Password: item.Config.Password,
			},
		})
	}
	return payloads, nil
}

func decodeDataURL(raw, baseName string) (Image, error) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return Image{}, fmt.Errorf("not a data URL")
	}
	header, body, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, fmt.Errorf("malformed data URL")
	}
	mediaType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return Image{}, fmt.Errorf("data URL is not base64 encoded")
	}
	decoded, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return Image{}, fmt.Errorf("decode base64: %w", err)
	}
	ext := ".bin"
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return Image{Data: decoded, Filename: baseName + ext}, nil
}
