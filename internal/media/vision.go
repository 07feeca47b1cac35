package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"video-worker/internal/domain"
	"video-worker/internal/gateway"
)

// OpenAIVisionCaptioner implements gateway.VisionCaptioner against an
// OpenAI-compatible chat-completions endpoint, passing the frame as a
// base64 data URL image content part and asking for JSON matching the §6
// schema, grounded on the message/content-part shape in the corpus's
// openai_client.go GetFrameCaption.
type OpenAIVisionCaptioner struct {
	BaseURL string
	APIKey  string
	Model   string
	client  *http.Client
}

var _ gateway.VisionCaptioner = (*OpenAIVisionCaptioner)(nil)

func NewOpenAIVisionCaptioner(baseURL, apiKey string) *OpenAIVisionCaptioner {
	return &OpenAIVisionCaptioner{BaseURL: baseURL, APIKey: apiKey, Model: "gpt-4o-mini", client: newHTTPClient()}
}

const visionPrompt = `Describe this video frame. Respond with JSON only, matching exactly:
{"caption": "string", "controls": [{"type": "string", "label": "string", "position": "string"}], "text_on_screen": [{"text": "string", "position": "string"}]}`

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string            `json:"role"`
	Content []chatContentPart `json:"content"`
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// visionSchema is the §6 payload a caption call must conform to.
type visionSchema struct {
	Caption      string `json:"caption"`
	Controls     []struct {
		Type     string `json:"type"`
		Label    string `json:"label"`
		Position string `json:"position"`
	} `json:"controls"`
	TextOnScreen []struct {
		Text     string `json:"text"`
		Position string `json:"position"`
	} `json:"text_on_screen"`
}

func (c *OpenAIVisionCaptioner) Caption(ctx context.Context, imagePath string) (gateway.VisionResult, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return gateway.VisionResult{}, fmt.Errorf("read frame image: %w", err)
	}
	dataURL := fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(data))

	reqBody, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatContentPart{
				{Type: "text", Text: visionPrompt},
				{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}},
			},
		}},
	})
	if err != nil {
		return gateway.VisionResult{}, err
	}

	respBody, err := doJSON(ctx, c.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return gateway.VisionResult{}, err
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return gateway.VisionResult{}, fmt.Errorf("decode chat response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return gateway.VisionResult{}, domain.Retryable(fmt.Errorf("vision: no choices in response"))
	}

	var parsed visionSchema
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &parsed); err != nil {
		return gateway.VisionResult{}, domain.Retryable(fmt.Errorf("vision payload failed schema validation: %w", err))
	}

	result := gateway.VisionResult{Caption: parsed.Caption}
	for _, c := range parsed.Controls {
		result.Controls = append(result.Controls, gateway.VisionControl{Type: c.Type, Label: c.Label, Position: c.Position})
	}
	for _, t := range parsed.TextOnScreen {
		result.TextOnScreen = append(result.TextOnScreen, gateway.VisionText{Text: t.Text, Position: t.Position})
	}
	return result, nil
}
