package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const systemPrompt = `Ты — помощник, который разбирает сообщения о расходах на строительство дома.
Сообщения приходят на русском языке.

Из сообщения пользователя извлеки структурированные данные и верни ТОЛЬКО валидный JSON (без markdown-блоков).

Возможные типы позиций:
1. expense — прямой расход на материалы / работу.
   Примеры: «на кирпич 1000», «цемент 500», «заплатил сантехнику 200»
   → {"type": "expense", "category": "<материал или работа>", "amount": <число>, "description": "<исходный текст>"}

2. foreman_give — деньги переданы прорабу (ещё не потрачены).
   Примеры: «дал прорабу 5000», «прораб получил 3000»
   → {"type": "foreman_give", "amount": <число>, "description": "<исходный текст>"}

3. foreman_report — прораб отчитывается, на что потратил деньги.
   Примеры: «прораб потратил 2000 на песок», «прораб купил гвозди на 500»
   → {"type": "foreman_report", "category": "<материал или работа>", "amount": <число>, "description": "<исходный текст>"}

4. unknown — не удалось определить.
   → {"type": "unknown"}

Правила:
- category — одно слово или короткая фраза на русском языке в нижнем регистре.
- amount — всегда положительное число (без символа валюты).
- Если в сообщении несколько позиций, верни JSON-массив таких объектов в порядке упоминания.
- Если приложено фото чека, извлеки позиции из него.
- Верни ТОЛЬКО JSON, ничего больше.`

// OpenAIClassifier implements Classifier using the OpenAI chat completions
// API over plain HTTP.
type OpenAIClassifier struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

func NewOpenAIClassifier(apiKey, model string) *OpenAIClassifier {
	return &OpenAIClassifier{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    "https://api.openai.com/v1",
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Classify sends the message (and receipt photo, when present) to the model
// and parses the returned JSON. Transport and API failures come back as
// errors; output that merely fails to parse degrades to a single
// unrecognized item inside parseItems.
func (c *OpenAIClassifier) Classify(ctx context.Context, text string, image []byte, knownCategories []string) ([]Item, error) {
	userContent := c.userContent(text, image, knownCategories)

	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call openai: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("openai API error: status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return parseItems(parsed.Choices[0].Message.Content), nil
}

func (c *OpenAIClassifier) userContent(text string, image []byte, knownCategories []string) any {
	hint := "Категорий пока нет."
	if len(knownCategories) > 0 {
		hint = fmt.Sprintf(
			"Существующие категории в базе данных: %s. Старайся использовать одну из них, если смысл совпадает.",
			strings.Join(knownCategories, ", "),
		)
	}
	prompt := fmt.Sprintf("%s\n\nСообщение пользователя: %s", hint, text)

	if len(image) == 0 {
		return prompt
	}
	return []contentPart{
		{Type: "text", Text: prompt},
		{Type: "image_url", ImageURL: &imageURL{
			URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image),
		}},
	}
}
