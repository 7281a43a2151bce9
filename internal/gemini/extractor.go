package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"

	"github.com/nurpe/meter-measures/internal/config"
)

const extractionPrompt = "Extract the numeric value shown on the utility meter in this image. Reply with the number only."

var numberPattern = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)

// Extractor reads meter values off photographs through the Gemini API. The
// image is staged to a temporary file for the duration of the call and removed
// on every exit path. Transient HTTP failures are retried here; the workflow
// above never retries.
type Extractor struct {
	client  *retryablehttp.Client
	apiKey  string
	baseURL string
	model   string
	tempDir string
}

func New(cfg config.GeminiConfig) *Extractor {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = nil

	return &Extractor{
		client:  client,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		tempDir: os.TempDir(),
	}
}

// Extract uploads the image for a durable URL, then asks the model for the
// reading. Returns the parsed value and the uploaded image URI.
func (e *Extractor) Extract(ctx context.Context, image []byte, mimeType string) (decimal.Decimal, string, error) {
	tempPath, err := e.stageImage(image)
	if err != nil {
		return decimal.Decimal{}, "", fmt.Errorf("stage image: %w", err)
	}
	defer os.Remove(tempPath)

	staged, err := os.ReadFile(tempPath)
	if err != nil {
		return decimal.Decimal{}, "", fmt.Errorf("read staged image: %w", err)
	}

	imageURL, err := e.uploadFile(ctx, staged, mimeType)
	if err != nil {
		return decimal.Decimal{}, "", fmt.Errorf("upload image: %w", err)
	}

	value, err := e.generateValue(ctx, staged, mimeType)
	if err != nil {
		return decimal.Decimal{}, "", err
	}
	return value, imageURL, nil
}

func (e *Extractor) stageImage(image []byte) (string, error) {
	file, err := os.CreateTemp(e.tempDir, "measure-*.jpg")
	if err != nil {
		return "", err
	}
	if _, err := file.Write(image); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", err
	}
	return file.Name(), nil
}

type uploadResponse struct {
	File struct {
		Name string `json:"name"`
		URI  string `json:"uri"`
	} `json:"file"`
}

func (e *Extractor) uploadFile(ctx context.Context, image []byte, mimeType string) (string, error) {
	url := fmt.Sprintf("%s/upload/v1beta/files?key=%s", e.baseURL, e.apiKey)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(image))
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Goog-Upload-Protocol", "raw")
	req.Header.Set("Content-Type", mimeType)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("file upload returned status %d", resp.StatusCode)
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if parsed.File.URI == "" {
		return "", fmt.Errorf("upload response missing file uri")
	}
	return parsed.File.URI, nil
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generatePart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (e *Extractor) generateValue(ctx context.Context, image []byte, mimeType string) (decimal.Decimal, error) {
	payload := generateRequest{
		Contents: []generateContent{{
			Parts: []generatePart{
				{Text: extractionPrompt},
				{InlineData: &inlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return decimal.Decimal{}, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", e.baseURL, e.model, e.apiKey)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return decimal.Decimal{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Decimal{}, fmt.Errorf("generateContent returned status %d: %s", resp.StatusCode, snippet)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode generateContent response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return decimal.Decimal{}, fmt.Errorf("generateContent response has no candidates")
	}

	return parseReading(parsed.Candidates[0].Content.Parts[0].Text)
}

// parseReading pulls the first number out of the model's reply. Replies are
// occasionally wrapped in prose or use a comma decimal separator.
func parseReading(text string) (decimal.Decimal, error) {
	match := numberPattern.FindString(text)
	if match == "" {
		return decimal.Decimal{}, fmt.Errorf("no numeric value in model reply %q", strings.TrimSpace(text))
	}
	match = strings.ReplaceAll(match, ",", ".")
	value, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse value %q: %w", match, err)
	}
	return value, nil
}
