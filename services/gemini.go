package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"google.golang.org/genai"
)

// LLMModelName selects the Gemini model for a stylist call.
type LLMModelName int32

const (
	Pro25 LLMModelName = iota
	Flash25
	FlashLite25
	Flash20
)

func (t LLMModelName) String() string {
	switch t {
	case Pro25:
		return "gemini-2.5-pro"
	case Flash25:
		return "gemini-2.5-flash"
	case FlashLite25:
		return "gemini-2.5-flash-lite-preview-06-17"
	case Flash20:
		return "gemini-2.0-flash"
	default:
		return "gemini-2.0-flash"
	}
}

// StylistCallTimeout bounds every Gemini round trip. Mobile clients give up
// well before this, there is no point holding a worker slot longer.
const StylistCallTimeout = 90 * time.Second

func floatPointer(f float32) *float32 {
	return &f
}

func Int64Pointer(i int64) *int64 {
	return &i
}

func Int32Pointer(i int32) *int32 {
	return &i
}

type LLMResponse struct {
	Response           string             `json:"response"`
	Thoughts           string             `json:"thoughts"`
	InputTokenCount    int32              `json:"input_token_count"`
	ThoughtsTokenCount int32              `json:"thoughts_token_count"`
	OutputTokenCount   int32              `json:"output_token_count"`
	TotalTokenCount    int32              `json:"total_token_count"`
	GroundingSources   []GroundingSource  `json:"grounding_sources,omitempty"`
	IsTest             bool               `json:"is_test"`
}

// GroundingSource is one web source the search-grounded call cited.
type GroundingSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ChatTurn is one prior message replayed to the stylist for context.
type ChatTurn struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

// LLMStylist is everything the stylist backend does with Gemini. The
// worker and the controllers only ever see this interface so tests can
// swap in a canned implementation.
type LLMStylist interface {
	ClassifyClothing(ctx context.Context, filePath string, modelName LLMModelName) (*LLMResponse, error)
	GenerateOutfit(ctx context.Context, occasion string, notes string, inventoryJSON string, modelName LLMModelName) (*LLMResponse, error)
	StylistChat(ctx context.Context, message string, inventoryJSON string, history []ChatTurn, modelName LLMModelName) (*LLMResponse, error)
	SearchGrounded(ctx context.Context, query string, modelName LLMModelName) (*LLMResponse, error)
}

type GoogleStylist struct{}

var dashAlphaRule = regexp.MustCompile(`[^a-zA-Z0-9-]`)

func newGenaiClient(ctx context.Context) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  os.Getenv("GOOGLE_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	})
}

func tryUploadGoogleStorage(ctx context.Context, client *genai.Client, filePath string, newName *string) (*genai.File, error) {
	var genFile *genai.File
	var err error
	maxUploadTimes := 3
	for i := range maxUploadTimes {
		config := &genai.UploadFileConfig{}
		if newName != nil {
			config = &genai.UploadFileConfig{
				Name: *newName,
			}
		}

		genFile, err = client.Files.UploadFromPath(ctx, filePath, config)
		if err == nil {
			fmt.Println("File uploaded successfully:", filePath, "Attempt:", i+1)
			return genFile, nil
		}
		fmt.Printf("Error uploading file %s, attempt %d: %v\n", filePath, i+1, err)
	}
	return nil, fmt.Errorf("failed to upload file to google storage after %d attempts: %s", maxUploadTimes, filePath)
}

type ResponseWithThoughts struct {
	Thoughts string `json:"thoughts"`
	Text     string `json:"text"`
}

func GetFirstCandidateTextWithThoughts(result *genai.GenerateContentResponse) (*ResponseWithThoughts, error) {
	var thinkingContent string
	for _, c := range result.Candidates {
		fmt.Println("Finish reason: ", c.FinishReason, " Finish message: ", c.FinishMessage)

		if len(c.SafetyRatings) > 0 {
			fmt.Println("[Safety] Safety ratings present:", len(c.SafetyRatings))
			for _, rating := range c.SafetyRatings {
				fmt.Println("[Safety] rating:", rating.Category, "Score:", rating.Probability, " Blocked:", rating.Blocked)
				if rating.Blocked {
					return nil, fmt.Errorf("content violation: couldn't analyze the image, because it contains %s", rating.Category)
				}
			}
		}
		for _, part := range c.Content.Parts {
			if part.Thought && part.Text != "" {
				thinkingContent = part.Text
				continue
			}
		}
	}
	return &ResponseWithThoughts{
		Thoughts: thinkingContent,
		Text:     result.Text(),
	}, nil
}

func usageCounts(result *genai.GenerateContentResponse) (input, thoughts, output, total int32) {
	if result.UsageMetadata == nil {
		fmt.Println("UsageMetadata is nil!")
		return
	}
	input = result.UsageMetadata.PromptTokenCount
	thoughts = result.UsageMetadata.ThoughtsTokenCount
	output = result.UsageMetadata.CandidatesTokenCount
	total = result.UsageMetadata.TotalTokenCount
	fmt.Println("Input token count:", input)
	fmt.Println("Output token count:", output)
	fmt.Println("Thoughts token count:", thoughts)
	fmt.Println("Total token count:", total)
	return
}

func collectTextResponse(result *genai.GenerateContentResponse) (*LLMResponse, error) {
	input, thoughts, output, total := usageCounts(result)
	if result.PromptFeedback != nil {
		fmt.Println(result.PromptFeedback.BlockReason)
		fmt.Println(result.PromptFeedback.BlockReasonMessage)
		return nil, fmt.Errorf("content violation: %s", result.PromptFeedback.BlockReasonMessage)
	}
	llmResponseText, err := GetFirstCandidateTextWithThoughts(result)
	if err != nil {
		fmt.Println("Error getting first candidate text: ", err)
		return nil, fmt.Errorf("error getting first candidate text: %v", err)
	}
	return &LLMResponse{
		Response:           llmResponseText.Text,
		Thoughts:           llmResponseText.Thoughts,
		InputTokenCount:    input,
		ThoughtsTokenCount: thoughts,
		OutputTokenCount:   output,
		TotalTokenCount:    total,
	}, nil
}

// ClassifyClothing uploads one garment photo and asks for the structured
// labels. The response schema pins the JSON shape so parsing never has to
// guess.
func (GoogleStylist) ClassifyClothing(ctx context.Context, filePath string, modelName LLMModelName) (*LLMResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, StylistCallTimeout)
	defer cancel()

	client, err := newGenaiClient(ctx)
	if err != nil {
		return nil, err
	}

	fileName := filepath.Base(filePath)
	sanitizedFileName := dashAlphaRule.ReplaceAllString(strings.ReplaceAll(fileName, ".", "-"), "")
	genFile, err := tryUploadGoogleStorage(ctx, client, filePath, &sanitizedFileName)
	if err != nil {
		fmt.Println("Error uploading file:", filePath, err)
		return nil, fmt.Errorf("error uploading file to google storage %s: %v", filePath, err)
	}

	parts := []*genai.Part{
		{
			FileData: &genai.FileData{
				FileURI:  genFile.URI,
				MIMEType: genFile.MIMEType,
			},
		},
		{
			Text: "Analyze the clothing item in the image and classify it.",
		},
	}

	result, err := client.Models.GenerateContent(ctx, modelName.String(), []*genai.Content{{Parts: parts}}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		CandidateCount:   1,
		MaxOutputTokens:  2000,
		Temperature:      floatPointer(0.4),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: `You are a fashion catalog expert. Given a photo of a single clothing item, classify it. Return JSON with: "category" (one of: Top, Bottom, Dress, Outerwear, Shoes, Accessory, or the closest fitting short label), "color" (dominant color, one or two words), "season" (array from: spring, summer, fall, winter), "style" (array of short style tags like casual, formal, streetwear), "description" (one sentence). If the image does not contain clothing, return empty strings and arrays.`},
			},
		},
		ResponseSchema: &genai.Schema{
			Type: "object",
			Properties: map[string]*genai.Schema{
				"category": {
					Type: "string",
				},
				"color": {
					Type: "string",
				},
				"season": {
					Type:  "array",
					Items: &genai.Schema{Type: "string"},
				},
				"style": {
					Type:  "array",
					Items: &genai.Schema{Type: "string"},
				},
				"description": {
					Type: "string",
				},
			},
			Required: []string{"category", "color", "season", "style", "description"},
		},
	})

	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, fmt.Errorf("%v", err)
	}
	return collectTextResponse(result)
}

// GenerateOutfit asks for one outfit built from the user's wardrobe for a
// given occasion. inventoryJSON is the serialized wardrobe listing.
func (GoogleStylist) GenerateOutfit(ctx context.Context, occasion string, notes string, inventoryJSON string, modelName LLMModelName) (*LLMResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, StylistCallTimeout)
	defer cancel()

	client, err := newGenaiClient(ctx)
	if err != nil {
		return nil, err
	}

	prompt := "Occasion: " + occasion
	if strings.TrimSpace(notes) != "" {
		prompt += "\nExtra notes from the user: " + notes
	}
	prompt += "\n\nWardrobe inventory (JSON):\n" + inventoryJSON

	result, err := client.Models.GenerateContent(ctx, modelName.String(), []*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		CandidateCount:   1,
		MaxOutputTokens:  8000,
		Temperature:      floatPointer(1),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: `You are a personal stylist. Build exactly one outfit for the given occasion using items from the provided wardrobe inventory. Prefer items the user already owns; only list a missing item when the outfit genuinely needs something the wardrobe lacks. "selectedItemIds" must contain only "id" values copied verbatim from the inventory. "missingItems" are short item names. "matchScore" is 0-100 for how well the outfit fits the occasion.`},
			},
		},
		ResponseSchema: &genai.Schema{
			Type: "object",
			Properties: map[string]*genai.Schema{
				"outfitName": {
					Type: "string",
				},
				"description": {
					Type: "string",
				},
				"matchScore": {
					Type: "integer",
				},
				"selectedItemIds": {
					Type:  "array",
					Items: &genai.Schema{Type: "string"},
				},
				"missingItems": {
					Type:  "array",
					Items: &genai.Schema{Type: "string"},
				},
				"reasoning": {
					Type: "string",
				},
			},
			Required: []string{"outfitName", "description", "selectedItemIds", "missingItems", "reasoning"},
		},
	})

	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, fmt.Errorf("%v", err)
	}
	return collectTextResponse(result)
}

// StylistChat is the free-form conversation call. The model replies with a
// message plus, when it proposes a look, an outfits[] block in the current
// card schema.
func (GoogleStylist) StylistChat(ctx context.Context, message string, inventoryJSON string, history []ChatTurn, modelName LLMModelName) (*LLMResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, StylistCallTimeout)
	defer cancel()

	client, err := newGenaiClient(ctx)
	if err != nil {
		return nil, err
	}

	var contents []*genai.Content
	for _, turn := range history {
		contents = append(contents, &genai.Content{
			Role:  turn.Role,
			Parts: []*genai.Part{{Text: turn.Text}},
		})
	}
	contents = append(contents, &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			{Text: "Wardrobe inventory (JSON):\n" + inventoryJSON + "\n\nUser message: " + message},
		},
	})

	result, err := client.Models.GenerateContent(ctx, modelName.String(), contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		CandidateCount:   1,
		MaxOutputTokens:  20000,
		Temperature:      floatPointer(1),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: `You are a friendly personal stylist chatting with the user about their wardrobe. Always return JSON with "message" (your conversational reply) and "suggestions" (up to three short follow-up prompts the user might tap). When your reply proposes a concrete look, also include "outfits": an array with exactly one outfit object: {"id", "title", "description", "matchScore", "selectedItemIds", "missingItems": [{"id", "name", "searchQuery", "shoppingOptions": [{"storeName", "url", "price", "type"}]}], "pinterestLooks": [{"title", "previewImageUrl", "pinterestUrl"}], "reasoning"}. "selectedItemIds" must contain only ids copied verbatim from the inventory. Omit "outfits" entirely for small talk.`},
			},
		},
	})

	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, fmt.Errorf("%v", err)
	}
	return collectTextResponse(result)
}

// SearchGrounded answers a shopping or trend question with Google Search
// grounding enabled and returns the cited sources alongside the text.
func (GoogleStylist) SearchGrounded(ctx context.Context, query string, modelName LLMModelName) (*LLMResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, StylistCallTimeout)
	defer cancel()

	client, err := newGenaiClient(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.Models.GenerateContent(ctx, modelName.String(), []*genai.Content{{Parts: []*genai.Part{{Text: query}}}}, &genai.GenerateContentConfig{
		CandidateCount:  1,
		MaxOutputTokens: 8000,
		Temperature:     floatPointer(0.7),
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: `You are a fashion shopping assistant. Answer the user's question about products, prices or trends using current web results. Keep the answer short and practical.`},
			},
		},
	})

	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, fmt.Errorf("%v", err)
	}

	response, err := collectTextResponse(result)
	if err != nil {
		return nil, err
	}
	for _, c := range result.Candidates {
		if c.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range c.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil {
				continue
			}
			response.GroundingSources = append(response.GroundingSources, GroundingSource{
				Title: chunk.Web.Title,
				URL:   chunk.Web.URI,
			})
		}
	}
	return response, nil
}
