// Package advisor turns a month of food spending into model-generated
// financial and nutritional advice.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"duit/internal/cache"
	"duit/internal/core"
	"duit/internal/log"
)

const DefaultModel = "gemini-2.5-flash"

var (
	ErrNoFoodCategory     = errors.New("no food category")
	ErrNoRecentFoodSpends = errors.New("no food transactions in the last 30 days")
)

// Advice is the structured analysis returned by the model.
type Advice struct {
	SpendingSummary   string   `json:"spendingSummary"`
	NutritionalAdvice string   `json:"nutritionalAdvice"`
	ActionableTips    []string `json:"actionableTips"`
}

// adviceSchema constrains the model response to the three advice fields.
var adviceSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"spendingSummary": {
			Type:        genai.TypeString,
			Description: "Ringkasan singkat (1-2 kalimat) tentang kebiasaan belanja makanan pengguna. Sebutkan apakah mereka cenderung hemat atau boros dibandingkan budget.",
		},
		"nutritionalAdvice": {
			Type:        genai.TypeString,
			Description: "Analisis singkat dari sisi kesehatan (2-3 kalimat). Fokus pada kualitas makanan (misal: apakah gizinya seimbang, terlalu banyak gorengan/gula, dll) dan berikan saran perbaikan untuk kesehatan jangka panjang, bukan tentang kalori.",
		},
		"actionableTips": {
			Type:        genai.TypeArray,
			Description: "3 tips praktis dan spesifik untuk membantu pengguna makan lebih sehat dan hemat. Setiap tip harus dalam satu kalimat.",
			Items:       &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"spendingSummary", "nutritionalAdvice", "actionableTips"},
}

// Generator produces a raw model response for a prompt. Satisfied by the
// Gemini client; replaced with a stub in tests.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator calls the Gemini API with a JSON response schema.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator builds the client from the ambient GEMINI_API_KEY.
func NewGeminiGenerator(ctx context.Context, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   adviceSchema,
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

// Input is the snapshot the advice request works from.
type Input struct {
	Owner        string
	Transactions []core.Transaction
	Categories   []core.Category
	Budget       core.Budget
	Profile      core.HealthProfile
}

// Requester builds prompts, calls the generator and caches results per owner
// so a page reload does not trigger a second model call.
type Requester struct {
	gen      Generator
	cache    *cache.LRUCache[Advice]
	cacheMgr *cache.Manager
	logger   *log.Logger
	now      func() time.Time
}

func NewRequester(gen Generator, logger *log.Logger) *Requester {
	adviceCache := cache.NewLRUCache[Advice](128, 10*time.Minute)
	mgr := cache.NewManager()
	mgr.Register(adviceCache)
	mgr.StartCleanup(5 * time.Minute)
	return &Requester{
		gen:      gen,
		cache:    adviceCache,
		cacheMgr: mgr,
		logger:   logger.WithComponent(log.ComponentAdvisor),
		now:      time.Now,
	}
}

// Close stops the cache cleanup goroutine.
func (r *Requester) Close() {
	r.cacheMgr.Stop()
}

// Advise returns cached advice when fresh, otherwise asks the model.
func (r *Requester) Advise(ctx context.Context, in Input) (Advice, error) {
	if a, ok := r.cache.Get(in.Owner); ok {
		return a, nil
	}

	food, ok := core.FindCategoryByName(in.Categories, core.FoodCategoryName)
	if !ok {
		return Advice{}, ErrNoFoodCategory
	}
	lines := RecentFoodLines(in.Transactions, food.ID, r.now())
	if len(lines) == 0 {
		return Advice{}, ErrNoRecentFoodSpends
	}

	prompt := BuildPrompt(in.Profile, in.Budget[food.ID], lines)

	start := time.Now()
	raw, err := r.gen.Generate(ctx, prompt)
	if err != nil {
		return Advice{}, fmt.Errorf("request advice: %w", err)
	}

	var a Advice
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return Advice{}, fmt.Errorf("decode advice: %w", err)
	}

	r.logger.InfoContext(ctx, "advice generated",
		log.FieldOwner, in.Owner,
		"food_transactions", len(lines),
		log.FieldDuration, time.Since(start).Milliseconds())

	r.cache.Set(in.Owner, a)
	return a, nil
}

// Invalidate drops the owner's cached advice. Called after mutations that
// change the underlying data.
func (r *Requester) Invalidate(owner string) {
	r.cache.Delete(owner)
}
