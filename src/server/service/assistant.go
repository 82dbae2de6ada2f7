// Package service holds business logic that spans models and external
// systems: the AI assistant, link parsing, caching, notifications.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	models "github.com/tunecast/tunecast/src/server/model"
	"github.com/tunecast/tunecast/src/server/metrics"
)

// LLM request timeout; a slow upstream must not hold the request forever
const llmTimeout = 30 * time.Second

// AssistantService answers artist questions, backed by an OpenAI-compatible
// API when configured and a deterministic keyword engine otherwise
type AssistantService struct {
	Messages *models.AssistantMessageModel
	Usage    *models.EntitlementModel
	Analyses *models.TopicAnalysisModel

	APIKey  string
	BaseURL string
	Model   string

	httpClient *http.Client
}

// NewAssistantService wires the assistant against the given models. An
// empty apiKey selects the fallback engine.
func NewAssistantService(messages *models.AssistantMessageModel, usage *models.EntitlementModel, analyses *models.TopicAnalysisModel, apiKey string) *AssistantService {
	return &AssistantService{
		Messages:   messages,
		Usage:      usage,
		Analyses:   analyses,
		APIKey:     apiKey,
		BaseURL:    "https://api.openai.com/v1",
		Model:      "gpt-4o-mini",
		httpClient: &http.Client{Timeout: llmTimeout},
	}
}

// ChatResult is the outcome of one assistant turn
type ChatResult struct {
	Reply      string `json:"reply"`
	Intent     string `json:"intent,omitempty"`
	TokensUsed int64  `json:"tokens_used"`
	Backend    string `json:"backend"` // llm or fallback
}

// Chat appends the user turn, produces a reply, appends it, and accrues
// token usage against the user's tier
func (s *AssistantService) Chat(ctx context.Context, userID int64, tier models.Tier, message string) (*ChatResult, error) {
	intent := classifyIntent(message)
	if _, err := s.Messages.Append(userID, message, true, intent); err != nil {
		return nil, err
	}

	result := &ChatResult{Intent: intent}
	if s.APIKey != "" {
		reply, tokens, err := s.completeLLM(ctx, message)
		if err != nil {
			log.Printf("⚠️ LLM request failed, using fallback: %v", err)
			result.Reply = fallbackReply(intent)
			result.Backend = "fallback"
		} else {
			result.Reply = reply
			result.TokensUsed = tokens
			result.Backend = "llm"
		}
	} else {
		result.Reply = fallbackReply(intent)
		result.Backend = "fallback"
	}
	metrics.AssistantRequests.WithLabelValues(result.Backend).Inc()

	if _, err := s.Messages.Append(userID, result.Reply, false, ""); err != nil {
		return nil, err
	}
	if result.TokensUsed > 0 {
		metrics.AssistantTokensUsed.Add(float64(result.TokensUsed))
		if err := s.Usage.AddAIUsage(userID, tier, result.TokensUsed, time.Now()); err != nil {
			// Usage accounting failure must not eat the reply
			log.Printf("⚠️ Failed to record AI usage for user %d: %v", userID, err)
		}
	}
	return result, nil
}

// chatCompletionRequest is the OpenAI-compatible wire format
type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int64 `json:"total_tokens"`
	} `json:"usage"`
}

const systemPrompt = "You are a helpful assistant for independent musicians using a music distribution platform. " +
	"Answer questions about releases, stores, earnings, subscriptions and promotion. Keep answers short and practical."

func (s *AssistantService) completeLLM(ctx context.Context, message string) (string, int64, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model: s.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: message},
		},
	})
	if err != nil {
		return "", 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("llm returned status %d", resp.StatusCode)
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", 0, err
	}
	if len(parsed.Choices) == 0 {
		return "", 0, fmt.Errorf("llm returned no choices")
	}
	return parsed.Choices[0].Message.Content, parsed.Usage.TotalTokens, nil
}

// topicDef binds a topic name to its trigger keywords. Order matters: a
// message counts toward the FIRST topic that matches, so sum of topic
// counts never exceeds the message total.
type topicDef struct {
	Name     string
	Keywords []string
}

var topicDefs = []topicDef{
	{"release_help", []string{"release", "upload", "submit", "single", "album", "ep", "track", "song", "distribute"}},
	{"earnings", []string{"earning", "royalt", "payment", "payout", "revenue", "money", "paid"}},
	{"subscription", []string{"subscription", "plan", "tier", "upgrade", "trial", "billing", "price", "cancel"}},
	{"stores", []string{"spotify", "apple", "store", "platform", "youtube", "tiktok", "snapchat", "deezer"}},
	{"promotion", []string{"promot", "marketing", "playlist", "fans", "audience", "grow", "social"}},
	{"account", []string{"account", "password", "login", "email", "profile", "verify", "identity"}},
}

// classifyIntent labels a single message with its first matching topic
func classifyIntent(message string) string {
	lower := strings.ToLower(message)
	for _, def := range topicDefs {
		for _, kw := range def.Keywords {
			if strings.Contains(lower, kw) {
				return def.Name
			}
		}
	}
	return "other"
}

var fallbackReplies = map[string]string{
	"release_help": "To create a release, start a new draft from your dashboard, pick Single, EP or Album, fill in your tracks and songwriters, and submit at least 7 days before your release date.",
	"earnings":     "Earnings from stores are imported monthly and appear on your earnings page. Payout timing depends on each store's reporting cycle, usually 2-3 months behind.",
	"subscription": "You can compare plans and upgrade any time from the billing page. Trial accounts include one free release; Plus and Pro remove the limits.",
	"stores":       "We deliver to all major stores including Spotify, Apple Music, YouTube Music and TikTok. You pick the stores per release on the distribution step.",
	"promotion":    "Start with a pre-save link from your public release page, pitch playlists 3-4 weeks out, and post consistently where your listeners already are.",
	"account":      "Account settings, password changes and identity verification live under your profile. Identity verification is required before your first submission.",
	"other":        "I can help with releases, earnings, subscriptions, stores, and promotion. What would you like to know?",
}

func fallbackReply(intent string) string {
	if reply, ok := fallbackReplies[intent]; ok {
		return reply
	}
	return fallbackReplies["other"]
}

var wordSplitter = regexp.MustCompile(`[^a-zA-Z0-9]+`)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "be": true, "to": true, "of": true,
	"in": true, "on": true, "for": true, "with": true, "my": true, "i": true,
	"you": true, "it": true, "this": true, "that": true, "do": true, "can": true,
	"how": true, "what": true, "when": true, "me": true, "your": true, "have": true,
}

// SimpleTopicAnalysis is the deterministic aggregation: each message lands
// in at most one topic, percentages are rounded to one decimal place, and
// an empty input produces empty (not NaN) output.
func SimpleTopicAnalysis(messageTexts []string) ([]models.TopicCount, []models.WordCount) {
	total := len(messageTexts)
	counts := map[string]int{}
	wordCounts := map[string]int{}

	for _, text := range messageTexts {
		counts[classifyIntent(text)]++
		for _, word := range wordSplitter.Split(strings.ToLower(text), -1) {
			if len(word) < 3 || stopwords[word] {
				continue
			}
			wordCounts[word]++
		}
	}

	var topics []models.TopicCount
	for _, def := range topicDefs {
		if n := counts[def.Name]; n > 0 {
			topics = append(topics, models.TopicCount{
				Topic:      def.Name,
				Count:      n,
				Percentage: percentage(n, total),
			})
		}
	}
	if n := counts["other"]; n > 0 {
		topics = append(topics, models.TopicCount{Topic: "other", Count: n, Percentage: percentage(n, total)})
	}
	sort.SliceStable(topics, func(i, j int) bool { return topics[i].Count > topics[j].Count })

	var words []models.WordCount
	for word, n := range wordCounts {
		words = append(words, models.WordCount{Word: word, Count: n})
	}
	sort.Slice(words, func(i, j int) bool {
		if words[i].Count != words[j].Count {
			return words[i].Count > words[j].Count
		}
		return words[i].Word < words[j].Word
	})
	if len(words) > 50 {
		words = words[:50]
	}

	return topics, words
}

// RescaleTopicCounts fits LLM-reported topic counts to the exact message
// total: proportional scaling, then the remainder spread one each over the
// first topics, then percentages recomputed
func RescaleTopicCounts(topics []models.TopicCount, total int) []models.TopicCount {
	if total <= 0 || len(topics) == 0 {
		return nil
	}
	var sum int
	for _, t := range topics {
		sum += t.Count
	}
	if sum <= 0 {
		return nil
	}

	out := make([]models.TopicCount, len(topics))
	scaled := 0
	for i, t := range topics {
		n := t.Count * total / sum
		out[i] = models.TopicCount{Topic: t.Topic, Count: n}
		scaled += n
	}
	for i := 0; i < total-scaled && i < len(out); i++ {
		out[i].Count++
	}
	for i := range out {
		out[i].Percentage = percentage(out[i].Count, total)
	}
	return out
}

func percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}

// RunTopicAnalysis recomputes the aggregation for one (date, tier, range)
// key. Failures are recorded on the row and never returned; the scheduler
// keeps running.
func (s *AssistantService) RunTopicAnalysis(date string, tier models.Tier, rangeDays int, now time.Time) {
	if err := s.Analyses.Begin(date, tier, rangeDays); err != nil {
		log.Printf("❌ Topic analysis begin failed (%s/%s/%d): %v", date, tier, rangeDays, err)
		return
	}

	texts, err := s.Messages.UserMessagesSince(now.AddDate(0, 0, -rangeDays), tier)
	if err != nil {
		log.Printf("❌ Topic analysis query failed (%s/%s/%d): %v", date, tier, rangeDays, err)
		if ferr := s.Analyses.Fail(date, tier, rangeDays, err); ferr != nil {
			log.Printf("❌ Failed to record analysis failure: %v", ferr)
		}
		return
	}

	topics, wordcloud := SimpleTopicAnalysis(texts)
	if err := s.Analyses.Complete(date, tier, rangeDays, topics, wordcloud); err != nil {
		log.Printf("❌ Topic analysis store failed (%s/%s/%d): %v", date, tier, rangeDays, err)
		if ferr := s.Analyses.Fail(date, tier, rangeDays, err); ferr != nil {
			log.Printf("❌ Failed to record analysis failure: %v", ferr)
		}
	}
}
