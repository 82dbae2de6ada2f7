package service

import (
	"testing"

	models "github.com/tunecast/tunecast/src/server/model"
)

func TestSimpleTopicAnalysisSingleTopicPerMessage(t *testing.T) {
	// Mentions both releases and earnings; only the first matching topic
	// may count it
	messages := []string{
		"how do I submit my release and when do I get my earnings",
		"how much money will I get paid",
		"can you help me upload a single",
		"what playlist should I pitch",
	}

	topics, _ := SimpleTopicAnalysis(messages)

	var sum int
	for _, topic := range topics {
		sum += topic.Count
	}
	if sum > len(messages) {
		t.Errorf("topic counts sum to %d, exceeds %d messages", sum, len(messages))
	}

	byName := map[string]models.TopicCount{}
	for _, topic := range topics {
		byName[topic.Topic] = topic
	}
	if byName["release_help"].Count != 2 {
		t.Errorf("release_help count = %d, want 2", byName["release_help"].Count)
	}
	if byName["earnings"].Count != 1 {
		t.Errorf("earnings count = %d, want 1", byName["earnings"].Count)
	}
	if byName["promotion"].Count != 1 {
		t.Errorf("promotion count = %d, want 1", byName["promotion"].Count)
	}
}

func TestSimpleTopicAnalysisPercentages(t *testing.T) {
	messages := []string{
		"release question one",
		"release question two",
		"how do royalties work",
	}
	topics, _ := SimpleTopicAnalysis(messages)

	byName := map[string]float64{}
	for _, topic := range topics {
		byName[topic.Topic] = topic.Percentage
	}
	if byName["release_help"] != 66.7 {
		t.Errorf("release_help percentage = %v, want 66.7", byName["release_help"])
	}
	if byName["earnings"] != 33.3 {
		t.Errorf("earnings percentage = %v, want 33.3", byName["earnings"])
	}
}

func TestSimpleTopicAnalysisEmptyInput(t *testing.T) {
	topics, wordcloud := SimpleTopicAnalysis(nil)
	if len(topics) != 0 {
		t.Errorf("got %d topics for empty input", len(topics))
	}
	if len(wordcloud) != 0 {
		t.Errorf("got %d wordcloud entries for empty input", len(wordcloud))
	}
}

func TestSimpleTopicAnalysisWordcloud(t *testing.T) {
	messages := []string{
		"spotify spotify playlist!",
		"playlist-curators, playlist... spotify",
	}
	_, wordcloud := SimpleTopicAnalysis(messages)

	counts := map[string]int{}
	for _, w := range wordcloud {
		counts[w.Word] = w.Count
	}
	// Punctuation splits tokens; stopwords and short words are dropped
	if counts["spotify"] != 3 {
		t.Errorf("spotify count = %d, want 3", counts["spotify"])
	}
	if counts["playlist"] != 3 {
		t.Errorf("playlist count = %d, want 3", counts["playlist"])
	}
	if counts["curators"] != 1 {
		t.Errorf("curators count = %d, want 1", counts["curators"])
	}
}

func TestRescaleTopicCountsExactTotal(t *testing.T) {
	tests := []struct {
		name   string
		topics []models.TopicCount
		total  int
	}{
		{
			"llm over-reports",
			[]models.TopicCount{{Topic: "a", Count: 50}, {Topic: "b", Count: 30}, {Topic: "c", Count: 40}},
			100,
		},
		{
			"llm under-reports",
			[]models.TopicCount{{Topic: "a", Count: 3}, {Topic: "b", Count: 2}},
			100,
		},
		{
			"remainder distribution",
			[]models.TopicCount{{Topic: "a", Count: 1}, {Topic: "b", Count: 1}, {Topic: "c", Count: 1}},
			10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RescaleTopicCounts(tt.topics, tt.total)
			var sum int
			for _, topic := range out {
				sum += topic.Count
			}
			if sum != tt.total {
				t.Errorf("rescaled counts sum to %d, want exactly %d", sum, tt.total)
			}
			for _, topic := range out {
				want := percentage(topic.Count, tt.total)
				if topic.Percentage != want {
					t.Errorf("topic %s percentage = %v, want %v", topic.Topic, topic.Percentage, want)
				}
			}
		})
	}
}

func TestRescaleTopicCountsDegenerate(t *testing.T) {
	if out := RescaleTopicCounts(nil, 10); out != nil {
		t.Error("nil topics should rescale to nil")
	}
	if out := RescaleTopicCounts([]models.TopicCount{{Topic: "a", Count: 5}}, 0); out != nil {
		t.Error("zero total should rescale to nil")
	}
}

func TestClassifyIntentFirstMatchWins(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"I want to release a song and get paid", "release_help"},
		{"where are my royalties", "earnings"},
		{"should I upgrade my plan", "subscription"},
		{"is spotify included", "stores"},
		{"hello there", "other"},
		{"", "other"},
	}
	for _, tt := range tests {
		if got := classifyIntent(tt.message); got != tt.want {
			t.Errorf("classifyIntent(%q) = %s, want %s", tt.message, got, tt.want)
		}
	}
}
