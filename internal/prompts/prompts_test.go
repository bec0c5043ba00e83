package prompts

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func topicNames(message string) []string {
	lower := strings.ToLower(message)
	var names []string
	for _, t := range Topics {
		if t.Matches(lower) {
			names = append(names, t.Name)
		}
	}
	return names
}

func TestMatchTopics(t *testing.T) {
	tests := []struct {
		message string
		want    []string
	}{
		{"스테이킹 방법 알려주세요", []string{"staking"}},
		{"토카막 스테이킹 방법 알려주세요", []string{"staking"}},
		{"How do I STAKE my TON?", []string{"staking"}},
		{"토카막이 뭐예요?", []string{"intro"}},
		{"What is Tokamak Network?", []string{"intro"}},
		{"TON 구매하고 DEX에서 거래하고 싶어요", []string{"dex", "buy"}},
		{"Titan은 왜 종료됐나요?", []string{"titan"}},
		{"오늘 날씨 어때요?", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := topicNames(tt.message)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("topics = %v, want %v", got, tt.want)
			}
			if n := len(MatchTopics(tt.message)); n != len(tt.want) {
				t.Errorf("MatchTopics returned %d entries, want %d", n, len(tt.want))
			}
		})
	}
}

func TestMatchingPatternsKorean(t *testing.T) {
	got := MatchingPatterns("스테이킹 방법 알려주세요")
	if !strings.Contains(got, "COPY THIS ANSWER EXACTLY") {
		t.Error("staking pattern should be marked copy-exactly")
	}
	if !strings.Contains(got, "staking-community-version.vercel.app") {
		t.Error("staking pattern missing interface link")
	}
	if MatchingPatterns("오늘 날씨 어때요?") != "" {
		t.Error("unrelated message should match nothing")
	}
}

func TestAllPatternsCoversEveryTopic(t *testing.T) {
	all := AllPatterns()
	for _, t2 := range Topics {
		if !strings.Contains(all, t2.Content) {
			t.Errorf("AllPatterns missing topic %q", t2.Name)
		}
	}
}

func TestCopyExactlyPatternsUsePoliteInformalStyle(t *testing.T) {
	blocks := regexp.MustCompile("(?s)```\n(.*?)```")
	formal := []string{"입니다.", "습니다.", "됩니다.", "갑니다."}
	for _, topic := range Topics {
		if !strings.Contains(topic.Content, "COPY THIS ANSWER EXACTLY") {
			continue
		}
		for _, m := range blocks.FindAllStringSubmatch(topic.Content, -1) {
			for _, ending := range formal {
				if strings.Contains(m[1], ending) {
					t.Errorf("topic %q uses formal ending %q", topic.Name, ending)
				}
			}
		}
	}
}

func TestDiscordGuidelinesContainMarker(t *testing.T) {
	g := DiscordGuidelines()
	if !strings.Contains(g, EndMarker) {
		t.Error("guidelines must name the end marker")
	}
	if strings.Contains(g, "{{") {
		t.Error("unfilled placeholder in guidelines")
	}
}

func TestTokamakKnowledgeAddresses(t *testing.T) {
	k := TokamakKnowledge()
	for _, want := range []string{TONAddress, WTONAddress, "```"} {
		if !strings.Contains(k, want) {
			t.Errorf("knowledge base missing %q", want)
		}
	}
}

type fixedSummary string

func (s fixedSummary) BuildSummary() string { return string(s) }

type countingSummary struct {
	calls int
}

func (c *countingSummary) BuildSummary() string {
	c.calls++
	return "<skills></skills>"
}

func TestBuilderBase(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	b := NewBuilder(WithClock(func() time.Time { return now }))

	base := b.Base()
	for _, want := range []string{
		"# AI_Tokamak",
		"2026-03-02 09:15 (Monday)",
		"# Discord Interaction Guidelines",
		"# Tokamak Network Knowledge Base",
	} {
		if !strings.Contains(base, want) {
			t.Errorf("base prompt missing %q", want)
		}
	}
	if strings.Contains(base, "# Available Skills") {
		t.Error("skills section present without skills")
	}
}

func TestBuilderCache(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 15, 10, 0, time.UTC)
	b := NewBuilder(WithClock(func() time.Time { return now }))

	first := b.Base()
	firstKey := b.cache.key

	now = now.Add(30 * time.Second)
	if b.Base() != first || b.cache.key != firstKey {
		t.Error("same minute should reuse the cached prompt")
	}

	now = now.Add(time.Minute)
	second := b.Base()
	if second == first {
		t.Error("new minute should rebuild the prompt")
	}
	if !strings.Contains(second, "09:16") {
		t.Errorf("rebuilt prompt has stale clock")
	}
}

func TestBuilderCacheKeyIncludesSkills(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	plain := NewBuilder(WithClock(clock))
	withSkills := NewBuilder(WithClock(clock), WithSkills(fixedSummary("<skills><skill><name>x</name></skill></skills>")))

	plain.Base()
	got := withSkills.Base()
	if plain.cache.key == withSkills.cache.key {
		t.Error("cache key should differ by skills presence")
	}
	if !strings.Contains(got, "# Available Skills") || !strings.Contains(got, "<name>x</name>") {
		t.Error("skills section missing")
	}
}

func TestBuilderBuild(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	b := NewBuilder(WithClock(func() time.Time { return now }))

	tests := []struct {
		name         string
		message      string
		wantPatterns bool
	}{
		{"no message", "", false},
		{"matching message", "스테이킹 방법 알려주세요", true},
		{"unmatched message", "오늘 날씨 어때요?", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Build(tt.message)
			if has := strings.Contains(got, patternsHeader); has != tt.wantPatterns {
				t.Errorf("patterns section present = %v, want %v", has, tt.wantPatterns)
			}
			if !strings.HasPrefix(got, b.Base()) {
				t.Error("prompt should start with the base prompt")
			}
		})
	}
}

func TestBuilderBuildAll(t *testing.T) {
	got := NewBuilder().BuildAll()
	for _, want := range []string{allPatternsTitle, "스테이킹", "Titan", "GranTON"} {
		if !strings.Contains(got, want) {
			t.Errorf("BuildAll missing %q", want)
		}
	}
	if strings.Contains(got, patternsHeader) {
		t.Error("BuildAll should not include the per-question header")
	}
}

func TestBuilderOverride(t *testing.T) {
	src := &countingSummary{}
	b := NewBuilder(WithOverride("You are a test bot."), WithSkills(src))
	if got := b.Build("스테이킹"); got != "You are a test bot." {
		t.Errorf("Build = %q, want override", got)
	}
	if src.calls != 0 {
		t.Error("override should not consult skills")
	}
}
