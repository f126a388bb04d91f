package session

import "testing"

func TestExtractEnvironment_PlayerCount(t *testing.T) {
	cases := []struct {
		message string
		want    int
	}{
		{"我們有三個人", 3},
		{"我們有3個人", 3},
		{"4人", 4},
		{"我們 5", 5},
		{"兩人", 2},
		{"十個人", 10},
		{"你好嗎？", 0},
		{"卡牌排好了", 0},
	}
	for _, tc := range cases {
		got := ExtractEnvironment(tc.message)
		if got.PlayerCount != tc.want {
			t.Errorf("ExtractEnvironment(%q).PlayerCount = %d, want %d", tc.message, got.PlayerCount, tc.want)
		}
	}
}

func TestExtractEnvironment_Experience(t *testing.T) {
	cases := []struct {
		message string
		want    Experience
	}{
		{"我們是第一次玩", ExperienceBeginner},
		{"沒玩過這個遊戲", ExperienceBeginner},
		{"我會玩", ExperienceExperienced},
		{"我們很熟這個遊戲", ExperienceExpert},
		{"常玩", ExperienceExpert},
		{"你好", ExperienceUnknown},
	}
	for _, tc := range cases {
		got := ExtractEnvironment(tc.message)
		if got.Experience != tc.want {
			t.Errorf("ExtractEnvironment(%q).Experience = %q, want %q", tc.message, got.Experience, tc.want)
		}
	}
}

func TestExtractEnvironment_Materials(t *testing.T) {
	cases := []struct {
		message string
		want    Materials
	}{
		{"我們有牌", MaterialsAvailable},
		{"卡牌準備好了", MaterialsAvailable},
		{"沒帶卡", MaterialsMissing},
		{"可以用其他卡代替嗎", MaterialsSubstitute},
		{"嗨", MaterialsUnknown},
	}
	for _, tc := range cases {
		got := ExtractEnvironment(tc.message)
		if got.Materials != tc.want {
			t.Errorf("ExtractEnvironment(%q).Materials = %q, want %q", tc.message, got.Materials, tc.want)
		}
	}
}

func TestExtractEnvironment_CombinedUtterance(t *testing.T) {
	got := ExtractEnvironment("我們有三個人，第一次玩，有卡")
	if got.PlayerCount != 3 {
		t.Errorf("PlayerCount = %d, want 3", got.PlayerCount)
	}
	if got.Experience != ExperienceBeginner {
		t.Errorf("Experience = %q, want beginner", got.Experience)
	}
	if got.Materials != MaterialsAvailable {
		t.Errorf("Materials = %q, want available", got.Materials)
	}
}

func TestMentions(t *testing.T) {
	if !MentionsPlayerCount("我們有三個人") {
		t.Error("expected player count mention")
	}
	if MentionsPlayerCount("你好") {
		t.Error("unexpected player count mention")
	}
	if !MentionsExperience("第一次玩") {
		t.Error("expected experience mention")
	}
	if !MentionsMaterials("沒帶卡") {
		t.Error("expected materials mention")
	}
}
