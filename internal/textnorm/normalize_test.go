package textnorm

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "  \t\n ", ""},
		{"lowercase", "Hello World", "hello world"},
		{"vietnamese diacritics", "Đăng ký hoạt động như thế nào?", "dang ky hoat dong nhu the nao"},
		{"punctuation to space", "quy-định,ban hành!!", "quy dinh ban hanh"},
		{"collapse whitespace", "  a   b\t\tc  ", "a b c"},
		{"digits kept", "Điểm HĐCĐ 2024", "diem hdcd 2024"},
		{"mixed case marks", "MỤC ĐÍCH", "muc dich"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"", "Mục đích của quy định là gì?", "Ünïcödé — ß æ ø", "áḅc", "İstanbul",
		"tab\tand\nnewline", "***", "hệ đào tạo (chính quy)", "email@example.com",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestKeywords(t *testing.T) {
	got := Keywords("Mục đích của quy định là gì? Quy định")
	want := []string{"muc", "dich", "quy", "dinh"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords = %v, want %v", got, want)
	}
	if len(Keywords("")) != 0 {
		t.Error("empty input should yield no keywords")
	}
}

func TestContainsPhrase(t *testing.T) {
	text := Normalize("Cách đăng ký hoạt động sắp tới")
	if !ContainsPhrase(text, Normalize("đăng ký hoạt động")) {
		t.Error("expected phrase match")
	}
	if !ContainsPhrase(text, "dang") {
		t.Error("single word phrase should match")
	}
	if ContainsPhrase(text, "ang ky") {
		t.Error("phrase must match on word boundaries")
	}
	if ContainsPhrase(text, "") {
		t.Error("empty phrase never matches")
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		in       string
		wantLang Language
		wantConf float64
	}{
		{"", LanguageUnknown, 0},
		{"Điểm rèn luyện là gì", LanguageVietnamese, 0.9},
		{"How do I register?", LanguageEnglish, 0.7},
		{"registration deadline", LanguageEnglish, 0.5},
	}
	for _, tt := range tests {
		lang, conf := DetectLanguage(tt.in)
		if lang != tt.wantLang || conf != tt.wantConf {
			t.Errorf("DetectLanguage(%q) = %s %.1f, want %s %.1f", tt.in, lang, conf, tt.wantLang, tt.wantConf)
		}
	}
}
