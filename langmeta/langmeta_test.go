package langmeta

import (
	"reflect"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "pt_br", want: "pt-BR"},
		{in: " EN-us ", want: "en-US"},
		{in: "zh_hant", want: "zh-Hant"},
		{in: "sr_RS@latin", want: "sr-RS"},
		{in: "ru_RU.UTF-8", want: "ru-RU"},
		{in: "ru", want: "ru"},
		{in: "", want: ""},
	}

	for _, tc := range cases {
		if got := Canonicalize(tc.in); got != tc.want {
			t.Fatalf("Canonicalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestVariants(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{in: "pt_BR", want: []string{"pt_BR", "pt-BR"}},
		{in: "pt-br", want: []string{"pt-br", "pt_BR", "pt-BR"}},
		{in: "de", want: []string{"de"}},
		{in: "zh_Hans", want: []string{"zh_Hans", "zh-Hans"}},
	}
	for _, tc := range cases {
		if got := Variants(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Variants(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		got := Resolve("en-GB")
		if got.Name != "English (UK)" || got.Flag() != "🇬🇧" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("gettext spelling", func(t *testing.T) {
		got := Resolve("pt_BR")
		if got.Name != "Português (Brasil)" || got.Flag() != "🇧🇷" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("base fallback keeps region", func(t *testing.T) {
		got := Resolve("fr_LU")
		if got.Name != "Français" || got.Flag() != "🇱🇺" {
			t.Fatalf("unexpected fallback result: %#v", got)
		}
	})

	t.Run("unknown passthrough", func(t *testing.T) {
		got := Resolve("zz-ZZ")
		if got.Name != "zz-ZZ" || got.Flag() != "" {
			t.Fatalf("unexpected unknown result: %#v", got)
		}
	})
}

func TestFlagFromRegion(t *testing.T) {
	if got := FlagFromRegion("us"); got != "🇺🇸" {
		t.Fatalf("FlagFromRegion(us) = %q", got)
	}
	if got := FlagFromRegion("USA"); got != "" {
		t.Fatalf("FlagFromRegion(USA) = %q, want empty", got)
	}
	if got := FlagFromRegion("1A"); got != "" {
		t.Fatalf("FlagFromRegion(1A) = %q, want empty", got)
	}
}
