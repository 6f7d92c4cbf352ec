package i18n

import (
	"reflect"
	"testing"
)

func clearLocaleEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LANGUAGE", "")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "")
}

func TestDetectLanguagePriorityAndNormalization(t *testing.T) {
	t.Run("LANGUAGE has highest priority", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "ru_RU.UTF-8:en_US")
		t.Setenv("LC_ALL", "de_DE.UTF-8")

		if got := detectLanguage(); got != "ru_RU" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "ru_RU")
		}
	})

	t.Run("C and POSIX are skipped", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "C")
		t.Setenv("LC_ALL", "POSIX")
		t.Setenv("LC_MESSAGES", "fr_FR.UTF-8")

		if got := detectLanguage(); got != "fr_FR" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "fr_FR")
		}
	})

	t.Run("modifier is stripped", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANG", "sr_RS@latin")

		if got := detectLanguage(); got != "sr_RS" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "sr_RS")
		}
	})

	t.Run("falls back to en", func(t *testing.T) {
		clearLocaleEnv(t)
		if got := detectLanguage(); got != "en" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "en")
		}
	})
}

func TestTAndNFallbackWhenUninitialized(t *testing.T) {
	old, oldLang := po, lang
	po, lang = nil, ""
	t.Cleanup(func() { po, lang = old, oldLang })

	if got := T("Hello"); got != "Hello" {
		t.Fatalf("T fallback = %q, want %q", got, "Hello")
	}

	if got := N("file", "files", 1); got != "file" {
		t.Fatalf("N singular fallback = %q, want %q", got, "file")
	}

	if got := N("file", "files", 2); got != "files" {
		t.Fatalf("N plural fallback = %q, want %q", got, "files")
	}
}

func TestEmbeddedCatalogs(t *testing.T) {
	old, oldLang := po, lang
	t.Cleanup(func() { po, lang = old, oldLang })

	if got := Available(); !reflect.DeepEqual(got, []string{"cs", "ru"}) {
		t.Fatalf("Available() = %v", got)
	}

	Init("cs_CZ")
	if Language() != "cs_CZ" {
		t.Fatalf("Language() = %q", Language())
	}
	if got := T("All checks passed"); got != "Všechny kontroly prošly" {
		t.Fatalf("T() = %q", got)
	}
	tests := []struct {
		n    int
		want string
	}{
		{1, "%d katalog aktualizován"},
		{3, "%d katalogy aktualizovány"},
		{5, "%d katalogů aktualizováno"},
	}
	for _, tt := range tests {
		if got := N("%d catalog updated", "%d catalogs updated", tt.n); got != tt.want {
			t.Fatalf("N(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
	if got := T("Lock file:"); got == "" {
		t.Fatal("T() returned empty string")
	}

	Init("ja")
	if got := T("All checks passed"); got != "All checks passed" {
		t.Fatalf("untranslated language T() = %q", got)
	}
}
