package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minios-linux/catsync/stats"
)

func sampleReport() *stats.Report {
	mk := func(project, component, lang string, total, translated, fuzzy, checks int) stats.Translation {
		s := stats.Stats{Total: total, Translated: translated, Fuzzy: fuzzy, TotalWords: total * 3, TranslatedWords: translated * 3, AllChecks: checks}
		return stats.Translation{Target: stats.Target{Project: project, Component: component, Lang: lang}, Stats: s}
	}
	return stats.Aggregate([]stats.Translation{
		mk("Weblate", "Application", "cs", 1200, 1200, 0, 0),
		mk("Weblate", "Application", "pt_BR", 1200, 600, 25, 4),
		mk("Docs", "Documentation", "cs", 10, 1, 0, 0),
	})
}

func TestHTMLConditionalCells(t *testing.T) {
	table := Build(sampleReport(), Options{Group: ByLanguage, MinPercent: 75})

	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, table))

	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)

	rows := doc.Find("tbody tr")
	require.Equal(t, 2, rows.Length())

	cs := rows.Eq(0)
	assert.Contains(t, cs.Find("th").Text(), "Čeština")
	assert.Equal(t, "9", cs.Find(".todo").Text())
	assert.Equal(t, "99.2%", cs.Find(".percent").Text())
	assert.Equal(t, 0, cs.Find(".checks").Length())
	assert.False(t, cs.HasClass("below-threshold"))

	pt := rows.Eq(1)
	assert.Contains(t, pt.Find("th").Text(), "Português (Brasil)")
	assert.Equal(t, "pt_BR", pt.Find("th .code").Text())
	assert.Equal(t, "🇧🇷", pt.Find(".flag").Text())
	assert.Equal(t, "50%", pt.Find(".percent").Text())
	assert.Equal(t, "600", pt.Find(".todo").Text())
	assert.Equal(t, "4", pt.Find(".checks").Text())
	assert.Equal(t, 2, pt.Find(".progress-bar").Length(), "fuzzy bar shown when fuzzy > 0")
	assert.True(t, pt.HasClass("below-threshold"))

	total := doc.Find("tfoot tr")
	require.Equal(t, 1, total.Length())
	assert.Contains(t, total.Find("th").Text(), "Total")
	assert.False(t, total.HasClass("below-threshold"))
}

func TestHTMLCompleteRow(t *testing.T) {
	r := stats.Aggregate([]stats.Translation{{
		Target: stats.Target{Project: "Weblate", Component: "Application", Lang: "cs"},
		Stats:  stats.Stats{Total: 3, Translated: 3, TotalWords: 9, TranslatedWords: 9},
	}})
	table := Build(r, Options{Group: ByProject})

	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, table))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)

	row := doc.Find("tbody tr")
	assert.Equal(t, 1, row.Find(".complete").Length())
	assert.Equal(t, 0, row.Find(".todo").Length())
	assert.Equal(t, 0, row.Find(".todo-words").Length())
	assert.Equal(t, 0, row.Find(".checks").Length())
	assert.Equal(t, 1, row.Find(".progress-bar").Length())
	assert.Equal(t, 0, doc.Find("tfoot").Length(), "no total row for a single row")
}

func TestBuildGroupings(t *testing.T) {
	r := sampleReport()

	byProject := Build(r, Options{Group: ByProject})
	require.Len(t, byProject.Rows, 2)
	assert.Equal(t, "Weblate", byProject.Rows[0].Name)
	assert.Equal(t, 2400, byProject.Rows[0].Total)

	byComponent := Build(r, Options{Group: ByComponent})
	require.Len(t, byComponent.Rows, 2)
	assert.Equal(t, "Documentation", byComponent.Rows[1].Name)
	assert.Equal(t, "Docs", byComponent.Rows[1].Detail)

	_, err := ParseGrouping("country")
	assert.Error(t, err)
	g, err := ParseGrouping("language")
	require.NoError(t, err)
	assert.Equal(t, ByLanguage, g)
}

func TestTextTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, Build(sampleReport(), Options{Group: ByProject, MinPercent: 60}), true))

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "Project"))
	assert.Contains(t, lines[2], "Weblate")
	assert.Contains(t, lines[2], "2,400")
	assert.Contains(t, lines[3], "Docs")
	assert.Contains(t, lines[3], " ! ")
	assert.Contains(t, lines[5], "Total")
	assert.NotContains(t, out, "\033[")
}

func TestProgressBar(t *testing.T) {
	cases := []struct {
		name    string
		percent float64
		want    string
	}{
		{name: "clamps below zero", percent: -10, want: colorRed + "░░░░" + colorReset + "    0%"},
		{name: "mid range uses yellow", percent: 50, want: colorYellow + "██░░" + colorReset + "   50%"},
		{name: "clamps above hundred", percent: 120, want: colorGreen + "████" + colorReset + "  100%"},
	}
	for _, tc := range cases {
		if got := ProgressBar(tc.percent, 4, false); got != tc.want {
			t.Fatalf("%s: ProgressBar() = %q, want %q", tc.name, got, tc.want)
		}
	}
	assert.Equal(t, "█░░░ 33.3%", ProgressBar(33.3, 4, true))
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sampleReport()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	total := decoded["total"].(map[string]any)
	assert.Equal(t, float64(2410), total["total"])
	assert.Equal(t, float64(1801), total["translated"])
	assert.Contains(t, total, "translated_percent")
	assert.Contains(t, total, "todo")
}
