package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tinyKB = `
intents:
  - id: pricing
    topics: [pricing]
    patterns: ['how much does it cost', 'pricing']
    responses: ['It depends on scope.']
fallbacks: ['Could you rephrase that?']
suggestions: ['one?', 'two?', 'three?']
greeting: 'Hi there.'
`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeKB(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestValidate_Embedded(t *testing.T) {
	out, err := run(t, "", "validate", "--format", "json")
	require.NoError(t, err)

	var report validateReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "embedded", report.Source)
	assert.Equal(t, 15, report.Intents)
	assert.Equal(t, 10, report.Suggestions)
	assert.Positive(t, report.Patterns)
}

func TestValidate_File(t *testing.T) {
	out, err := run(t, "", "validate", "--kb", writeKB(t, tinyKB))
	require.NoError(t, err)
	assert.Contains(t, out, "intents:     1 (2 patterns, 1 responses)")
	assert.Contains(t, out, "suggestions: 3")
}

func TestValidate_Invalid(t *testing.T) {
	bad := strings.Replace(tinyKB, "suggestions: ['one?', 'two?', 'three?']", "suggestions: ['one?']", 1)
	_, err := run(t, "", "validate", "--kb", writeKB(t, bad))
	assert.Error(t, err)
}

func TestValidate_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/kb.yaml" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(tinyKB))
	}))
	defer srv.Close()

	out, err := run(t, "", "validate", "--kb", srv.URL+"/kb.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "ok: "+srv.URL)

	_, err = run(t, "", "validate", "--kb", srv.URL+"/missing.yaml")
	assert.Error(t, err)
}

func TestMatch(t *testing.T) {
	out, err := run(t, "", "match", "--format", "json", "What", "is", "INVNT?")
	require.NoError(t, err)

	var report matchReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "what is invnt", report.Normalized)
	assert.Equal(t, "what-is-invnt", report.Selected)
	assert.InDelta(t, 120.0, report.Score, 1e-9)
	require.NotEmpty(t, report.Candidates)
	assert.Equal(t, "what-is-invnt", report.Candidates[0].IntentID)
	for _, c := range report.Candidates {
		assert.Positive(t, c.RawScore)
	}
}

func TestMatch_Text(t *testing.T) {
	out, err := run(t, "", "match", "--kb", writeKB(t, tinyKB), "zzz")
	require.NoError(t, err)
	assert.Contains(t, out, `normalized: "zzz"`)
	assert.Contains(t, out, "selected: none (fallback)")
}

func TestAsk(t *testing.T) {
	out, err := run(t, "", "ask", "--kb", writeKB(t, tinyKB), "--format", "json", "pricing")
	require.NoError(t, err)

	var report askReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "It depends on scope.", report.Content)
	assert.Equal(t, "pricing", report.IntentID)
	assert.Equal(t, []string{"pricing"}, report.Topics)
	assert.Equal(t, int64(500), report.DelayMs)
}

func TestAsk_Fallback(t *testing.T) {
	out, err := run(t, "", "ask", "--kb", writeKB(t, tinyKB), "quantum", "gravity")
	require.NoError(t, err)
	assert.Contains(t, out, "Could you rephrase that?")
	assert.Contains(t, out, "-- fallback, confidence low")
}

func TestChat(t *testing.T) {
	stdin := "pricing\n1\n/clear\n/quit\n"
	out, err := run(t, stdin, "chat", "--no-delay", "--kb", writeKB(t, tinyKB), "--seed", "5")
	require.NoError(t, err)

	assert.Contains(t, out, "bot: Hi there.")
	assert.Contains(t, out, "bot: It depends on scope.")
	assert.Contains(t, out, "you: ")
	assert.Contains(t, out, "Could you rephrase that?")
	assert.Equal(t, 2, strings.Count(out, "bot: Hi there."))
	assert.NotContains(t, out, "typing")
}

func TestChat_EOF(t *testing.T) {
	_, err := run(t, "", "chat", "--no-delay", "--kb", writeKB(t, tinyKB))
	assert.NoError(t, err)
}
