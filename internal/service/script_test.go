package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/caseforge/internal/domain"
	"github.com/cloo-solutions/caseforge/internal/project"
)

const checkoutHTML = `<html><body>
<form id="checkout-form">
<input id="discount-code" name="discount" type="text">
<button id="apply-discount" class="btn-primary">Apply</button>
<button id="pay">Pay now</button>
</form>
</body></html>`

func newScriptFixture(t *testing.T, generator *fakeGenerator, retriever *fakeRetriever, writeArtifact bool) (*ScriptService, *domain.Project) {
	t.Helper()
	store, err := project.NewStore(t.TempDir())
	require.NoError(t, err)
	p, err := store.Create()
	require.NoError(t, err)

	if writeArtifact {
		path := filepath.Join(p.UploadsDir, domain.ReferenceArtifactName)
		require.NoError(t, os.WriteFile(path, []byte(checkoutHTML), 0o644))
	}

	return NewScriptService(store, retriever, generator, 5), p
}

func TestGenerateScript_ResolvedSelectorsSucceed(t *testing.T) {
	generator := &fakeGenerator{
		output: `{"script": "await page.fill('#discount-code', 'SAVE10');",
			"selectors": ["#discount-code", "#apply-discount", "#pay"]}`,
	}
	retriever := &fakeRetriever{evidence: evidenceFixture(testProjectID)}
	svc, p := newScriptFixture(t, generator, retriever, true)

	result, err := svc.Generate(context.Background(), p.ID, "apply a discount code")
	require.NoError(t, err)
	assert.Equal(t, domain.ScriptStatusSuccess, result.Status)
	assert.Contains(t, result.Script, "discount-code")
	assert.Empty(t, result.Diagnostic)
}

func TestGenerateScript_UnresolvedSelectorDowngrades(t *testing.T) {
	generator := &fakeGenerator{
		output: `{"script": "await page.click('#missing-button');",
			"selectors": ["#discount-code", "#missing-button"]}`,
	}
	retriever := &fakeRetriever{evidence: evidenceFixture(testProjectID)}
	svc, p := newScriptFixture(t, generator, retriever, true)

	result, err := svc.Generate(context.Background(), p.ID, "press the missing button")
	require.NoError(t, err)
	assert.Equal(t, domain.ScriptStatusUnverified, result.Status)
	assert.NotEmpty(t, result.Script)
	assert.Contains(t, result.Diagnostic, "#missing-button")
	assert.NotContains(t, result.Diagnostic, "#discount-code,")
}

func TestGenerateScript_NoArtifactIsUnverified(t *testing.T) {
	generator := &fakeGenerator{
		output: `{"script": "await page.click('#pay');", "selectors": ["#pay"]}`,
	}
	retriever := &fakeRetriever{evidence: evidenceFixture(testProjectID)}
	svc, p := newScriptFixture(t, generator, retriever, false)

	result, err := svc.Generate(context.Background(), p.ID, "pay for the order")
	require.NoError(t, err)
	assert.Equal(t, domain.ScriptStatusUnverified, result.Status)
	assert.Contains(t, result.Diagnostic, "no reference artifact")
}

func TestGenerateScript_GenerationCallFailure(t *testing.T) {
	generator := &fakeGenerator{err: errors.New("model overloaded")}
	retriever := &fakeRetriever{evidence: evidenceFixture(testProjectID)}
	svc, p := newScriptFixture(t, generator, retriever, true)

	result, err := svc.Generate(context.Background(), p.ID, "apply a discount code")
	require.NoError(t, err)
	assert.Equal(t, domain.ScriptStatusFailure, result.Status)
	assert.Empty(t, result.Script)
	assert.Contains(t, result.Diagnostic, "model overloaded")
}

func TestGenerateScript_MalformedOutputIsFailure(t *testing.T) {
	generator := &fakeGenerator{output: "const page = ..."}
	retriever := &fakeRetriever{evidence: evidenceFixture(testProjectID)}
	svc, p := newScriptFixture(t, generator, retriever, true)

	result, err := svc.Generate(context.Background(), p.ID, "apply a discount code")
	require.NoError(t, err)
	assert.Equal(t, domain.ScriptStatusFailure, result.Status)
}

func TestGenerateScript_PromptCarriesArtifactAndEvidence(t *testing.T) {
	generator := &fakeGenerator{
		output: `{"script": "await page.click('#pay');", "selectors": ["#pay"]}`,
	}
	evidence := evidenceFixture(testProjectID)
	retriever := &fakeRetriever{evidence: evidence}
	svc, p := newScriptFixture(t, generator, retriever, true)

	_, err := svc.Generate(context.Background(), p.ID, "pay for the order")
	require.NoError(t, err)

	require.Len(t, generator.users, 1)
	prompt := generator.users[0]
	assert.Contains(t, prompt, "checkout-form")
	assert.Contains(t, prompt, evidence[0].Text)
	assert.Contains(t, prompt, "pay for the order")
}

func TestGenerateScript_FallsBackToAnyHTMLUpload(t *testing.T) {
	generator := &fakeGenerator{
		output: `{"script": "await page.click('#pay');", "selectors": ["#pay"]}`,
	}
	retriever := &fakeRetriever{evidence: evidenceFixture(testProjectID)}
	svc, p := newScriptFixture(t, generator, retriever, false)

	path := filepath.Join(p.UploadsDir, "payment.html")
	require.NoError(t, os.WriteFile(path, []byte(checkoutHTML), 0o644))

	result, err := svc.Generate(context.Background(), p.ID, "pay for the order")
	require.NoError(t, err)
	assert.Equal(t, domain.ScriptStatusSuccess, result.Status)
}

func TestSelectorResolves(t *testing.T) {
	artifact := `<html><body>
<p>Use the btn-primary style and name the discount field well.</p>
<form id='checkout-form'>
<input id="discount-code" name='discount' type="text">
<button id="apply-discount" class="btn btn-primary">Apply</button>
</form>
</body></html>`

	tests := []struct {
		selector string
		want     bool
	}{
		{"#discount-code", true},
		{"#checkout-form", true}, // single-quoted attribute
		{"#missing", false},
		{".btn-primary", true},
		{".btn", true},
		{".discount", false}, // prose mentions "discount" but no such class
		{"input[name='discount']", true},
		{"input[name='nope']", false},
		{"form #apply-discount", true},
		{"button", true},
		{"select", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, selectorResolves(artifact, tt.selector), "selector %q", tt.selector)
	}
}

func TestGenerateScript_ClassInProseDoesNotResolve(t *testing.T) {
	generator := &fakeGenerator{
		output: `{"script": "await page.click('.checkout-hint');", "selectors": [".checkout-hint"]}`,
	}
	retriever := &fakeRetriever{evidence: evidenceFixture(testProjectID)}
	svc, p := newScriptFixture(t, generator, retriever, false)

	html := `<html><body><p>The checkout-hint text explains discounts.</p><button id="pay">Pay</button></body></html>`
	path := filepath.Join(p.UploadsDir, domain.ReferenceArtifactName)
	require.NoError(t, os.WriteFile(path, []byte(html), 0o644))

	result, err := svc.Generate(context.Background(), p.ID, "follow the hint")
	require.NoError(t, err)
	assert.Equal(t, domain.ScriptStatusUnverified, result.Status)
	assert.Contains(t, result.Diagnostic, ".checkout-hint")
}

func TestGenerateScript_EmptyQuery(t *testing.T) {
	svc, p := newScriptFixture(t, &fakeGenerator{}, &fakeRetriever{}, true)

	_, err := svc.Generate(context.Background(), p.ID, "")
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestGenerateScript_UnknownProject(t *testing.T) {
	svc, _ := newScriptFixture(t, &fakeGenerator{}, &fakeRetriever{}, true)

	_, err := svc.Generate(context.Background(), "proj_404_nosuch", "query")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}
