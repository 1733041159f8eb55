package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivs/invoice-compliance/internal/models"
)

type fakeProvider struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

type fakeKnowledge struct {
	text string
	err  error
}

func (f fakeKnowledge) Lookup(context.Context, string) (string, error) {
	return f.text, f.err
}

func TestAnalyse(t *testing.T) {
	provider := &fakeProvider{reply: `{"vat_check":"Zero-rated","cis_check":"n/a","required_wording":"none","summary":"ok","corrected_invoice":""}`}
	analyst := NewAnalyst(provider, fakeKnowledge{text: "HMRC VAT Notice 708"})

	report, err := analyst.Analyse(context.Background(), "NHBC plot 4\nBrickwork 1 100.00", models.ComplianceFlags{CISRate: 30})
	require.NoError(t, err)

	assert.Equal(t, "Zero-rated", report.VATCheck)
	assert.Nil(t, report.CorrectedInvoice)
	assert.Contains(t, provider.prompt, "HMRC VAT Notice 708")
	assert.Contains(t, provider.prompt, "VAT category: Zero-rated (new build dwelling)")
	assert.Contains(t, provider.prompt, "DRC applies: No")
	assert.Contains(t, provider.prompt, "CIS rate: 30%")
	assert.Contains(t, provider.prompt, "Brickwork 1 100.00")
}

func TestAnalyseKnowledgeFailureIsNotFatal(t *testing.T) {
	provider := &fakeProvider{reply: "The invoice looks compliant"}
	analyst := NewAnalyst(provider, fakeKnowledge{err: errors.New("down")})

	report, err := analyst.Analyse(context.Background(), "text", models.ComplianceFlags{})
	require.NoError(t, err)
	assert.Equal(t, "The invoice looks compliant", report.Summary)
	assert.Contains(t, provider.prompt, "CIS rate: 20%")
}

func TestAnalyseProviderError(t *testing.T) {
	analyst := NewAnalyst(&fakeProvider{err: errors.New("rate limited")}, nil)

	_, err := analyst.Analyse(context.Background(), "text", models.ComplianceFlags{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestHTTPContextSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req knowledgeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "invoice text", req.Query)

		json.NewEncoder(w).Encode(map[string]string{"context": "DRC guidance"})
	}))
	defer srv.Close()

	got, err := NewHTTPContextSource(srv.URL, "secret").Lookup(context.Background(), "invoice text")
	require.NoError(t, err)
	assert.Equal(t, "DRC guidance", got)
}

func TestHTTPContextSourceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPContextSource(srv.URL, "").Lookup(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestNewProvider(t *testing.T) {
	cfg := models.AIConfig{
		DefaultProvider: "ollama",
		OpenAI:          models.OpenAIConfig{APIKey: "sk-test"},
	}

	p, err := NewProvider(cfg, "", "")
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	p, err = NewProvider(cfg, "openai", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	_, err = NewProvider(cfg, "gemini", "")
	assert.Error(t, err)

	_, err = NewProvider(cfg, "claude", "")
	assert.Error(t, err)
}
