package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ZanzyTHEbar/profile-plausibility/internal/analysis"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/security"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/types"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp(&out, &errOut)
	err := app.Run(append([]string{"plausibility"}, args...))
	return out.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	exitCoder, ok := err.(cli.ExitCoder)
	require.True(t, ok, "expected an exit coder, got %v", err)
	return exitCoder.ExitCode()
}

func TestAnalyzeText(t *testing.T) {
	const url = "https://www.linkedin.com/in/johndoe"
	out, err := run(t, "analyze", url)
	require.NoError(t, err)

	report := analysis.AnalyzeInput(url)
	assert.Contains(t, out, "Analysis completed for: "+url)
	assert.Contains(t, out, fmt.Sprintf("Overall Credibility Score  %d/100", report.CredibilityScore))
	assert.Contains(t, out, "Engagement Rate            "+report.EngagementRate)
	assert.Contains(t, out, "  [i] LinkedIn Engagement Context")
	for _, f := range report.Findings {
		assert.Contains(t, out, f.Title)
	}
}

func TestAnalyzeJSON(t *testing.T) {
	const url = "https://linkedin.com/company/acme/"
	out, err := run(t, "analyze", "--json", url)
	require.NoError(t, err)

	var resp types.AnalyzeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, url, resp.ProfileURL)
	assert.Equal(t, analysis.AnalyzeInput(url), resp.Report)
}

func TestAnalyzeRejectsInvalidURL(t *testing.T) {
	out, err := run(t, "analyze", "https://example.com/johndoe")
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(t, err))
	assert.Equal(t, security.ProfileURLMessage, err.Error())
	assert.Empty(t, out)
}

func TestAnalyzeSkipValidation(t *testing.T) {
	out, err := run(t, "analyze", "--json", "--skip-validation", "")
	require.NoError(t, err)

	var resp types.AnalyzeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 40, resp.Report.CredibilityScore)
	assert.Equal(t, 30, resp.Report.EngagementScore)
	assert.Equal(t, "0.4%", resp.Report.EngagementRate)
}

func TestArgumentCount(t *testing.T) {
	_, err := run(t, "analyze")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(t, err))

	_, err = run(t, "validate", "a", "b")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(t, err))
}

func TestValidate(t *testing.T) {
	out, err := run(t, "validate", "  https://www.linkedin.com/in/jane-doe  ")
	require.NoError(t, err)
	assert.Equal(t, "valid: https://www.linkedin.com/in/jane-doe\n", out)

	_, err = run(t, "validate", "--max-length", "10", "https://www.linkedin.com/in/jane-doe")
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(t, err))
	assert.Contains(t, err.Error(), "maximum length of 10")
}
