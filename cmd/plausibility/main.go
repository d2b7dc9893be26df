package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ZanzyTHEbar/profile-plausibility/internal/analysis"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/errors"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/security"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/types"
)

const defaultMaxLength = 200

var (
	version = "v0.0.1-default"

	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "Print the report as JSON",
	}

	skipValidationFlag = &cli.BoolFlag{
		Name:  "skip-validation",
		Usage: "Analyze any string, not only LinkedIn profile URLs",
	}

	maxLengthFlag = &cli.IntFlag{
		Name:  "max-length",
		Usage: "Maximum accepted URL length (0 disables the check)",
		Value: defaultMaxLength,
	}

	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs",
	}
)

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code := 1
		var exitCoder cli.ExitCoder
		if stderrors.As(err, &exitCoder) {
			code = exitCoder.ExitCode()
		}
		os.Exit(code)
	}
}

func newApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "plausibility",
		Version:   version,
		Usage:     "Synthetic credibility reports for LinkedIn profile URLs",
		Writer:    out,
		ErrWriter: errOut,
		Flags:     []cli.Flag{debugFlag},
		Before: func(c *cli.Context) error {
			level := slog.LevelWarn
			if c.Bool(debugFlag.Name) {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level})))
			return nil
		},
		// exit codes are handled by main so tests can inspect them
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			{
				Name:      "analyze",
				Aliases:   []string{"a"},
				Usage:     "Print the report for a profile URL",
				ArgsUsage: "URL",
				Flags:     []cli.Flag{jsonFlag, skipValidationFlag, maxLengthFlag},
				Action:    analyzeCmd,
			},
			{
				Name:      "validate",
				Aliases:   []string{"v"},
				Usage:     "Check whether a profile URL would be accepted",
				ArgsUsage: "URL",
				Flags:     []cli.Flag{maxLengthFlag},
				Action:    validateCmd,
			},
		},
	}
}

func profileArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit(fmt.Sprintf("expected exactly one URL argument, got %d", c.NArg()), 2)
	}
	return c.Args().First(), nil
}

func gate(c *cli.Context, input string) (string, error) {
	profileURL, err := security.ValidateProfileURL(input, c.Int(maxLengthFlag.Name))
	if err != nil {
		return "", cli.Exit(errors.ToAppError(err).ErrBuilder.Msg, 1)
	}
	return profileURL, nil
}

func analyzeCmd(c *cli.Context) error {
	input, err := profileArg(c)
	if err != nil {
		return err
	}

	profileURL := input
	if !c.Bool(skipValidationFlag.Name) {
		if profileURL, err = gate(c, input); err != nil {
			return err
		}
	}

	slog.Debug("analyzing", "token", analysis.ExtractToken(profileURL))
	report := analysis.AnalyzeInput(profileURL)

	if c.Bool(jsonFlag.Name) {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(types.AnalyzeResponse{ProfileURL: profileURL, Report: report}); err != nil {
			return errors.WrapError(err, "error encoding report")
		}
		return nil
	}

	return printReport(c.App.Writer, profileURL, report)
}

func validateCmd(c *cli.Context) error {
	input, err := profileArg(c)
	if err != nil {
		return err
	}
	profileURL, err := gate(c, input)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "valid: %s\n", profileURL)
	return err
}

var findingMarkers = map[analysis.Kind]string{
	analysis.KindSuccess: "+",
	analysis.KindWarning: "!",
	analysis.KindInfo:    "i",
}

func printReport(w io.Writer, profileURL string, report analysis.Report) error {
	lines := []string{
		fmt.Sprintf("Analysis completed for: %s", profileURL),
		"",
		fmt.Sprintf("Overall Credibility Score  %d/100", report.CredibilityScore),
		fmt.Sprintf("Engagement Quality         %d/100", report.EngagementScore),
		fmt.Sprintf("Real Followers             %s", report.RealFollowers),
		fmt.Sprintf("Suspicious Accounts        %s", report.SuspiciousAccounts),
		fmt.Sprintf("Engagement Rate            %s", report.EngagementRate),
		"",
		"Key Findings",
	}
	for _, f := range report.Findings {
		lines = append(lines,
			fmt.Sprintf("  [%s] %s", findingMarkers[f.Kind], f.Title),
			fmt.Sprintf("      %s", f.Description),
		)
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
