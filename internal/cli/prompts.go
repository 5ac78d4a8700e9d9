package cli

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AlecAivazis/survey/v2"
)

var tickerFormat = regexp.MustCompile(`^[A-Z0-9.-]+$`)

// PromptForTicker prompts the user to enter a stock ticker symbol.
func PromptForTicker() (string, error) {
	var ticker string
	prompt := &survey.Input{
		Message: "Enter the stock ticker symbol (e.g., AAPL, MSFT, GOOGL):",
		Help:    "Please enter a valid stock ticker symbol",
	}

	err := survey.AskOne(prompt, &ticker, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(strings.ToUpper(val.(string)))
		if len(str) == 0 {
			return fmt.Errorf("ticker symbol cannot be empty")
		}
		if len(str) > 10 {
			return fmt.Errorf("ticker symbol too long (max 10 characters)")
		}
		if !tickerFormat.MatchString(str) {
			return fmt.Errorf("invalid ticker format (use letters, numbers, dots, and hyphens only)")
		}
		return nil
	}))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ToUpper(ticker)), nil
}

// PromptForAction presents the interactive main menu.
func PromptForAction() (string, error) {
	var selected string
	prompt := &survey.Select{
		Message: "What would you like to do?",
		Options: []string{
			actionAnalyze,
			actionChallenge,
			actionUsage,
			actionInsights,
			actionExtract,
			actionPositions,
			actionQuit,
		},
		Help: "Analyses and challenges spend the daily budget; everything else is free.",
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}
	return selected, nil
}

// PromptForRefresh asks whether to bypass a cached consensus.
func PromptForRefresh() (bool, error) {
	refresh := false
	prompt := &survey.Confirm{
		Message: "Bypass the cache and force a fresh analysis?",
		Default: false,
		Help:    "A forced refresh always spends budget, even when a fresh cached result exists.",
	}
	if err := survey.AskOne(prompt, &refresh); err != nil {
		return false, err
	}
	return refresh, nil
}
