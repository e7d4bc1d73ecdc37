package prober

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/estatesearch/estatesearch/estate"
)

// signal is one text pattern that indicates buyer leverage.
type signal struct {
	category string
	pattern  *regexp.Regexp
	detail   string
	score    float64
}

var signals = []signal{
	{estate.LeveragePriceHistory, regexp.MustCompile(`price\s+(cut|drop|reduc\w+)|reduced\s+price|price\s+improvement`),
		"The listing shows a price reduction", 7},
	{estate.LeveragePropertyIssues, regexp.MustCompile(`\bas[\s-]is\b|fixer[\s-]upper|needs\s+(work|repairs?|updating)|handyman\s+special|\btlc\b`),
		"The listing language signals deferred maintenance or needed repairs", 6.5},
	{estate.LeveragePropertyIssues, regexp.MustCompile(`foundation\s+(issue|problem|repair)|roof\s+(leak|repair|replacement)|code\s+violation|unpermitted`),
		"Specific structural or permit problems are disclosed", 8},
	{estate.LeverageOwnerSituation, regexp.MustCompile(`estate\s+sale|probate`),
		"Estate or probate sale, heirs often prefer a fast close", 7.5},
	{estate.LeverageOwnerSituation, regexp.MustCompile(`foreclosure|short\s+sale|bank[\s-]owned|\breo\b`),
		"Distressed sale, the seller is under financial pressure", 8.5},
	{estate.LeverageOwnerSituation, regexp.MustCompile(`motivated\s+seller|must\s+sell|relocat\w+|divorce`),
		"The seller signals urgency to close", 7},
	{estate.LeverageTimeOnMarket, regexp.MustCompile(`back\s+on\s+(the\s+)?market|relisted`),
		"The property returned to market, a prior deal fell through", 6},
	{estate.LeverageMarketConditions, regexp.MustCompile(`buyer'?s\s+market|high\s+inventory|declining\s+(values|prices)`),
		"Local conditions favor the buyer", 5},
}

var daysOnMarketRe = regexp.MustCompile(`(\d+)\+?\s+days?\s+on\s+(the\s+)?market`)

// Analyze scans listing-page text for negotiation leverage and scores it.
// Only negative signals count; a clean page yields an empty report with a
// low score.
func Analyze(content string) *estate.LeverageReport {
	text := strings.ToLower(content)

	var findings []estate.LeverageFinding
	var total float64

	if m := daysOnMarketRe.FindStringSubmatch(text); m != nil {
		days, _ := strconv.Atoi(m[1])
		score := 3.0
		switch {
		case days >= 90:
			score = 8.5
		case days >= 60:
			score = 7
		case days >= 30:
			score = 5
		}
		findings = append(findings, estate.LeverageFinding{
			Category: estate.LeverageTimeOnMarket,
			Detail:   fmt.Sprintf("%d days on market", days),
		})
		total += score
	}

	for _, sig := range signals {
		if sig.pattern.MatchString(text) {
			findings = append(findings, estate.LeverageFinding{
				Category: sig.category,
				Detail:   sig.detail,
			})
			total += sig.score
		}
	}

	report := &estate.LeverageReport{Findings: findings}
	if len(findings) == 0 {
		report.LeverageScore = 0
		report.Summary = "No leverage signals found in the listing"
		return report
	}

	report.LeverageScore = total / float64(len(findings))
	if report.LeverageScore > 10 {
		report.LeverageScore = 10
	}
	report.Summary = fmt.Sprintf("%d leverage signals found", len(findings))
	return report
}
