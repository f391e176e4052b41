package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rafabd1/climatesense/internal/llm"
	"github.com/rafabd1/climatesense/internal/notify"
	"github.com/rafabd1/climatesense/internal/types"
	"github.com/rafabd1/climatesense/pkg/logger"
	"github.com/rafabd1/climatesense/pkg/search"
	"github.com/rafabd1/climatesense/pkg/utils"
)

const (
	NoTrendData        = "No trend data available."
	TrendError         = "Error analyzing trend."
	OnDemandTrend      = "On-demand search. No trend data."
	CalmRecommendation = "Conditions are calm. No special actions required."
	RecommendError     = "Error generating recommendations."
	NoRelevantNews     = "No relevant local safety news found."
	NewsError          = "Error analyzing news."

	trendWindow   = 3
	maxNewsInput  = 5
	notAvailable  = "N/A"
	errorSentinel = "Error"
)

// HistorySource returns the stored runs for a city in chronological order.
type HistorySource interface {
	History(ctx context.Context, city string) ([]types.LogEntry, error)
}

// TrendForecaster compares the newest reading with recent history.
type TrendForecaster struct {
	LLM     llm.Generator
	History HistorySource
}

func (f *TrendForecaster) Forecast(ctx context.Context, city string, current types.RiskReport) string {
	log := logger.FromContext(ctx).With("role", "trend")
	log.Info("Analyzing risk trend", "city", city)

	history, err := f.History.History(ctx, city)
	if err != nil {
		log.Info("No history available", "error", err)
		return NoTrendData
	}
	if len(history) < 2 {
		log.Info("Not enough history for this city to analyze trend", "entries", len(history))
		return NoTrendData
	}
	recent := history[max(0, len(history)-trendWindow):]

	var past strings.Builder
	for _, e := range recent {
		ts := notAvailable
		if !e.Timestamp.IsZero() {
			ts = e.Timestamp.Format("2006-01-02T15:04:05")
		}
		fmt.Fprintf(&past, "- At %s: Risk was %s due to %s.\n", ts, orNA(string(e.RiskReport.RiskLevel)), orNA(e.RiskReport.Reasoning))
	}

	prompt := fmt.Sprintf(`You are a meteorologist analyzing weather trends for %s.
Here is the recent history (oldest to newest):
%s
Here is the NEWEST reading:
- Risk is %s due to %s.

Analyze this pattern and provide a single-sentence trend analysis.
(e.g., "Conditions are rapidly worsening," "The storm appears to be passing," "Risk remains high but stable.")`,
		city, past.String(), current.RiskLevel, current.Reasoning)

	trend, err := f.LLM.Generate(ctx, prompt)
	if err != nil {
		log.Error("Trend analysis failed", "error", err)
		return TrendError
	}
	trend = strings.TrimSpace(trend)
	log.Info("Trend identified", "trend", trend)
	return trend
}

// Recommender turns a risk report into a short list of actions.
type Recommender struct {
	LLM llm.Generator
}

func (r *Recommender) Recommend(ctx context.Context, report types.RiskReport) string {
	log := logger.FromContext(ctx).With("role", "recommend")
	if report.RiskLevel == types.RiskLow {
		log.Info("Risk is LOW; no actions needed")
		return CalmRecommendation
	}
	log.Info("Generating recommendations", "risk_level", report.RiskLevel)

	prompt := fmt.Sprintf(`You are an expert community safety advisor.
Risk Level: %s
Reason: %s
Weather Details: %s
CRITICAL TREND: %s
Based on all this information, especially the trend, provide a short,
clear, and actionable list of 3-5 recommendations for residents.
If the trend is "worsening," be more urgent.
Use bullet points. Do not use an introduction.`,
		report.RiskLevel, report.Reasoning, FormatDetails(report.Details), orNA(report.Trend))

	text, err := r.LLM.Generate(ctx, prompt)
	if err != nil {
		log.Error("Recommendation failed", "error", err)
		return RecommendError
	}
	return strings.TrimSpace(text)
}

// NewsAnalyzer keeps only the articles relevant to local safety.
type NewsAnalyzer struct {
	LLM llm.Generator
}

func (a *NewsAnalyzer) Analyze(ctx context.Context, articles []search.Result) string {
	log := logger.FromContext(ctx).With("role", "news")
	if len(articles) == 0 {
		log.Info("No articles to analyze")
		return NoRelevantNews
	}

	summaries := make([]string, 0, maxNewsInput)
	for i, article := range articles[:min(len(articles), maxNewsInput)] {
		summaries = append(summaries, fmt.Sprintf("ARTICLE %d:\nTitle: %s\nDescription: %s\nSource: %s\n",
			i+1, article.Title, orNA(article.Description), orNA(article.Source)))
	}
	log.Info("Analyzing news articles for relevance", "articles", len(summaries))

	prompt := fmt.Sprintf(`You are a local safety analyst. I have provided a list of news articles
below. Read them and identify ONLY the ones that are relevant to
immediate local safety, weather alerts, or major disruptions.
For each relevant article, provide a 1-sentence summary.
If no articles are relevant, just say "%s"
Format your response like this:
[Headline]: [Your 1-sentence summary]
Here are the articles:
%s`, NoRelevantNews, strings.Join(summaries, "\n---\n"))

	text, err := a.LLM.Generate(ctx, prompt)
	if err != nil {
		log.Error("News analysis failed", "error", err)
		return NewsError
	}
	return strings.TrimSpace(text)
}

// EmailComposer writes the subject and HTML body of an alert email.
type EmailComposer struct {
	LLM llm.Generator
}

// Subject depends only on the risk level, city and reasoning.
func Subject(entry *types.LogEntry) string {
	rr := entry.RiskReport
	switch rr.RiskLevel {
	case types.RiskHigh:
		return fmt.Sprintf("URGENT Safety Alert for %s: %s", entry.City, rr.Reasoning)
	case types.RiskModerate:
		return fmt.Sprintf("Weather Advisory for %s: %s", entry.City, rr.Reasoning)
	default:
		return fmt.Sprintf("Weekly Weather Summary for %s", entry.City)
	}
}

func (c *EmailComposer) Compose(ctx context.Context, entry *types.LogEntry) notify.Message {
	log := logger.FromContext(ctx).With("role", "email")
	log.Info("Composing alert email", "city", entry.City)

	rr := entry.RiskReport
	msg := notify.Message{Subject: Subject(entry)}

	recommendations := entry.Recommendations
	if strings.Contains(recommendations, errorSentinel) {
		recommendations = notAvailable
	}
	news := entry.AnalyzedNews
	if strings.Contains(news, errorSentinel) {
		news = notAvailable
	}

	prompt := fmt.Sprintf(`You are a communications assistant. Generate a professional and colorful
HTML email body for a weather alert.
DATA:
- City: %s
- Risk Level: %s
- Reason: %s
- Trend: %s
- Details: %s
- Recommendations: %s
- Local News: %s
INSTRUCTIONS:
- Use a friendly but professional tone.
- Use inline CSS for colors and styling (e.g., <div style="...">).
- Create a main container (max-width: 600px).
- Use a header with a main title.
- Use a color bar at the top (RED for HIGH risk, ORANGE for MODERATE, GREEN for LOW).
- Format the "Details" (temp, wind) in a clean table or list.
- Format "Recommendations" and "Local News" as bullet lists.
- Add a footer: "Stay safe, The ClimateSense Team".
Provide ONLY the HTML code, starting with <html> and ending with </html>.`,
		entry.City, rr.RiskLevel, rr.Reasoning, orNA(rr.Trend), FormatDetails(rr.Details), recommendations, news)

	html, err := c.LLM.Generate(ctx, prompt)
	if err != nil {
		log.Error("Email composition failed; falling back to plain text", "error", err)
		msg.HTMLBody = fmt.Sprintf("Risk Level: %s\nReason: %s\nTrend: %s", rr.RiskLevel, rr.Reasoning, rr.Trend)
		return msg
	}
	msg.HTMLBody = utils.StripCodeFences(html)
	return msg
}

// FormatDetails renders risk details for prompts and console output.
func FormatDetails(d types.RiskDetails) string {
	return fmt.Sprintf("%s | %s°C | %s m/s wind", d.Description, number(d.TempC), number(d.WindSpeedMS))
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}
