package digest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ossterm/marketbot/internal/market"
)

const (
	summaryPrompt = "다음 뉴스들의 핵심 내용을 3-4줄로 요약해주세요. " +
		"각 뉴스의 중요도를 고려하여 투자자 관점에서 중요한 내용을 중심으로 요약해주세요:\n\n"
	summarySystem = "You are a financial news analyst. Write the answer in Korean."
	summaryTopN   = 5

	alertPrefix = "⚠️ 시스템 오류 발생\n"
)

// SummaryPrompt lists the top headlines as "title: summary" lines.
func SummaryPrompt(articles []market.Article) string {
	if len(articles) > summaryTopN {
		articles = articles[:summaryTopN]
	}
	lines := make([]string, 0, len(articles))
	for _, a := range articles {
		lines = append(lines, a.Title+": "+a.Summary)
	}
	return summaryPrompt + strings.Join(lines, "\n")
}

// Format renders the Korean daily report text.
func Format(at time.Time, quotes []market.Quote, fg *market.FearGreed, summary string) string {
	var lines []string
	lines = append(lines, "📊 일일 시장 리포트 ("+at.Format("2006-01-02 15:04")+")")
	lines = append(lines, "\n💹 주요 지수 동향")
	for _, q := range quotes {
		lines = append(lines, fmt.Sprintf("• %s: %s (%+.2f%%)", q.Name, formatPrice(q.Price), q.ChangePercent))
	}

	if fg != nil {
		lines = append(lines, "\n🎯 투자 심리 지표")
		lines = append(lines, "• Fear & Greed 지수: "+strconv.FormatFloat(fg.Score, 'f', -1, 64))
		lines = append(lines, "• 현재 시장 심리: "+market.Mood(fg.Score))
	}

	if summary = strings.TrimSpace(summary); summary != "" {
		lines = append(lines, "\n📰 주요 뉴스 요약")
		lines = append(lines, summary)
	}

	lines = append(lines,
		"\n\n💡 투자 유의사항",
		"- 본 리포트는 투자 참고 자료일 뿐, 투자 권유가 아닙니다",
		"- 투자 결정은 본인의 판단과 책임하에 신중히 이루어져야 합니다",
	)
	return strings.Join(lines, "\n")
}

// Alert is the message sent instead of the report when a run fails.
func Alert(err error) string {
	return alertPrefix + "일일 리포트 생성 중 오류 발생: " + err.Error()
}

// formatPrice renders 5123.4 as "5,123.40".
func formatPrice(v float64) string {
	s := strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String() + "." + frac
}
