package service

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/SergeiKhy/shuffle/internal/models"
)

var (
	pixelIDPattern   = regexp.MustCompile(`ttq\.load\(\s*['"]([A-Za-z0-9]+)['"]`)
	trackCallPattern = regexp.MustCompile(`ttq\.(track|page)\s*\(`)
)

// DiagnosePixel разбирает HTML-сниппет пикселя TikTok.
// LinkID и CompletePayment заполняет вызывающий.
func DiagnosePixel(snippet string) models.PixelDiagnostics {
	var diag models.PixelDiagnostics

	snippet = strings.TrimSpace(snippet)
	if snippet == "" {
		return diag
	}

	// Сниппет без <script> тоже разбираем как текст скрипта
	code := snippet
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snippet))
	if err == nil {
		scripts := doc.Find("script")
		diag.ScriptCount = scripts.Length()
		diag.HasScriptTag = diag.ScriptCount > 0

		if diag.HasScriptTag {
			var b strings.Builder
			scripts.Each(func(_ int, sel *goquery.Selection) {
				b.WriteString(sel.Text())
				if src, ok := sel.Attr("src"); ok {
					b.WriteString(" ")
					b.WriteString(src)
				}
				b.WriteString("\n")
			})
			code = b.String()
		}
	}

	lower := strings.ToLower(code)
	diag.HasTikTok = strings.Contains(lower, "tiktok") || strings.Contains(code, "ttq")
	diag.HasLoadCall = strings.Contains(code, "ttq.load")
	diag.HasTrackCall = trackCallPattern.MatchString(code)

	if m := pixelIDPattern.FindStringSubmatch(code); m != nil {
		diag.PixelID = m[1]
	}

	return diag
}
