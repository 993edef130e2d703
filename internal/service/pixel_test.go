package service_test

import (
	"testing"

	"github.com/SergeiKhy/shuffle/internal/service"
	"github.com/stretchr/testify/assert"
)

// TestDiagnosePixel проверяет разбор сниппетов пикселя
func TestDiagnosePixel(t *testing.T) {
	tests := []struct {
		name        string
		snippet     string
		wantScripts int
		wantTikTok  bool
		wantLoad    bool
		wantTrack   bool
		wantPixelID string
	}{
		{
			name:    "empty",
			snippet: "   ",
		},
		{
			name: "full snippet",
			snippet: `<script>
!function (w, d, t) { w.TiktokAnalyticsObject=t;var ttq=w[t]=w[t]||[];
  ttq.load('C4ABCDEF123');
  ttq.page();
}(window, document, 'ttq');
</script>`,
			wantScripts: 1,
			wantTikTok:  true,
			wantLoad:    true,
			wantTrack:   true,
			wantPixelID: "C4ABCDEF123",
		},
		{
			name:        "bare script without tag",
			snippet:     `ttq.load("PIXEL9"); ttq.track('ClickButton')`,
			wantTikTok:  true,
			wantLoad:    true,
			wantTrack:   true,
			wantPixelID: "PIXEL9",
		},
		{
			name:        "external script only",
			snippet:     `<script src="https://analytics.tiktok.com/i18n/pixel/events.js"></script><script>console.log(1)</script>`,
			wantScripts: 2,
			wantTikTok:  true,
		},
		{
			name:        "unrelated script",
			snippet:     `<script>gtag('config', 'G-XXXX');</script>`,
			wantScripts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diag := service.DiagnosePixel(tt.snippet)

			assert.Equal(t, tt.wantScripts, diag.ScriptCount)
			assert.Equal(t, tt.wantScripts > 0, diag.HasScriptTag)
			assert.Equal(t, tt.wantTikTok, diag.HasTikTok)
			assert.Equal(t, tt.wantLoad, diag.HasLoadCall)
			assert.Equal(t, tt.wantTrack, diag.HasTrackCall)
			assert.Equal(t, tt.wantPixelID, diag.PixelID)
		})
	}
}
