package scraper

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// captchaMarkers are artifacts of the challenge walls the listing sites
// actually serve: reCAPTCHA and hCaptcha widget markup, DataDome's
// interstitial host, the Google sorry page, and the generic human checks.
var captchaMarkers = []string{
	"g-recaptcha",
	"recaptcha/api.js",
	"h-captcha",
	"hcaptcha.com",
	"captcha-delivery.com",
	"unusual traffic from your computer",
	"/sorry/index",
	"verify you are human",
	"are you a robot",
}

// DetectBlock checks an HTTP response for signs of anti-bot protection. A
// blocked source is a structural failure for static adapters: the selectors
// will never match a challenge page.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	// Cloudflare: 403/503 with cf-* headers.
	if resp.StatusCode == 403 || resp.StatusCode == 503 {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" {
			return true, BlockCloudflare
		}
		if resp.Header.Get("server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	// Cloudflare challenge page markers.
	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "attention required! | cloudflare") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockCloudflare
	}

	// Captcha walls. Markers are widget and interstitial artifacts, not
	// the bare word: a listing page that merely mentions a captcha in
	// prose is not a block.
	for _, marker := range captchaMarkers {
		if strings.Contains(lower, marker) {
			return true, BlockCaptcha
		}
	}

	// JS-only shell: very small body with noscript or meta refresh.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, "meta http-equiv=\"refresh\"") {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
