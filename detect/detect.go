// Package detect classifies fetched pages as clean or anti-bot challenges.
package detect

import (
	"strings"

	"github.com/aluiziolira/go-scrape-tickets/fetch"
)

// Category names the kind of challenge standing in front of the content.
type Category string

const (
	CategoryInterstitial Category = "interstitial"
	CategoryCaptcha      Category = "captcha"
	CategoryUnknownBlock Category = "unknown-block"
)

// Verdict is the outcome of classifying one page.
type Verdict struct {
	Challenged bool
	Category   Category
}

// Clean is the verdict for an ordinary content page.
var Clean = Verdict{}

// Challenged builds a verdict for the given category.
func Challenged(c Category) Verdict {
	return Verdict{Challenged: true, Category: c}
}

// Interstitial phrases shown by WAFs while they evaluate the client.
var interstitialMarkers = []string{
	"verify you are human",
	"checking your browser",
	"just a moment",
	"please wait while we verify",
	"ddos protection by",
	"attention required",
	"enable javascript and cookies to continue",
}

// Captcha widget markers, matched against markup rather than visible text.
var captchaMarkers = []string{
	"g-recaptcha",
	"recaptcha/api.js",
	"hcaptcha.com/1/api.js",
	"h-captcha",
	"cf-turnstile",
	"challenges.cloudflare.com/turnstile",
	"px-captcha",
	"geo.captcha-delivery.com",
	"funcaptcha",
}

// Hard-block phrases that carry no recovery path beyond backing off.
var blockMarkers = []string{
	"access denied",
	"access to this page has been denied",
	"you have been blocked",
	"request unsuccessful. incapsula",
	"pardon our interruption",
	"unusual traffic from your computer network",
}

// Classify inspects page content for challenge signals. Pure function: no
// side effects, no network access.
func Classify(page fetch.Page) Verdict {
	html := strings.ToLower(page.HTML)
	title := strings.ToLower(page.Title)

	// Captcha wins over interstitial: an interstitial that embeds a captcha
	// widget cannot be waited out.
	for _, marker := range captchaMarkers {
		if strings.Contains(html, marker) {
			return Challenged(CategoryCaptcha)
		}
	}

	for _, marker := range interstitialMarkers {
		if strings.Contains(html, marker) || strings.Contains(title, marker) {
			return Challenged(CategoryInterstitial)
		}
	}

	for _, marker := range blockMarkers {
		if strings.Contains(html, marker) || strings.Contains(title, marker) {
			return Challenged(CategoryUnknownBlock)
		}
	}

	// A blockish status is a block even without a recognizable phrase.
	if isBlockStatus(page.StatusCode) {
		return Challenged(CategoryUnknownBlock)
	}

	return Clean
}

func isBlockStatus(status int) bool {
	switch status {
	case 403, 429, 503:
		return true
	}
	return false
}
