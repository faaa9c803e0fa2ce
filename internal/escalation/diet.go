// internal/escalation/diet.go
package escalation

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// subtrees that carry no structure worth sending
const dietStripped = "script, style, noscript, template, link, meta, svg, img, picture, canvas, iframe, yt-icon, yt-image, yt-img-shadow, tp-yt-iron-icon"

var elementName = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// Diet reduces markup to the elements and attributes a selector can refer to.
// It only shrinks the payload; selectors proposed against the reduced markup
// are still validated against the full page.
type Diet struct {
	policy *bluemonday.Policy
}

// NewDiet builds the attribute allowlist: identity and class attributes, links,
// labels, data-* and the boolean markers feed renderers use.
func NewDiet() *Diet {
	p := bluemonday.NewPolicy()
	p.AllowElementsMatching(elementName)
	p.AllowNoAttrs().OnElementsMatching(elementName)
	p.AllowAttrs("id", "class", "title", "aria-label", "role", "href").Globally()
	p.AllowAttrs("is-shorts", "is-slim-media", "overlay-style", "video-id", "page-subtype").Globally()
	p.AllowDataAttributes()
	p.AllowStandardURLs()
	p.SkipElementsContent("script", "style", "noscript", "template", "svg")
	return &Diet{policy: p}
}

// Apply strips heavy subtrees from sel and sanitizes the remaining markup.
// sel is not modified.
func (d *Diet) Apply(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	clone := sel.First().Clone()
	clone.Find(dietStripped).Remove()
	markup, err := goquery.OuterHtml(clone)
	if err != nil {
		return ""
	}
	return collapseWhitespace(d.policy.Sanitize(markup))
}

var interTagSpace = regexp.MustCompile(`>\s+<`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(interTagSpace.ReplaceAllString(s, "><"))
}
