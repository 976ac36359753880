package scraper

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/habernet/newscore/internal/textutil"
)

// Scoring weights for candidate selection. The target is unstructured
// real-world markup with no schema guarantee, so these stay tunable as named
// constants rather than inline literals.
const (
	titleIdealMinLen   = 20
	titleIdealMaxLen   = 150
	titleLengthBonus   = 30.0
	titleShortBonus    = 10.0
	titlePositionBonus = 20.0
	titleClassBonus    = 25.0
	titleParentBonus   = 15.0
	titleJunkPenalty   = 40.0

	metaTitleMinLen = 10

	bodyMinTextLen      = 200
	bodyLenTier1        = 500
	bodyLenTier2        = 1000
	bodyLenTier3        = 2000
	bodyLenTier1Bonus   = 15.0
	bodyLenTier2Bonus   = 20.0
	bodyLenTier3Bonus   = 25.0
	bodyClassBonus      = 25.0
	bodyJunkPenalty     = 50.0
	paragraphBonus      = 15.0
	paragraphDenseBonus = 10.0
	paragraphThreshold  = 3
	paragraphDense      = 5

	containerRatioPenalty = 30.0
	containerTextFloor    = 100 // min chars per child block before the ratio penalty
	linkRatioPenalty      = 40.0
	linkRatioLimit        = 0.3
	linkRatioHardLimit    = 0.5
)

var titleKeywords = []string{"title", "headline", "heading", "baslik", "manset"}

var contentKeywords = []string{
	"content", "article", "body", "text", "story", "post", "entry",
	"detail", "icerik", "haber", "yazi",
}

var junkKeywords = []string{
	"comment", "sidebar", "footer", "menu", "share", "social",
	"advert", "banner", "widget", "promo", "related", "reklam",
	"ad-", "-ad", "ads",
}

// scoreHeading ranks one heading candidate. position is the index of the
// heading in document order, total the number of candidates.
func scoreHeading(sel *goquery.Selection, position, total int) float64 {
	text := textutil.CollapseWhitespace(sel.Text())
	length := utf8.RuneCountInString(text)
	if length == 0 {
		return -1
	}

	var score float64

	switch {
	case length >= titleIdealMinLen && length <= titleIdealMaxLen:
		score += titleLengthBonus
	case length >= metaTitleMinLen:
		score += titleShortBonus
	}

	if total > 0 && position < (total+2)/3 {
		score += titlePositionBonus
	}

	attrs := classAndID(sel)
	if containsAny(attrs, titleKeywords) {
		score += titleClassBonus
	}
	if containsAny(attrs, junkKeywords) {
		score -= titleJunkPenalty
	}

	if parent := sel.Parent(); parent.Length() > 0 {
		if containsAny(classAndID(parent), titleKeywords) || containsAny(classAndID(parent), contentKeywords) {
			score += titleParentBonus
		}
	}

	return score
}

// scoreContainer ranks one block-level container as an article body
// candidate. Containers under the minimum text length score below zero.
func scoreContainer(sel *goquery.Selection) float64 {
	text := textutil.CollapseWhitespace(sel.Text())
	length := utf8.RuneCountInString(text)
	if length < bodyMinTextLen {
		return -1
	}

	var score float64

	if length >= bodyLenTier1 {
		score += bodyLenTier1Bonus
	}
	if length >= bodyLenTier2 {
		score += bodyLenTier2Bonus
	}
	if length >= bodyLenTier3 {
		score += bodyLenTier3Bonus
	}

	attrs := classAndID(sel)
	if containsAny(attrs, contentKeywords) {
		score += bodyClassBonus
	}
	if containsAny(attrs, junkKeywords) {
		score -= bodyJunkPenalty
	}

	paragraphs := sel.ChildrenFiltered("p").Length()
	if paragraphs > paragraphThreshold {
		score += paragraphBonus
	}
	if paragraphs > paragraphDense {
		score += paragraphDenseBonus
	}

	// A pile of nested blocks with little text is layout, not content.
	blocks := sel.ChildrenFiltered("div").Length() + sel.ChildrenFiltered("section").Length()
	if blocks > 0 && length/(blocks+1) < containerTextFloor {
		score -= containerRatioPenalty
	}

	// High link density signals navigation or ads masquerading as content.
	linkLen := 0
	sel.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkLen += utf8.RuneCountInString(textutil.CollapseWhitespace(a.Text()))
	})
	ratio := float64(linkLen) / float64(length)
	if ratio > linkRatioLimit {
		score -= linkRatioPenalty
	}
	if ratio > linkRatioHardLimit {
		score -= linkRatioPenalty
	}

	return score
}

func classAndID(sel *goquery.Selection) string {
	class, _ := sel.Attr("class")
	id, _ := sel.Attr("id")
	return strings.ToLower(class + " " + id)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
