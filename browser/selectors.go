package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
)

// TextButton returns an XPath selector for a button whose text contains s.
// This stands in for sites that expose no stable attribute on a control.
func TextButton(s string) string {
	return fmt.Sprintf("//button[contains(., %s)]", XPathString(s))
}

// ExactButton returns an XPath selector for a button whose visible text is
// exactly s, so "Reserve" does not match a card already showing "Reserved".
func ExactButton(s string) string {
	return fmt.Sprintf("//button[normalize-space(.) = %s]", XPathString(s))
}

// TextMarker returns an XPath selector matching any element with a text
// node containing s.
func TextMarker(s string) string {
	return fmt.Sprintf("//*[text()[contains(., %s)]]", XPathString(s))
}

// XPathString quotes s as an XPath string literal. Strings holding both
// quote kinds need the concat() form.
func XPathString(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if part != "" {
			quoted = append(quoted, "'"+part+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// queryOpt picks the chromedp query strategy for a selector: XPath goes
// through DOM search, everything else through querySelector.
func queryOpt(sel string) chromedp.QueryOption {
	if isXPath(sel) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func isXPath(sel string) bool {
	return strings.HasPrefix(sel, "//") || strings.HasPrefix(sel, "(")
}
