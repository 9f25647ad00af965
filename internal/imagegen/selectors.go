// File: internal/imagegen/selectors.go
package imagegen

// The third-party product exposes no API; everything is located through CSS
// selectors against its rendered DOM. Selectors are tried strictly in order
// and the first strategy that matches wins -- no merging across strategies.
// When the product ships a new frontend these lists are the only thing that
// should need updating.

// Strategy is one named selector attempt in an ordered fallback chain.
type Strategy struct {
	Name     string
	Selector string
}

// modeStrategies locate the control that switches the chat into image mode.
// A miss here is non-fatal; the page may already default to the right mode.
var modeStrategies = []Strategy{
	{Name: "aria-image", Selector: `button[aria-label*="image"]`},
	{Name: "aria-image-cap", Selector: `button[aria-label*="Image"]`},
	{Name: "tab-image", Selector: `div[role="tab"][aria-label*="image"]`},
}

// inputStrategies locate the editable prompt region. Ordered from most to
// least specific; the generic contenteditable match is the last resort.
var inputStrategies = []Strategy{
	{Name: "placeholder-imagine", Selector: `div[contenteditable="true"][data-placeholder*="imagine"]`},
	{Name: "tiptap", Selector: `div.tiptap[contenteditable="true"]`},
	{Name: "contenteditable", Selector: `div[contenteditable="true"]`},
}

// submitStrategies locate the submit button. If none yields an enabled
// button the prompt field receives a carriage return instead.
var submitStrategies = []Strategy{
	{Name: "submit-aria", Selector: `button[type="submit"][aria-label="Submit"]`},
	{Name: "aria-submit", Selector: `button[aria-label="Submit"]`},
	{Name: "type-submit", Selector: `button[type="submit"]`},
}

// resultStrategies locate generated-image placeholders after submission.
var resultStrategies = []Strategy{
	{Name: "listitem-generated", Selector: `div[role="listitem"] img[alt*="Generated"]`},
	{Name: "any-generated", Selector: `img[alt*="Generated"]`},
}

// downloadStrategies locate the in-app download control inside an item's
// detail view. Hidden matches are skipped; when the match is the svg icon
// itself the clickable parent is used.
var downloadStrategies = []Strategy{
	{Name: "aria-download", Selector: `button[aria-label="Download"]`},
	{Name: "lucide-download", Selector: `svg.lucide-download`},
}

// countFunc reports how many elements a selector currently matches.
type countFunc func(selector string) (int, error)

// firstMatch walks the strategies in order and returns the first one whose
// selector matches at least one element, together with the match count.
// A strategy that errors is skipped, exactly like a strategy that matches
// nothing. Returns ok=false when every strategy came up empty.
func firstMatch(strategies []Strategy, count countFunc) (Strategy, int, bool) {
	for _, s := range strategies {
		n, err := count(s.Selector)
		if err != nil {
			continue
		}
		if n > 0 {
			return s, n, true
		}
	}
	return Strategy{}, 0, false
}
