package template

import "strings"

// Fragment is one node of a SQL template: static text plus conditionally
// included children. Test carries a child's inclusion condition and is
// empty on unconditional fragments.
type Fragment struct {
	Text     string
	Test     string
	Children []*Fragment
}

// CollectText returns the fragment's text and every descendant's text in
// document order. Conditional children are always included; the scan
// cares about what the template can produce, not about one rendering.
func (f *Fragment) CollectText() string {
	if f == nil {
		return ""
	}
	var parts []string
	f.appendText(&parts)
	return strings.Join(parts, " ")
}

func (f *Fragment) appendText(parts *[]string) {
	if f == nil {
		return
	}
	if t := strings.TrimSpace(f.Text); t != "" {
		*parts = append(*parts, t)
	}
	for _, child := range f.Children {
		child.appendText(parts)
	}
}

// windowGuarded reports whether some conditional fragment includes the
// placeholder under a null test on its name. Such a guard makes the page
// window optional: when the caller omits the parameter, the condition
// drops out and the query runs unbounded.
func windowGuarded(f *Fragment, placeholder, name string) bool {
	if f == nil {
		return false
	}
	if f.Test != "" {
		test := strings.ToLower(f.Test)
		content := strings.ToLower(f.CollectText())
		if strings.Contains(content, strings.ToLower(placeholder)) &&
			strings.Contains(test, name) && strings.Contains(test, "!= null") {
			return true
		}
	}
	for _, child := range f.Children {
		if windowGuarded(child, placeholder, name) {
			return true
		}
	}
	return false
}
