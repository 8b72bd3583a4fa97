package classify

import "strings"

// Uncategorized is returned for titles outside the module table.
const Uncategorized = "Uncategorized"

// TitleRule maps an exact, lower-cased course title to a module.
type TitleRule struct {
	Title  string
	Module string
}

// Modules groups course titles into the three programme areas. Matching is
// exact after trimming and lower-casing.
var Modules = []TitleRule{
	{"caring for your body after treatment", "Physical Health"},
	{"nourishment", "Physical Health"},
	{"sleep", "Physical Health"},
	{"sexual wellbeing", "Physical Health"},
	{"movement", "Physical Health"},
	{"dealing with brain fog", "Physical Health"},

	{"self-identity", "Mental and Personal Wellbeing"},
	{"emotional wellbeing", "Mental and Personal Wellbeing"},
	{"body image", "Mental and Personal Wellbeing"},

	{"social media and the internet", "Social and Work"},
	{"practical issues", "Social and Work"},
	{"connections", "Social and Work"},
	{"education and vocation", "Social and Work"},
}

// ModuleForTitle resolves a course or post title to its module.
func ModuleForTitle(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	for _, r := range Modules {
		if r.Title == t {
			return r.Module
		}
	}
	return Uncategorized
}
