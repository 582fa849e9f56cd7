package enrichment

import (
	"strings"
	"unicode/utf8"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

const voiceBaseURL = "https://dict.youdao.com/dictvoice?audio="

var (
	selMainTrans     = cascadia.MustCompile("#phrsListTab .trans-container")
	selListItem      = cascadia.MustCompile("li")
	selWebTrans      = cascadia.MustCompile("#tWebTrans")
	selWebTitle      = cascadia.MustCompile(".title span")
	selWebContent    = cascadia.MustCompile(".collapse-content")
	selProfItem      = cascadia.MustCompile("#tPETrans li")
	selProfTitle     = cascadia.MustCompile(".title")
	selProfParagraph = cascadia.MustCompile("p")
	selPronounce     = cascadia.MustCompile(".baav .pronounce")
	selPhonetic      = cascadia.MustCompile(".phonetic")
	selAnchor        = cascadia.MustCompile("a")
)

// parsePage extracts everything the dictionary page offers. Missing blocks
// yield empty lists; parsing never fails.
func parsePage(headword, page string) *Result {
	res := &Result{
		Headword:                headword,
		Definitions:             []string{},
		WebDefinitions:          []string{},
		ProfessionalDefinitions: []string{},
		Pronunciations:          []Pronunciation{},
	}

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return res
	}

	res.Definitions = mainDefinitions(doc)
	res.WebDefinitions = webDefinitions(doc)
	res.ProfessionalDefinitions = professionalDefinitions(doc)
	res.Pronunciations = pronunciations(doc)
	return res
}

func mainDefinitions(doc *html.Node) []string {
	out := []string{}
	container := selMainTrans.MatchFirst(doc)
	if container == nil {
		return out
	}
	for _, li := range selListItem.MatchAll(container) {
		if text := strings.TrimSpace(textContent(li)); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func webDefinitions(doc *html.Node) []string {
	out := []string{}
	for _, block := range selWebTrans.MatchAll(doc) {
		var titles []string
		for _, span := range selWebTitle.MatchAll(block) {
			if t := trimFirstNewline(textContent(span)); t != "" {
				titles = append(titles, t)
			}
		}
		content := ""
		if n := selWebContent.MatchFirst(block); n != nil {
			content = trimFirstNewline(textContent(n))
		}
		if len(titles) > 0 || content != "" {
			out = append(out, strings.Join(titles, " ")+"\n"+content)
		}
	}
	return out
}

func professionalDefinitions(doc *html.Node) []string {
	out := []string{}
	for _, li := range selProfItem.MatchAll(doc) {
		title := firstText(li, selProfTitle)
		para := firstText(li, selProfParagraph)
		if title != "" || para != "" {
			out = append(out, title+"\n"+para)
		}
	}
	return out
}

func pronunciations(doc *html.Node) []Pronunciation {
	out := []Pronunciation{}
	for _, el := range selPronounce.MatchAll(doc) {
		p := Pronunciation{
			Phonetic: firstText(el, selPhonetic),
		}
		if r, _ := utf8.DecodeRuneInString(strings.TrimSpace(textContent(el))); r != utf8.RuneError {
			p.Label = string(r)
		}
		if a := selAnchor.MatchFirst(el); a != nil {
			if rel := attr(a, "data-rel"); rel != "" {
				p.AudioURL = voiceBaseURL + rel
			}
		}
		out = append(out, p)
	}
	return out
}

func firstText(n *html.Node, sel cascadia.Selector) string {
	m := sel.MatchFirst(n)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(textContent(m))
}

func trimFirstNewline(s string) string {
	return strings.TrimSpace(strings.Replace(s, "\n", "", 1))
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
