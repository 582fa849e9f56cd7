package schema

import (
	"fmt"
	"strings"
)

// CardTemplates returns the cloze template built from f.
func CardTemplates(f Fields) (front, back string) {
	return cardText(true, f), cardText(false, f)
}

// cardText renders one side of the cloze card. Field 4 is the cloze target,
// field 2 the context, field 5 a hint on the front, fields 6-8 the source
// link. Sections whose field is missing from f are left out.
func cardText(front bool, f Fields) string {
	var b strings.Builder

	cloze, ctx := f.Name(Translation), f.Name(Context)
	if cloze != "" {
		fmt.Fprintf(&b, "{{#%s}}\n", cloze)
		fmt.Fprintf(&b, "<section>{{cloze:%s}}</section>\n", cloze)
		fmt.Fprintf(&b, "<section>{{type:cloze:%s}}</section>\n", cloze)
		writeOptional(&b, ctx, "<section>{{%s}}</section>\n")
		fmt.Fprintf(&b, "{{/%s}}\n\n", cloze)

		fmt.Fprintf(&b, "{{^%s}}\n", cloze)
		if head := f.Name(Phonetic); head != "" {
			fmt.Fprintf(&b, "<h1>{{%s}}</h1>\n", head)
		}
		writeOptional(&b, ctx, "<section>{{%s}}</section>\n")
		fmt.Fprintf(&b, "{{/%s}}\n\n", cloze)
	}

	if hint := f.Name(Pronounce); hint != "" {
		prefix := ""
		if front {
			prefix = "hint:"
		}
		fmt.Fprintf(&b, "{{#%s}}\n<section>{{%s%s}}</section>\n{{/%s}}\n\n", hint, prefix, hint, hint)
	}

	if title := f.Name(URL); title != "" {
		fmt.Fprintf(&b, "{{#%s}}\n<section class=\"tsource\">\n<hr />\n", title)
		if fav := f.Name(Date + 1); fav != "" {
			fmt.Fprintf(&b, "{{#%s}}\n<span class=\"favicon\" style=\"background-image:url({{%s}})\"></span>\n{{/%s}}\n", fav, fav, fav)
		}
		href := f.Name(Date)
		fmt.Fprintf(&b, "<a href=\"{{%s}}\">{{%s}}</a>\n</section>\n{{/%s}}\n", href, title, title)
	}

	return b.String()
}

func writeOptional(b *strings.Builder, field, format string) {
	if field == "" {
		return
	}
	fmt.Fprintf(b, "{{#%s}}\n", field)
	fmt.Fprintf(b, format, field)
	fmt.Fprintf(b, "{{/%s}}\n", field)
}

// CSS is the stylesheet shipped with the note type.
const CSS = `.card {
  font-family: arial;
  font-size: 20px;
  text-align: center;
  color: #333;
  background-color: white;
}

a {
  color: #5caf9e;
}

input {
  border: 1px solid #eee;
}

section {
  margin: 1em 0;
}

.trans {
  border: 1px solid #eee;
  padding: 0.5em;
}

.trans_title {
  display: block;
  font-size: 0.9em;
  font-weight: bold;
}

.trans_content {
  margin-bottom: 0.5em;
}

.cloze {
  font-weight: bold;
  color: #f9690e;
}

.tsource {
  position: relative;
  font-size: .8em;
}

.tsource img {
  height: .7em;
}

.tsource a {
  text-decoration: none;
}

.typeGood {
  color: #fff;
  background: #1EBC61;
}

.typeBad {
  color: #fff;
  background: #F75C4C;
}

.typeMissed {
  color: #fff;
  background: #7C8A99;
}

.favicon {
  display: inline-block;
  width: 1em;
  height: 1em;
  background: center/cover no-repeat;
}
`
