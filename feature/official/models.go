package official

import (
	"regexp"
	"strings"

	"card-sync/core/utils"
	"card-sync/feature/matching"
)

// rawCard is the card shape returned by the card browser.
type rawCard struct {
	Code      string   `json:"code"`
	NameEN    string   `json:"name_en"`
	TypeEN    string   `json:"type_en"`
	JobEN     string   `json:"job_en"`
	TextEN    string   `json:"text_en"`
	Element   []string `json:"element"`
	Rarity    string   `json:"rarity"`
	Cost      any      `json:"cost"`
	Power     any      `json:"power"`
	Category1 string   `json:"category_1"`
	Category2 string   `json:"category_2"`
	Multicard any      `json:"multicard"`
	ExBurst   any      `json:"ex_burst"`
	Images    struct {
		Thumbs []string `json:"thumbs"`
		Full   []string `json:"full"`
	} `json:"images"`
}

type cardsResponse struct {
	Count int       `json:"count"`
	Cards []rawCard `json:"cards"`
}

// Images are the official image references of a card.
type Images struct {
	Full   []string `json:"full"`
	Thumbs []string `json:"thumbs"`
}

// Record is an official card translated into the catalog vocabulary.
type Record struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Job       string   `json:"job"`
	Category  string   `json:"category"`
	Rarity    string   `json:"rarity"`
	Cost      string   `json:"cost"`
	Power     string   `json:"power"`
	Elements  []string `json:"elements"`
	Text      string   `json:"text"`
	Images    Images   `json:"images"`
	Multicard bool     `json:"multicard"`
	ExBurst   bool     `json:"exBurst"`
}

// Entry returns the matching view of the record.
func (r Record) Entry() matching.Entry {
	return matching.Entry{
		Code: r.Code,
		Attributes: matching.Attributes{
			Power:    r.Power,
			Cost:     r.Cost,
			Job:      r.Job,
			Category: r.Category,
			Rarity:   r.Rarity,
		},
	}
}

var elementGlyphs = map[string]string{
	"火": "Fire",
	"氷": "Ice",
	"風": "Wind",
	"土": "Earth",
	"雷": "Lightning",
	"水": "Water",
	"光": "Light",
	"闇": "Dark",
}

var textGlyphs = map[string]string{
	"ダル": "Dull",
	"S":  "S",
	"X":  "X",
}

// TranslateElement maps an element glyph to its English name. Unknown values pass through.
func TranslateElement(glyph string) string {
	g := strings.TrimSpace(glyph)
	if name, ok := elementGlyphs[g]; ok {
		return name
	}
	return g
}

var (
	glyphToken = regexp.MustCompile(`《([^》]*)》`)
	markupTag  = regexp.MustCompile(`\[\[/?[a-z0-9]*\]\]`)
	spaceRun   = regexp.MustCompile(`[ \t]+`)
)

// PlainText converts card browser markup into plain text. Line breaks become newlines, element
// and action glyphs become {Name} tokens and formatting tags are dropped.
func PlainText(markup string) string {
	s := strings.ReplaceAll(markup, "[[br]]", "\n")
	s = glyphToken.ReplaceAllStringFunc(s, func(tok string) string {
		inner := glyphToken.FindStringSubmatch(tok)[1]
		if name, ok := elementGlyphs[inner]; ok {
			return "{" + name + "}"
		}
		if name, ok := textGlyphs[inner]; ok {
			return "{" + name + "}"
		}
		return "{" + inner + "}"
	})
	s = markupTag.ReplaceAllString(s, "")

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(l, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func toRecord(c rawCard) Record {
	elements := make([]string, 0, len(c.Element))
	for _, g := range c.Element {
		if e := TranslateElement(g); e != "" {
			elements = append(elements, e)
		}
	}
	return Record{
		Code:      strings.TrimSpace(c.Code),
		Name:      strings.TrimSpace(c.NameEN),
		Type:      c.TypeEN,
		Job:       c.JobEN,
		Category:  c.Category1,
		Rarity:    c.Rarity,
		Cost:      utils.ToString(c.Cost),
		Power:     utils.ToString(c.Power),
		Elements:  elements,
		Text:      PlainText(c.TextEN),
		Images:    Images{Full: c.Images.Full, Thumbs: c.Images.Thumbs},
		Multicard: utils.ToBool(c.Multicard),
		ExBurst:   utils.ToBool(c.ExBurst),
	}
}
