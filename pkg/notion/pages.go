package notion

import (
	"time"

	"github.com/jomei/notionapi"
)

// MaxTextLength is the Notion limit for one rich text object.
const MaxTextLength = 2000

// RichText splits s into rich text objects no longer than MaxTextLength.
func RichText(s string) []notionapi.RichText {
	var out []notionapi.RichText
	r := []rune(s)
	for len(r) > 0 {
		n := min(len(r), MaxTextLength)
		out = append(out, notionapi.RichText{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: string(r[:n])},
		})
		r = r[n:]
	}
	return out
}

// Title builds a title property.
func Title(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{Type: notionapi.PropertyTypeTitle, Title: RichText(s)}
}

// Text builds a rich text property.
func Text(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: RichText(s)}
}

// Status builds a status property.
func Status(name string) notionapi.StatusProperty {
	return notionapi.StatusProperty{Status: notionapi.Status{Name: name}}
}

// Select builds a select property.
func Select(name string) notionapi.SelectProperty {
	return notionapi.SelectProperty{Type: notionapi.PropertyTypeSelect, Select: notionapi.Option{Name: name}}
}

// Email builds an email property.
func Email(addr string) notionapi.EmailProperty {
	return notionapi.EmailProperty{Type: notionapi.PropertyTypeEmail, Email: addr}
}

// Number builds a number property.
func Number(v float64) notionapi.NumberProperty {
	return notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: v}
}

// DateProp builds a date property starting at t.
func DateProp(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{Type: notionapi.PropertyTypeDate, Date: &notionapi.DateObject{Start: &d}}
}

// Heading builds a level-3 heading block.
func Heading(s string) notionapi.Block {
	return notionapi.Heading3Block{
		BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeHeading3},
		Heading3:   notionapi.Heading{RichText: RichText(s)},
	}
}

// Paragraph builds a paragraph block.
func Paragraph(s string) notionapi.Block {
	return notionapi.ParagraphBlock{
		BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeParagraph},
		Paragraph:  notionapi.Paragraph{RichText: RichText(s)},
	}
}

// Bullet builds a bulleted list item block.
func Bullet(s string) notionapi.Block {
	return notionapi.BulletedListItemBlock{
		BasicBlock:       notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeBulletedListItem},
		BulletedListItem: notionapi.ListItem{RichText: RichText(s)},
	}
}
