package reportsync

import (
	"strings"

	"github.com/jomei/notionapi"

	"github.com/okozyrev/extraction-review/internal/domain"
)

// ComparisonToNotionProperties converts one comparison into the properties
// of a review-report page. The Email ID title is the idempotency key the
// sync uses to find existing pages.
func ComparisonToNotionProperties(c *domain.Comparison) notionapi.Properties {
	props := notionapi.Properties{
		"Email ID": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: c.EmailID,
					},
				},
			},
		},
		"Status": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(c.Status),
			},
		},
	}

	if typ := c.GroupType(); typ != "" {
		props["Type"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: typ,
			},
		}
	}

	if len(c.Differences) > 0 {
		props["Differences"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: strings.Join(c.Differences, ", "),
					},
				},
			},
		}
	}

	if len(c.DataKeyDifferences) > 0 {
		props["Data Key Differences"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: strings.Join(c.DataKeyDifferences, ", "),
					},
				},
			},
		}
	}

	props["Real Numeric Diff"] = notionapi.CheckboxProperty{
		Checkbox: c.HasRealNumericDiff(),
	}

	if label := winnerLabel(c.Winner); label != "" {
		props["Winner"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: label,
			},
		}
	}

	return props
}

// winnerLabel renders the winner designation for the report: the sentinel
// name, the chosen side, or empty for undecided emails.
func winnerLabel(w domain.Winner) string {
	switch w.Kind {
	case domain.WinnerTransaction:
		switch w.Side {
		case domain.SideA:
			return "run A"
		case domain.SideB:
			return "run B"
		default:
			return "resolved"
		}
	case domain.WinnerTie:
		return "tie"
	case domain.WinnerExclude:
		return "exclude"
	case domain.WinnerDiscussion:
		return "discussion"
	}
	return ""
}

// extractEmailID pulls the Email ID title back out of a Notion page.
// Returns the empty string when the page has no usable title.
func extractEmailID(page notionapi.Page) string {
	prop, ok := page.Properties["Email ID"]
	if !ok {
		return ""
	}
	title, ok := prop.(*notionapi.TitleProperty)
	if !ok || len(title.Title) == 0 {
		return ""
	}
	return title.Title[0].PlainText
}
