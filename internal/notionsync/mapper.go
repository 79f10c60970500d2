package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/ovoloshko/statement-ingest/internal/bigquery"
)

// TransactionProperties converts a transaction row to the Notion page schema:
// Description (title), Date, Amount, Category and Type (selects), Verified
// (checkbox), Merchant/Reference/Session (rich text) and Transaction ID, the
// key the exporter matches existing pages on.
func TransactionProperties(tx *bigquery.TransactionRow) notionapi.Properties {
	props := notionapi.Properties{
		"Description": notionapi.TitleProperty{
			Title: richText(tx.Description),
		},
		"Date": notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(time.Date(
						tx.TransactionDate.Year,
						tx.TransactionDate.Month,
						tx.TransactionDate.Day,
						0, 0, 0, 0, time.UTC,
					))
					return &d
				}(),
			},
		},
		"Amount": notionapi.NumberProperty{
			Number: func() float64 {
				if tx.Amount != nil {
					f, _ := tx.Amount.Float64()
					return f
				}
				return 0
			}(),
		},
		"Category": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.Category,
			},
		},
		"Verified": notionapi.CheckboxProperty{
			Checkbox: tx.IsVerified,
		},
		"Transaction ID": notionapi.RichTextProperty{
			RichText: richText(tx.TransactionID),
		},
		"Session": notionapi.RichTextProperty{
			RichText: richText(tx.SessionTag),
		},
	}

	// Type
	if tx.TransactionType != "" {
		props["Type"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.TransactionType,
			},
		}
	}

	// Merchant
	if tx.Merchant.Valid && tx.Merchant.StringVal != "" {
		props["Merchant"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.Merchant.StringVal,
			},
		}
	}

	// Reference
	if tx.Reference.Valid && tx.Reference.StringVal != "" {
		props["Reference"] = notionapi.RichTextProperty{
			RichText: richText(tx.Reference.StringVal),
		}
	}

	return props
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

// pageTransactionID extracts the Transaction ID property from a Notion page.
// Returns empty string if not found.
func pageTransactionID(page notionapi.Page) string {
	if prop, ok := page.Properties["Transaction ID"]; ok {
		if richText, ok := prop.(*notionapi.RichTextProperty); ok {
			if len(richText.RichText) > 0 {
				return richText.RichText[0].PlainText
			}
		}
	}
	return ""
}
