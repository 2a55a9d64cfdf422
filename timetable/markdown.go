package timetable

import (
	"fmt"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

var mdConverter = sync.OnceValue(func() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
})

// PanelMarkdown renders a panel as Markdown with a heading naming its route.
// Used to eyeball what the extractor sees when the page layout changes.
func PanelMarkdown(p Panel) (string, error) {
	body, err := mdConverter().ConvertString(p.Markup)
	if err != nil {
		return "", fmt.Errorf("timetable: markdown %s: %w", p.ExternalID, err)
	}
	return fmt.Sprintf("## %s\n\n`%s` title=%q\n\n%s\n", p.Route.CanonicalName, p.ExternalID, p.Title, body), nil
}
