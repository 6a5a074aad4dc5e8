package transform

import (
	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/russross/blackfriday/v2"

	"github.com/gasgit/gasgit/pkg/errors"
)

// The remote store renders project documentation as HTML, while the local
// working copy keeps it as Markdown so it diffs and merges cleanly.

func markdownToHTML(markdown string) string {
	return string(blackfriday.Run([]byte(markdown)))
}

func htmlToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", errors.WithContext(err, "convert html")
	}
	return markdown, nil
}
