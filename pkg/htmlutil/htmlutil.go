package htmlutil

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// block elements start and end on their own line when rendered
var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// GetText concatenates every text node under `node` in document order, whitespace is kept as is.
// Block elements are surrounded by line breaks, like a browser's innerText.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		buffer.WriteString(node.Data)
		return
	case html.ElementNode:
		// rendered text never includes these
		if node.Data == "script" || node.Data == "style" {
			return
		}
		// <br> renders as a line break
		if node.Data == "br" {
			buffer.WriteByte('\n')
			return
		}
	}
	block := node.Type == html.ElementNode && blockElements[node.Data]
	if block {
		buffer.WriteByte('\n')
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		getTextRecursive(child, buffer)
	}
	if block {
		buffer.WriteByte('\n')
	}
}

// FirstText returns the text of the first node in the selection, ok is false when the
// selection is empty.
func FirstText(sel *goquery.Selection) (text string, ok bool) {
	if sel == nil || sel.Length() == 0 {
		return "", false
	}
	return GetText(sel.Nodes[0]), true
}
