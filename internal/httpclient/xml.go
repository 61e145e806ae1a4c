package httpclient

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// XMLNode is a minimal, queryable XML tree, the XML-side analogue of
// goquery.Document for HTML. No third-party XPath/etree-style library is
// evidenced anywhere in the retrieved example pack (see DESIGN.md), so
// this is built directly on the standard library's streaming
// encoding/xml.Decoder.
type XMLNode struct {
	Tag      string
	Attrs    map[string]string
	Text     string
	Children []*XMLNode
}

// parseXML decodes content into a single root XMLNode.
func parseXML(content []byte) (*XMLNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	var root *XMLNode
	var stack []*XMLNode
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &XMLNode{Tag: t.Name.Local, Attrs: map[string]string{}}
			for _, a := range t.Attr {
				n.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("httpclient: empty xml document")
	}
	return root, nil
}

// Find returns every descendant (including self) node whose tag matches
// name, depth-first in document order.
func (n *XMLNode) Find(name string) []*XMLNode {
	var out []*XMLNode
	var walk func(*XMLNode)
	walk = func(node *XMLNode) {
		if node.Tag == name {
			out = append(out, node)
		}
		for _, c := range node.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}

// TrimmedText returns Text with surrounding whitespace removed, the common
// case for leaf-element extraction in branch actions.
func (n *XMLNode) TrimmedText() string {
	return strings.TrimSpace(n.Text)
}
