package main

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"tbc/document"
	"tbc/dom"
)

// MatchValues is a struct that holds variables we make available for match
// template expansion
type MatchValues struct {
	Selector string
	Path     string
	Name     string
	ID       string
	Classes  []string
	Attrs    map[string]string
	Text     string
	Depth    int
}

func buildMatchValues(sel string, n *dom.Node) MatchValues {
	v := MatchValues{
		Selector: sel,
		Path:     elementPath(n),
		Name:     n.Name,
		Attrs:    make(map[string]string, len(n.Attrs)),
		Text:     strings.TrimSpace(document.TextContent(n)),
	}
	for _, a := range n.Attrs {
		v.Attrs[a.Name] = a.Value
	}
	v.ID = v.Attrs["id"]
	v.Classes = strings.Fields(v.Attrs["class"])
	for p := n.Parent; p != nil; p = p.Parent {
		v.Depth++
	}
	return v
}

type matchTemplate struct {
	tmpl *template.Template
}

func newMatchTemplate(field string) (*matchTemplate, error) {
	tmpl, err := template.New("match").Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return nil, fmt.Errorf("unable to parse match template: %w", err)
	}
	return &matchTemplate{tmpl: tmpl}, nil
}

func (mt *matchTemplate) expand(sel string, n *dom.Node) (string, error) {
	buf := new(bytes.Buffer)
	if err := mt.tmpl.Execute(buf, buildMatchValues(sel, n)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
