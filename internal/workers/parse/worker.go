// Package parse implements the Parse domain worker: it reads an item's
// sidecar document (an NFO/playlist-style XML or HTML file describing the
// item) and extracts metadata fields, subitem references, and attachment
// references from it via XPath, adapted from the teacher's XPathParser.
package parse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/gopreparse/preparser/internal/item"
	"github.com/gopreparse/preparser/internal/worker"
)

// FieldRule extracts one metadata field's value from the sidecar document.
type FieldRule struct {
	Name      string
	Selector  string // XPath expression
	Attribute string // "", "text" for inner text; else an element attribute
}

// Rules configures what the parser extracts from a sidecar document.
type Rules struct {
	// Fields are reported as Reporter.MetaProgress(Name, value) calls, one
	// per rule that matches.
	Fields []FieldRule
	// SubitemSelector selects one node per subitem the document references.
	SubitemSelector string
	// SubitemKeyAttribute names the attribute (or "text") on each subitem
	// node holding that subitem's key.
	SubitemKeyAttribute string
	// AttachmentSelector selects nodes representing attachment references
	// (subtitles, chapter art, and similar files sitting alongside the
	// item). Only presence is reported, not enumerated.
	AttachmentSelector string
}

// DefaultRules matches a simple NFO-like shape:
//
//	<item>
//	  <title>...</title>
//	  <subitem key="..."/>
//	  <attachment path="..."/>
//	</item>
func DefaultRules() Rules {
	return Rules{
		Fields: []FieldRule{
			{Name: "title", Selector: "//title", Attribute: "text"},
			{Name: "year", Selector: "//year", Attribute: "text"},
			{Name: "plot", Selector: "//plot", Attribute: "text"},
		},
		SubitemSelector:     "//subitem",
		SubitemKeyAttribute: "key",
		AttachmentSelector:  "//attachment",
	}
}

// Worker is the Parse domain worker.
type Worker struct {
	source Source
	rules  Rules
	logger *slog.Logger
}

// New creates a Parse worker that resolves sidecar documents via source and
// extracts data per rules.
func New(source Source, rules Rules, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{source: source, rules: rules, logger: logger.With("component", "parse_worker")}
}

// Run opens the item's sidecar document and extracts metadata, subitems,
// and attachment presence from it.
func (w *Worker) Run(ctx context.Context, it item.Handle, _ worker.Options, _ *worker.SeekDescriptor, rep worker.Reporter) (worker.Outcome, error) {
	rc, err := w.source.Open(ctx, it.Key())
	if err != nil {
		return worker.Error, err
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return worker.Error, fmt.Errorf("parse: read sidecar for %s: %w", it.Key(), err)
	}

	select {
	case <-ctx.Done():
		return worker.Interrupted, ctx.Err()
	default:
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return worker.Error, fmt.Errorf("parse: parse sidecar for %s: %w", it.Key(), err)
	}

	for _, rule := range w.rules.Fields {
		if val := extractOne(w.logger, doc, rule.Selector, rule.Attribute); val != "" {
			rep.MetaProgress(rule.Name, val)
		}
	}

	if w.rules.SubitemSelector != "" {
		subitems := w.extractSubitems(doc)
		if len(subitems) > 0 {
			rep.SubitemsAdded(subitems)
		}
	}

	if w.rules.AttachmentSelector != "" {
		nodes, err := htmlquery.QueryAll(doc, w.rules.AttachmentSelector)
		if err != nil {
			w.logger.Warn("invalid attachment selector", "selector", w.rules.AttachmentSelector, "error", err)
		} else if len(nodes) > 0 {
			rep.AttachmentsAdded()
		}
	}

	return worker.Ok, nil
}

func (w *Worker) extractSubitems(doc *html.Node) []item.Handle {
	nodes, err := htmlquery.QueryAll(doc, w.rules.SubitemSelector)
	if err != nil {
		w.logger.Warn("invalid subitem selector", "selector", w.rules.SubitemSelector, "error", err)
		return nil
	}

	var subitems []item.Handle
	for _, node := range nodes {
		key := attrOrText(node, w.rules.SubitemKeyAttribute)
		if key == "" {
			continue
		}
		subitems = append(subitems, item.New(key))
	}
	return subitems
}

func extractOne(logger *slog.Logger, doc *html.Node, selector, attribute string) string {
	nodes, err := htmlquery.QueryAll(doc, selector)
	if err != nil {
		logger.Warn("invalid xpath selector", "selector", selector, "error", err)
		return ""
	}
	if len(nodes) == 0 {
		return ""
	}
	return attrOrText(nodes[0], attribute)
}

func attrOrText(node *html.Node, attribute string) string {
	switch attribute {
	case "", "text":
		return strings.TrimSpace(htmlquery.InnerText(node))
	default:
		return htmlquery.SelectAttr(node, attribute)
	}
}
