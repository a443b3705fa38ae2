package provider

import (
	"time"

	"github.com/leapstack-labs/sqlassist/pkg/parser"
)

// ParsedDocument is the parse result of one document version.
type ParsedDocument struct {
	URI      string
	Version  int
	Content  string
	Script   *parser.Script
	ParsedAt time.Time
}

// GetOrParse returns the cached parse of uri, parsing content when the
// cache holds an older version.
func (p *Provider) GetOrParse(uri string, content string, version int) *ParsedDocument {
	p.documentsMu.RLock()
	doc, exists := p.documents[uri]
	p.documentsMu.RUnlock()
	if exists && doc.Version >= version && doc.Content == content {
		return doc
	}

	p.documentsMu.Lock()
	defer p.documentsMu.Unlock()

	// Double-check after acquiring write lock
	doc, exists = p.documents[uri]
	if exists && doc.Version >= version && doc.Content == content {
		return doc
	}
	doc = &ParsedDocument{
		URI:      uri,
		Version:  version,
		Content:  content,
		Script:   parser.ParseScript(content),
		ParsedAt: time.Now(),
	}
	p.documents[uri] = doc
	return doc
}

// Get returns a cached document without parsing, or nil.
func (p *Provider) Get(uri string) *ParsedDocument {
	p.documentsMu.RLock()
	defer p.documentsMu.RUnlock()
	return p.documents[uri]
}

// Invalidate removes a document from the cache.
func (p *Provider) Invalidate(uri string) {
	p.documentsMu.Lock()
	defer p.documentsMu.Unlock()
	delete(p.documents, uri)
}
