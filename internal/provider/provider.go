// Package provider owns what completion and analysis consumers share: the
// configured dialect, the metadata catalog and a cache of parsed documents.
// The CLI commands and the language server both go through it.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/sqlassist/internal/config"
	"github.com/leapstack-labs/sqlassist/pkg/completion"
	"github.com/leapstack-labs/sqlassist/pkg/dialect"
	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/leapstack-labs/sqlassist/pkg/metadata/sqldb"
	"github.com/leapstack-labs/sqlassist/pkg/parser"
	"github.com/leapstack-labs/sqlassist/pkg/semantic"
)

// Provider is safe for concurrent use.
type Provider struct {
	cfg     *config.Config
	dialect *dialect.Dialect
	logger  *slog.Logger

	// Catalog state, replaced by Reload.
	catalogMu sync.RWMutex
	exec      *metadata.ExecutionContext
	cache     *metadata.Cache
	db        *sqldb.Catalog

	// Document cache (keyed by URI)
	documents   map[string]*ParsedDocument
	documentsMu sync.RWMutex
}

// Open creates a Provider and connects the configured catalog.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d, err := dialect.Lookup(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	p := &Provider{
		cfg:       cfg,
		dialect:   d,
		logger:    logger,
		documents: make(map[string]*ParsedDocument),
	}
	if err := p.Reload(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// New creates a Provider over an existing execution context, for callers
// that build their catalog themselves.
func New(d *dialect.Dialect, exec *metadata.ExecutionContext, settings completion.Settings, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if d == nil {
		d = dialect.Default()
	}
	cfg := config.Default()
	cfg.Dialect = d.Name
	cfg.Completion = settings
	return &Provider{
		cfg:       cfg,
		dialect:   d,
		logger:    logger,
		exec:      exec,
		documents: make(map[string]*ParsedDocument),
	}
}

// Config returns the configuration the provider was opened with.
func (p *Provider) Config() *config.Config { return p.cfg }

// Dialect returns the configured dialect.
func (p *Provider) Dialect() *dialect.Dialect { return p.dialect }

// Settings returns the completion settings.
func (p *Provider) Settings() completion.Settings { return p.cfg.Completion }

// Exec returns the current execution context; it may be nil.
func (p *Provider) Exec() *metadata.ExecutionContext {
	p.catalogMu.RLock()
	defer p.catalogMu.RUnlock()
	return p.exec
}

// Reload reconnects the catalog. A yaml catalog file is read again; a
// database catalog drops its memoized listings.
func (p *Provider) Reload(ctx context.Context) error {
	md := p.cfg.Metadata

	p.catalogMu.RLock()
	cache, db := p.cache, p.db
	p.catalogMu.RUnlock()
	if db != nil && cache != nil {
		cache.Invalidate()
		p.logger.Info("metadata cache invalidated", slog.String("driver", md.Driver))
		return nil
	}

	var root metadata.Container
	switch md.Driver {
	case "", config.DriverMemory:
		root = metadata.NewMemory()
	case config.DriverYAML:
		mem, err := metadata.LoadYAMLFile(md.CatalogFile)
		if err != nil {
			return err
		}
		root = mem
	default:
		catalog, err := sqldb.Open(ctx, md.Driver, md.DSN, md.Params, p.logger)
		if err != nil {
			return err
		}
		db = catalog
		cache = metadata.NewCache(catalog, p.logger)
		root = cache.Root()
	}

	exec, err := p.executionContext(ctx, root, db != nil)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return err
	}

	p.catalogMu.Lock()
	p.exec, p.cache, p.db = exec, cache, db
	p.catalogMu.Unlock()

	p.logger.Info("metadata catalog loaded",
		slog.String("driver", md.Driver),
		slog.String("default_schema", md.DefaultSchema))
	return nil
}

// executionContext resolves the default containers. For a database catalog
// without a configured schema the dialect's default schema is used when
// the database has one.
func (p *Provider) executionContext(ctx context.Context, root metadata.Container, database bool) (*metadata.ExecutionContext, error) {
	md := p.cfg.Metadata
	schema := md.DefaultSchema
	if schema == "" && database && p.dialect.DefaultSchema != "" {
		exec, err := metadata.NewExecutionContext(ctx, root, md.DefaultCatalog, p.dialect.DefaultSchema)
		if err == nil {
			return exec, nil
		}
		if !metadata.IsNotFound(err) {
			return nil, fmt.Errorf("failed to resolve default schema: %w", err)
		}
	}
	exec, err := metadata.NewExecutionContext(ctx, root, md.DefaultCatalog, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve default containers: %w", err)
	}
	return exec, nil
}

// Close releases the database connection, if any.
func (p *Provider) Close() error {
	p.catalogMu.Lock()
	defer p.catalogMu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db, p.cache = nil, nil
	return err
}

// Complete computes the completion sets at offset of script.
func (p *Provider) Complete(ctx context.Context, script *parser.Script, offset int) []*completion.CompletionSet {
	cc := completion.PrepareCompletionContext(script.ItemAt(offset), offset, p.Exec(), p.dialect)
	return cc.PrepareProposal(ctx, completion.Request{Settings: p.Settings(), Logger: p.logger})
}

// Analyze runs the first analysis pass over item. It returns nil for items
// without a query.
func (p *Provider) Analyze(ctx context.Context, item *parser.ScriptItem) *semantic.Model {
	return semantic.AnalyzeItem(ctx, item, semantic.Options{
		Dialect:       p.dialect,
		Exec:          p.Exec(),
		CaseSensitive: p.cfg.Completion.CaseSensitive,
		Logger:        p.logger,
	})
}

// AnalyzeTypes runs both analysis passes over item. Both results are nil
// for items without a query.
func (p *Provider) AnalyzeTypes(ctx context.Context, item *parser.ScriptItem) (*semantic.Model, *semantic.TypeInfo) {
	model := p.Analyze(ctx, item)
	if model == nil {
		return nil, nil
	}
	return model, model.ResolveTypes(ctx)
}

// Problem is a syntax error or resolution diagnostic of a script.
type Problem struct {
	Start, End int // byte offsets
	Severity   semantic.Severity
	Message    string
}

// Problems collects the parse errors and pass-1 diagnostics of every item.
func (p *Provider) Problems(ctx context.Context, script *parser.Script) []Problem {
	var out []Problem
	for _, item := range script.Items {
		for _, err := range item.Errors {
			var pe *parser.ParseError
			if !errors.As(err, &pe) {
				continue
			}
			out = append(out, Problem{Start: pe.Pos.Offset, End: pe.Pos.Offset, Severity: semantic.SeverityError, Message: pe.Message})
		}
		model := p.Analyze(ctx, item)
		if model == nil {
			continue
		}
		for _, d := range model.Diagnostics() {
			out = append(out, Problem{
				Start:    d.Span.Start.Offset,
				End:      d.Span.End.Offset,
				Severity: d.Severity,
				Message:  d.Message,
			})
		}
	}
	return out
}
