package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/leapstack-labs/sqlassist/internal/config"
	"github.com/leapstack-labs/sqlassist/internal/provider"
)

// ErrExitWithoutShutdown is returned by Run when the client sends exit
// before shutdown. Callers should exit with status 1.
var ErrExitWithoutShutdown = errors.New("exit received before shutdown")

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Options configures a Server.
type Options struct {
	Provider *provider.Provider
	Logger   *slog.Logger
	// Version is reported as the server version in initialize.
	Version string
}

// Server implements the Language Server Protocol over one stream.
type Server struct {
	documents *DocumentStore
	provider  *provider.Provider
	version   string

	initialized bool
	stopWatch   func() error

	// I/O
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	logger *slog.Logger

	// Shutdown state
	shutdown   bool
	exited     bool
	shutdownMu sync.RWMutex
}

// NewServer creates a new LSP server instance.
func NewServer(reader io.Reader, writer io.Writer, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := opts.Provider
	if p == nil {
		p = provider.New(nil, nil, config.Default().Completion, logger)
	}
	return &Server{
		documents: NewDocumentStore(),
		provider:  p,
		version:   opts.Version,
		reader:    bufio.NewReader(reader),
		writer:    writer,
		logger:    logger.With(slog.String("session", uuid.NewString())),
	}
}

// Run processes JSON-RPC messages until the client exits, the input ends
// or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("language server starting")
	defer s.stopWatching()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.shutdownMu.RLock()
		exited, shutdown := s.exited, s.shutdown
		s.shutdownMu.RUnlock()
		if exited {
			if !shutdown {
				return ErrExitWithoutShutdown
			}
			return nil
		}

		msg, err := s.readMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				s.logger.Info("client disconnected")
				return nil
			}
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				s.sendResponse(nil, nil, &JSONRPCError{Code: codeParseError, Message: err.Error()})
			}
			s.logger.Error("failed to read message", slog.Any("error", err))
			continue
		}

		if err := s.handleMessage(ctx, msg); err != nil {
			s.logger.Error("failed to handle message",
				slog.String("method", msg.Method),
				slog.Any("error", err))
		}
	}
}

// JSONRPCMessage represents a JSON-RPC 2.0 message.
type JSONRPCMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *JSONRPCError    `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// readMessage reads one Content-Length framed message.
func (s *Server) readMessage() (*JSONRPCMessage, error) {
	var contentLength int
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			contentLength, err = strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
		}
	}

	if contentLength <= 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, fmt.Errorf("error reading body: %w", err)
	}

	var msg JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("error parsing message: %w", err)
	}
	return &msg, nil
}

// sendResponse sends a JSON-RPC response.
func (s *Server) sendResponse(id *json.RawMessage, result any, rpcErr *JSONRPCError) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
	}
	if id == nil {
		null := json.RawMessage("null")
		msg.ID = &null
	}

	if rpcErr != nil {
		msg.Error = rpcErr
	} else {
		resultBytes, err := json.Marshal(result)
		if err != nil {
			s.logger.Error("failed to marshal result", slog.Any("error", err))
			resultBytes = []byte("null")
		}
		msg.Result = resultBytes
	}

	s.writeMessage(&msg)
}

// sendNotification sends a JSON-RPC notification (no ID).
func (s *Server) sendNotification(method string, params any) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		Method:  method,
	}

	if params != nil {
		paramsBytes, err := json.Marshal(params)
		if err != nil {
			s.logger.Error("failed to marshal notification", slog.String("method", method), slog.Any("error", err))
			return
		}
		msg.Params = paramsBytes
	}

	s.writeMessage(&msg)
}

// writeMessage writes a JSON-RPC message to the output stream.
func (s *Server) writeMessage(msg *JSONRPCMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal message", slog.Any("error", err))
		return
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	_, _ = s.writer.Write([]byte(header))
	_, _ = s.writer.Write(body)
}

// handleMessage dispatches a message to the appropriate handler.
func (s *Server) handleMessage(ctx context.Context, msg *JSONRPCMessage) error {
	s.logger.Debug("received", slog.String("method", msg.Method))

	s.shutdownMu.RLock()
	shutdown := s.shutdown
	s.shutdownMu.RUnlock()
	if shutdown && msg.Method != "exit" {
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidRequest, Message: "server is shutting down"})
		}
		return nil
	}

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return s.handleInitialized(ctx)
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		s.handleExit()
		return nil
	case "textDocument/didOpen":
		return s.handleDidOpen(ctx, msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/didChange":
		return s.handleDidChange(ctx, msg)
	case "textDocument/didSave", "$/cancelRequest", "$/setTrace":
		return nil
	case "textDocument/completion":
		return s.handleCompletion(ctx, msg)
	case "textDocument/hover":
		return s.handleHover(ctx, msg)
	case "textDocument/definition":
		return s.handleDefinition(ctx, msg)
	case "textDocument/codeAction":
		return s.handleCodeAction(ctx, msg)
	default:
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{
				Code:    codeMethodNotFound,
				Message: "Method not found: " + msg.Method,
			})
		}
		return nil
	}
}

// decodeParams unmarshals the params of a request, answering invalid
// params on failure.
func (s *Server) decodeParams(msg *JSONRPCMessage, v any) error {
	if err := json.Unmarshal(msg.Params, v); err != nil {
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		}
		return err
	}
	return nil
}

// --- Lifecycle handlers ---

func (s *Server) handleInitialize(msg *JSONRPCMessage) error {
	var params InitializeParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	attrs := []any{slog.String("root", URIToPath(params.RootURI)), slog.String("dialect", s.provider.Dialect().Name)}
	if params.ClientInfo != nil {
		attrs = append(attrs, slog.String("client", params.ClientInfo.Name))
	}
	s.logger.Info("initialize", attrs...)

	result := InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindIncremental,
			},
			CompletionProvider: &CompletionOptions{
				TriggerCharacters: []string{".", " ", "*", "\""},
			},
			HoverProvider:      true,
			DefinitionProvider: true,
			CodeActionProvider: &CodeActionOptions{
				CodeActionKinds: []CodeActionKind{CodeActionKindRefactorInline},
			},
		},
		ServerInfo: &ServerInfo{Name: "sqlassist", Version: s.version},
	}

	s.sendResponse(msg.ID, result, nil)
	return nil
}

func (s *Server) handleInitialized(ctx context.Context) error {
	s.initialized = true
	s.logger.Info("server initialized")

	cfg := s.provider.Config()
	if s.provider.Exec() == nil || s.provider.Exec().Root == nil {
		s.sendNotification("window/showMessage", &ShowMessageParams{
			Type:    MessageTypeInfo,
			Message: "No metadata catalog configured. Column and table completion is limited to the query text.",
		})
	}

	if cfg.Metadata.Watch && cfg.Metadata.Driver == config.DriverYAML && cfg.Metadata.CatalogFile != "" {
		stop, err := WatchFile(ctx, cfg.Metadata.CatalogFile, s.logger, func() { s.reloadCatalog(ctx) })
		if err != nil {
			s.logger.Warn("failed to watch catalog file", slog.String("path", cfg.Metadata.CatalogFile), slog.Any("error", err))
			return nil
		}
		s.stopWatch = stop
	}
	return nil
}

func (s *Server) handleShutdown(msg *JSONRPCMessage) error {
	s.shutdownMu.Lock()
	s.shutdown = true
	s.shutdownMu.Unlock()

	s.stopWatching()
	s.sendResponse(msg.ID, nil, nil)
	s.logger.Info("server shutdown")
	return nil
}

func (s *Server) handleExit() {
	s.shutdownMu.Lock()
	s.exited = true
	s.shutdownMu.Unlock()
	s.logger.Info("server exit")
}

func (s *Server) stopWatching() {
	if s.stopWatch == nil {
		return
	}
	if err := s.stopWatch(); err != nil {
		s.logger.Warn("failed to stop catalog watcher", slog.Any("error", err))
	}
	s.stopWatch = nil
}

// reloadCatalog re-reads the catalog and refreshes the diagnostics of all
// open documents.
func (s *Server) reloadCatalog(ctx context.Context) {
	if err := s.provider.Reload(ctx); err != nil {
		s.logger.Warn("failed to reload catalog", slog.Any("error", err))
		s.sendNotification("window/showMessage", &ShowMessageParams{
			Type:    MessageTypeWarning,
			Message: "Catalog reload failed: " + err.Error(),
		})
		return
	}
	for _, uri := range s.documents.List() {
		s.publishDiagnostics(ctx, uri)
	}
}

// --- Document handlers ---

func (s *Server) handleDidOpen(ctx context.Context, msg *JSONRPCMessage) error {
	var params DidOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	s.documents.Open(params.TextDocument.URI, params.TextDocument.Text, params.TextDocument.Version)
	s.logger.Debug("opened", slog.String("uri", params.TextDocument.URI))

	s.publishDiagnostics(ctx, params.TextDocument.URI)
	return nil
}

func (s *Server) handleDidClose(msg *JSONRPCMessage) error {
	var params DidCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	s.documents.Close(params.TextDocument.URI)
	s.provider.Invalidate(params.TextDocument.URI)
	s.logger.Debug("closed", slog.String("uri", params.TextDocument.URI))

	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []Diagnostic{},
	})
	return nil
}

func (s *Server) handleDidChange(ctx context.Context, msg *JSONRPCMessage) error {
	var params DidChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	if s.documents.Apply(params.TextDocument.URI, params.ContentChanges, params.TextDocument.Version) == nil {
		return fmt.Errorf("change for unopened document %s", params.TextDocument.URI)
	}
	s.publishDiagnostics(ctx, params.TextDocument.URI)
	return nil
}

// --- Feature handlers ---

func (s *Server) handleCompletion(ctx context.Context, msg *JSONRPCMessage) error {
	var params CompletionParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	items := s.getCompletions(ctx, params)
	s.sendResponse(msg.ID, &CompletionList{Items: items}, nil)
	return nil
}

func (s *Server) handleHover(ctx context.Context, msg *JSONRPCMessage) error {
	var params HoverParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	s.sendResponse(msg.ID, s.getHover(ctx, params), nil)
	return nil
}

func (s *Server) handleDefinition(ctx context.Context, msg *JSONRPCMessage) error {
	var params DefinitionParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	s.sendResponse(msg.ID, s.getDefinition(ctx, params), nil)
	return nil
}

func (s *Server) handleCodeAction(ctx context.Context, msg *JSONRPCMessage) error {
	var params CodeActionParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	actions := s.getCodeActions(ctx, params)
	if actions == nil {
		actions = []CodeAction{}
	}
	s.sendResponse(msg.ID, actions, nil)
	return nil
}

// parsed returns the open document and its cached parse.
func (s *Server) parsed(uri string) (*Document, *provider.ParsedDocument) {
	doc := s.documents.Get(uri)
	if doc == nil {
		return nil, nil
	}
	return doc, s.provider.GetOrParse(uri, doc.Content, doc.Version)
}
