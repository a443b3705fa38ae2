package lsp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlassist/internal/provider"
	"github.com/leapstack-labs/sqlassist/internal/testutil"
	"github.com/leapstack-labs/sqlassist/pkg/completion"
	"github.com/leapstack-labs/sqlassist/pkg/dialect"
)

const testURI = "file:///queries/report.sql"

func frame(v any) string {
	body, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
}

func request(id int, method string, params any) string {
	return frame(map[string]any{"jsonrpc": "2.0", "id": id, "method": method, "params": params})
}

func notify(method string, params any) string {
	return frame(map[string]any{"jsonrpc": "2.0", "method": method, "params": params})
}

func didOpen(text string) string {
	return notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: testURI, LanguageID: "sql", Version: 1, Text: text},
	})
}

func position(method string, id int, line, character uint32) string {
	return request(id, method, TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: testURI},
		Position:     Position{Line: line, Character: character},
	})
}

func shopProvider(t *testing.T) *provider.Provider {
	t.Helper()
	d, ok := dialect.Get("postgres")
	require.True(t, ok)
	return provider.New(d, testutil.ShopExecutionContext(t), completion.DefaultSettings(), testutil.NewTestLogger(t))
}

// session runs a server over the given messages and returns what it wrote.
type session struct {
	messages []*JSONRPCMessage
	err      error
}

func run(t *testing.T, p *provider.Provider, input ...string) *session {
	t.Helper()
	var out bytes.Buffer
	s := NewServer(strings.NewReader(strings.Join(input, "")), &out, Options{
		Provider: p,
		Logger:   testutil.NewTestLogger(t),
		Version:  "test",
	})
	err := s.Run(context.Background())

	reader := &Server{reader: bufio.NewReader(&out)}
	var messages []*JSONRPCMessage
	for {
		msg, readErr := reader.readMessage()
		if errors.Is(readErr, io.EOF) {
			break
		}
		require.NoError(t, readErr)
		messages = append(messages, msg)
	}
	return &session{messages: messages, err: err}
}

func (s *session) response(t *testing.T, id int) *JSONRPCMessage {
	t.Helper()
	want := json.RawMessage(fmt.Sprint(id))
	for _, msg := range s.messages {
		if msg.ID != nil && bytes.Equal(*msg.ID, want) {
			return msg
		}
	}
	t.Fatalf("no response with id %d", id)
	return nil
}

func (s *session) notifications(method string) []*JSONRPCMessage {
	var out []*JSONRPCMessage
	for _, msg := range s.messages {
		if msg.ID == nil && msg.Method == method {
			out = append(out, msg)
		}
	}
	return out
}

func decodeResult[T any](t *testing.T, msg *JSONRPCMessage) T {
	t.Helper()
	require.Nil(t, msg.Error)
	var v T
	require.NoError(t, json.Unmarshal(msg.Result, &v))
	return v
}

func TestLifecycle(t *testing.T) {
	s := run(t, shopProvider(t),
		request(1, "initialize", InitializeParams{RootURI: "file:///queries"}),
		notify("initialized", struct{}{}),
		request(2, "shutdown", nil),
		notify("exit", nil),
	)
	require.NoError(t, s.err)

	result := decodeResult[InitializeResult](t, s.response(t, 1))
	require.NotNil(t, result.Capabilities.CompletionProvider)
	assert.Contains(t, result.Capabilities.CompletionProvider.TriggerCharacters, ".")
	assert.True(t, result.Capabilities.HoverProvider)
	assert.True(t, result.Capabilities.DefinitionProvider)
	require.NotNil(t, result.Capabilities.TextDocumentSync)
	assert.Equal(t, TextDocumentSyncKindIncremental, result.Capabilities.TextDocumentSync.Change)
	assert.Equal(t, "test", result.ServerInfo.Version)

	shutdown := s.response(t, 2)
	assert.Nil(t, shutdown.Error)
	assert.Equal(t, "null", string(shutdown.Result))
}

func TestExitWithoutShutdown(t *testing.T) {
	s := run(t, shopProvider(t), notify("exit", nil))
	assert.ErrorIs(t, s.err, ErrExitWithoutShutdown)
}

func TestInputEndsWithoutExit(t *testing.T) {
	s := run(t, shopProvider(t), request(1, "initialize", InitializeParams{}))
	assert.NoError(t, s.err)
	assert.Len(t, s.messages, 1)
}

func TestRequestErrors(t *testing.T) {
	s := run(t, shopProvider(t),
		request(1, "workspace/symbol", nil),
		frame(map[string]any{"jsonrpc": "2.0", "id": 2, "method": "textDocument/hover", "params": "bad"}),
		request(3, "shutdown", nil),
		position("textDocument/completion", 4, 0, 0),
		notify("exit", nil),
	)
	require.NoError(t, s.err)

	require.NotNil(t, s.response(t, 1).Error)
	assert.Equal(t, codeMethodNotFound, s.response(t, 1).Error.Code)
	require.NotNil(t, s.response(t, 2).Error)
	assert.Equal(t, codeInvalidParams, s.response(t, 2).Error.Code)
	require.NotNil(t, s.response(t, 4).Error)
	assert.Equal(t, codeInvalidRequest, s.response(t, 4).Error.Code)
}

func TestCompletionRequest(t *testing.T) {
	text := "SELECT * FROM orders o WHERE o."
	s := run(t, shopProvider(t),
		didOpen(text),
		position("textDocument/completion", 1, 0, uint32(len(text))),
	)

	list := decodeResult[CompletionList](t, s.response(t, 1))
	var labels []string
	for _, item := range list.Items {
		labels = append(labels, item.Label)
		assert.Equal(t, CompletionItemKindField, item.Kind)
		require.NotNil(t, item.TextEdit)
		assert.Equal(t, Position{0, uint32(len(text))}, item.TextEdit.Range.End)
		assert.Equal(t, item.Label, item.TextEdit.NewText)
	}
	assert.ElementsMatch(t, []string{"id", "total", "customer_id"}, labels)

	for i := 1; i < len(list.Items); i++ {
		assert.Less(t, list.Items[i-1].SortText, list.Items[i].SortText)
	}
}

func TestCompletionReplacesTypedWord(t *testing.T) {
	text := "SELECT * FROM ord"
	s := run(t, shopProvider(t),
		didOpen(text),
		position("textDocument/completion", 1, 0, uint32(len(text))),
	)

	list := decodeResult[CompletionList](t, s.response(t, 1))
	var orders *CompletionItem
	for i := range list.Items {
		if list.Items[i].Label == "orders" {
			orders = &list.Items[i]
		}
	}
	require.NotNil(t, orders)
	assert.Equal(t, CompletionItemKindClass, orders.Kind)
	assert.Equal(t, Range{Start: Position{0, 14}, End: Position{0, 17}}, orders.TextEdit.Range)
	assert.Equal(t, "orders", orders.TextEdit.NewText)
}

func TestCompletionUnknownDocument(t *testing.T) {
	s := run(t, shopProvider(t), position("textDocument/completion", 1, 0, 0))
	list := decodeResult[CompletionList](t, s.response(t, 1))
	assert.Empty(t, list.Items)
}

func TestCompletionKindMapping(t *testing.T) {
	assert.Equal(t, CompletionItemKindKeyword, completionKind(completion.KindReserved))
	assert.Equal(t, CompletionItemKindModule, completionKind(completion.KindSchema))
	assert.Equal(t, CompletionItemKindClass, completionKind(completion.KindUsedTable))
	assert.Equal(t, CompletionItemKindFunction, completionKind(completion.KindProcedure))
	assert.Equal(t, CompletionItemKindText, completionKind(completion.KindObject))
}
