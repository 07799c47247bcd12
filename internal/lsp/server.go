package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/dbt-analyzer/internal/config"
	"github.com/leapstack-labs/dbt-analyzer/internal/project"
	"github.com/leapstack-labs/dbt-analyzer/internal/provider"
)

// JSON-RPC error codes.
const (
	CodeParseError           = -32700
	CodeInvalidRequest       = -32600
	CodeMethodNotFound       = -32601
	CodeInvalidParams        = -32602
	CodeServerNotInitialized = -32002
)

// ErrExitWithoutShutdown is returned by Run when the client sends exit
// without a preceding shutdown request.
var ErrExitWithoutShutdown = errors.New("exit received before shutdown")

// Server implements the Language Server Protocol over a byte stream.
type Server struct {
	// Document management
	documents *DocumentStore

	// Per-document analysis
	provider *provider.Provider

	// Project context
	projectRoot string
	cfg         *config.ProjectConfig
	loadErr     error
	index       *projectIndex
	indexMu     sync.RWMutex
	initialized bool

	// I/O
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// Shutdown state
	shutdown bool
	exited   bool
}

// NewServer creates a new LSP server instance.
func NewServer(reader io.Reader, writer io.Writer) *Server {
	return NewServerWithLogger(reader, writer, nil)
}

// NewServerWithLogger creates a new LSP server instance with a custom logger.
// The logger must not write to writer.
func NewServerWithLogger(reader io.Reader, writer io.Writer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		documents: NewDocumentStore(),
		reader:    bufio.NewReader(reader),
		writer:    writer,
		logger:    logger,
		index:     emptyIndex(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Run processes JSON-RPC messages until the client sends exit or closes
// the stream.
func (s *Server) Run() error {
	s.logger.Info("dbt-analyzer language server starting")
	defer s.close()

	for !s.exited {
		msg, err := s.readMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				s.logger.Info("client disconnected")
				return nil
			}
			var perr *parseError
			if errors.As(err, &perr) {
				s.sendResponse(nil, nil, &JSONRPCError{Code: CodeParseError, Message: err.Error()})
				continue
			}
			s.logger.Error("error reading message", "error", err)
			return err
		}

		if err := s.handleMessage(msg); err != nil {
			s.logger.Error("error handling message", "method", msg.Method, "error", err)
		}
	}

	if !s.shutdown {
		return ErrExitWithoutShutdown
	}
	return nil
}

func (s *Server) close() {
	s.cancel()
	if s.provider != nil {
		s.provider.Close()
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

type parseError struct {
	err error
}

func (e *parseError) Error() string { return "error parsing message: " + e.err.Error() }
func (e *parseError) Unwrap() error { return e.err }

// readMessage reads one Content-Length framed message.
func (s *Server) readMessage() (*JSONRPCMessage, error) {
	contentLength := -1
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
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		contentLength, err = strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid Content-Length: %w", err)
		}
	}

	if contentLength < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, fmt.Errorf("error reading body: %w", err)
	}

	var msg JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, &parseError{err: err}
	}
	return &msg, nil
}

// sendResponse sends a JSON-RPC response.
func (s *Server) sendResponse(id *json.RawMessage, result any, rpcErr *JSONRPCError) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
	}

	if rpcErr != nil {
		msg.Error = rpcErr
	} else {
		resultBytes, err := json.Marshal(result)
		if err != nil {
			s.logger.Error("error marshaling result", "error", err)
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
			s.logger.Error("error marshaling params", "method", method, "error", err)
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
		s.logger.Error("error marshaling message", "error", err)
		return
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	_, _ = io.WriteString(s.writer, header)
	_, _ = s.writer.Write(body)
}

// handleMessage dispatches a message to the appropriate handler.
func (s *Server) handleMessage(msg *JSONRPCMessage) error {
	s.logger.Debug("received", "method", msg.Method)

	switch {
	case msg.Method == "exit":
		return s.handleExit(msg)
	case msg.Method == "initialize":
		return s.handleInitialize(msg)
	case !s.initialized && msg.Method != "initialized":
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: CodeServerNotInitialized, Message: "server not initialized"})
		}
		return nil
	case s.shutdown:
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: CodeInvalidRequest, Message: "server is shutting down"})
		}
		return nil
	}

	switch msg.Method {
	case "initialized":
		return s.handleInitialized(msg)
	case "shutdown":
		return s.handleShutdown(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/completion":
		return s.handleCompletion(msg)
	case "textDocument/hover":
		return s.handleHover(msg)
	case "textDocument/definition":
		return s.handleDefinition(msg)
	default:
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{
				Code:    CodeMethodNotFound,
				Message: "Method not found: " + msg.Method,
			})
		}
		return nil
	}
}

// --- Lifecycle handlers ---

// negotiateEncoding picks UTF-8 positions when the client offers them,
// since offsets are bytes internally, and the UTF-16 default otherwise.
func negotiateEncoding(caps ClientCapabilities) PositionEncoding {
	if caps.General == nil {
		return PositionEncodingUTF16
	}
	for _, enc := range caps.General.PositionEncodings {
		if PositionEncoding(enc) == PositionEncodingUTF8 {
			return PositionEncodingUTF8
		}
	}
	return PositionEncodingUTF16
}

func (s *Server) handleInitialize(msg *JSONRPCMessage) error {
	var params InitializeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: CodeInvalidParams, Message: err.Error()})
		return err
	}

	s.projectRoot = rootPath(params)
	s.logger.Info("project root", "path", s.projectRoot)

	encoding := negotiateEncoding(params.Capabilities)
	s.documents.SetEncoding(encoding)

	s.cfg, s.loadErr = s.loadConfig()
	s.provider = provider.New(project.FromConfig(s.cfg, s.logger).Analyzer(), s.publish, s.logger)
	s.reindex()
	s.initialized = true

	result := InitializeResult{
		Capabilities: ServerCapabilities{
			PositionEncoding: encoding,
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindFull,
				Save: &SaveOptions{
					IncludeText: true,
				},
			},
			CompletionProvider: &CompletionOptions{
				TriggerCharacters: []string{"'", "\"", " ", "."},
			},
			HoverProvider:      true,
			DefinitionProvider: true,
		},
		ServerInfo: &ServerInfo{Name: "dbt-analyzer"},
	}

	s.sendResponse(msg.ID, result, nil)
	return nil
}

func rootPath(params InitializeParams) string {
	switch {
	case params.RootURI != "":
		return URIToPath(params.RootURI)
	case params.RootPath != "":
		return params.RootPath
	case len(params.WorkspaceFolders) > 0:
		return URIToPath(params.WorkspaceFolders[0].URI)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// loadConfig loads the project configuration, falling back to defaults
// rooted at the project root when the file is invalid.
func (s *Server) loadConfig() (*config.ProjectConfig, error) {
	cfg, err := config.LoadFromDir(s.projectRoot)
	if err == nil {
		return cfg, nil
	}
	s.logger.Warn("invalid project config, using defaults", "root", s.projectRoot, "error", err)

	cfg = &config.ProjectConfig{}
	cfg.ApplyDefaults()
	cfg.ResolvePaths(s.projectRoot)
	return cfg, err
}

func (s *Server) handleInitialized(_ *JSONRPCMessage) error {
	s.logger.Info("server initialized")

	if s.loadErr != nil {
		s.sendNotification("window/showMessage", &ShowMessageParams{
			Type:    MessageTypeWarning,
			Message: "dbt-analyzer: invalid project configuration, using defaults: " + s.loadErr.Error(),
		})
	}
	return nil
}

func (s *Server) handleShutdown(msg *JSONRPCMessage) error {
	s.shutdown = true
	s.close()

	s.sendResponse(msg.ID, nil, nil)
	s.logger.Info("server shutdown")
	return nil
}

func (s *Server) handleExit(_ *JSONRPCMessage) error {
	s.logger.Info("server exit")
	s.exited = true
	return nil
}

// --- Document handlers ---

func (s *Server) handleDidOpen(msg *JSONRPCMessage) error {
	var params DidOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	doc := s.documents.Open(params.TextDocument.URI, params.TextDocument.Text, params.TextDocument.Version)
	s.logger.Debug("opened", "uri", doc.URI, "version", doc.Version)

	s.provider.Submit(doc.URI, doc.Version, doc.Content)
	return nil
}

func (s *Server) handleDidClose(msg *JSONRPCMessage) error {
	var params DidCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	uri := params.TextDocument.URI
	s.documents.Close(uri)
	s.provider.Invalidate(uri)
	s.logger.Debug("closed", "uri", uri)

	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []Diagnostic{},
	})
	return nil
}

func (s *Server) handleDidChange(msg *JSONRPCMessage) error {
	var params DidChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	if len(params.ContentChanges) == 0 {
		return nil
	}

	// Full sync: the last change holds the whole text.
	last := params.ContentChanges[len(params.ContentChanges)-1]
	doc := s.documents.Update(params.TextDocument.URI, last.Text, params.TextDocument.Version)
	if doc == nil {
		s.logger.Debug("ignoring change", "uri", params.TextDocument.URI, "version", params.TextDocument.Version)
		return nil
	}

	s.provider.Submit(doc.URI, doc.Version, doc.Content)
	return nil
}

func (s *Server) handleDidSave(msg *JSONRPCMessage) error {
	var params DidSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	path := URIToPath(params.TextDocument.URI)
	s.logger.Debug("saved", "path", path)

	if params.Text != "" {
		if doc := s.documents.Get(params.TextDocument.URI); doc != nil && doc.Content != params.Text {
			s.documents.Update(doc.URI, params.Text, doc.Version)
		}
	}

	// A saved model changes what other documents resolve against.
	if project.HasExt(path, s.cfg.Extensions) {
		s.reindex()
		for _, doc := range s.documents.List() {
			s.provider.Submit(doc.URI, doc.Version, doc.Content)
		}
	}
	return nil
}

// --- Feature handlers ---

func (s *Server) handleCompletion(msg *JSONRPCMessage) error {
	var params CompletionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: CodeInvalidParams, Message: err.Error()})
		return err
	}

	items := s.getCompletions(params)
	if items == nil {
		items = []CompletionItem{}
	}
	s.sendResponse(msg.ID, &CompletionList{Items: items}, nil)
	return nil
}

func (s *Server) handleHover(msg *JSONRPCMessage) error {
	var params HoverParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: CodeInvalidParams, Message: err.Error()})
		return err
	}

	hover := s.getHover(params)
	s.sendResponse(msg.ID, hover, nil)
	return nil
}

func (s *Server) handleDefinition(msg *JSONRPCMessage) error {
	var params DefinitionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: CodeInvalidParams, Message: err.Error()})
		return err
	}

	location := s.getDefinition(params)
	s.sendResponse(msg.ID, location, nil)
	return nil
}
