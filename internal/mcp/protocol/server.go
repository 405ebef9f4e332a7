package protocol

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/launchpal/launchpal/internal/safego"
)

// maxFrame bounds one newline-delimited message.
const maxFrame = 4 << 20

// ToolHandler lists and runs tools.
type ToolHandler interface {
	List(ctx context.Context) []Tool
	Call(ctx context.Context, req *CallToolRequest) (*CallToolResult, error)
}

// PromptHandler lists and renders prompts.
type PromptHandler interface {
	List(ctx context.Context) []Prompt
	Get(ctx context.Context, req *GetPromptRequest) (*GetPromptResult, error)
}

// Server dispatches MCP requests read from a stream. Requests run
// concurrently so a long tool call (a browser login) does not block pings;
// responses are written whole, one per line.
type Server struct {
	info    ImplementationInfo
	tools   ToolHandler
	prompts PromptHandler

	writeMu sync.Mutex
}

// NewServer creates a new Server
func NewServer(info ImplementationInfo, tools ToolHandler, prompts PromptHandler) *Server {
	return &Server{info: info, tools: tools, prompts: prompts}
}

// Serve reads requests from r until EOF or ctx is cancelled and writes
// responses to w. In-flight requests are waited for before returning.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxFrame)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		frame := append([]byte(nil), line...)

		wg.Add(1)
		safego.Go("mcp-request", func() {
			defer wg.Done()
			if resp := s.Handle(ctx, frame); resp != nil {
				if err := s.write(w, resp); err != nil {
					slog.Error("failed to write response", "error", err)
				}
			}
		})

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	return nil
}

func (s *Server) write(w io.Writer, resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = w.Write(append(data, '\n'))
	return err
}

// Handle processes one frame. It returns nil for notifications.
func (s *Server) Handle(ctx context.Context, frame []byte) *Response {
	var req Request
	if err := json.Unmarshal(frame, &req); err != nil {
		return errorResponse(nil, Errorf(ParseError, "Invalid JSON"))
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		if req.IsNotification() {
			return nil
		}
		return errorResponse(req.ID, Errorf(InvalidRequest, "Invalid JSON-RPC request"))
	}

	result, err := s.dispatch(ctx, &req)
	if req.IsNotification() {
		if err != nil {
			slog.Debug("notification failed", "method", req.Method, "error", err)
		}
		return nil
	}
	if err != nil {
		var rpcErr *RPCError
		if !errors.As(err, &rpcErr) {
			rpcErr = &RPCError{Code: InternalError, Message: err.Error()}
		}
		slog.Debug("request failed", "method", req.Method, "code", rpcErr.Code, "error", rpcErr.Message)
		return errorResponse(req.ID, rpcErr)
	}
	return &Response{JSONRPC: "2.0", Result: result, ID: req.ID}
}

func (s *Server) dispatch(ctx context.Context, req *Request) (any, error) {
	switch req.Method {
	case "initialize":
		var params InitializeRequest
		if err := unmarshalParams(req.Params, &params); err != nil {
			return nil, err
		}
		slog.Info("client connected", "client", params.ClientInfo.Name, "version", params.ClientInfo.Version)
		return &InitializeResult{
			ProtocolVersion: Version,
			Capabilities: ServerCapabilities{
				Tools:   &ListChanged{},
				Prompts: &ListChanged{},
			},
			ServerInfo: s.info,
		}, nil
	case "notifications/initialized", "notifications/cancelled":
		return nil, nil
	case "ping":
		return struct{}{}, nil
	case "tools/list":
		return &ListToolsResult{Tools: s.tools.List(ctx)}, nil
	case "tools/call":
		var params CallToolRequest
		if err := unmarshalParams(req.Params, &params); err != nil {
			return nil, err
		}
		return s.tools.Call(ctx, &params)
	case "prompts/list":
		return &ListPromptsResult{Prompts: s.prompts.List(ctx)}, nil
	case "prompts/get":
		var params GetPromptRequest
		if err := unmarshalParams(req.Params, &params); err != nil {
			return nil, err
		}
		return s.prompts.Get(ctx, &params)
	default:
		return nil, Errorf(MethodNotFound, "Method not found: %s", req.Method)
	}
}

func unmarshalParams(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return Errorf(InvalidParams, "Invalid parameters: %v", err)
	}
	return nil
}

func errorResponse(id json.RawMessage, err *RPCError) *Response {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return &Response{JSONRPC: "2.0", Error: err, ID: id}
}
