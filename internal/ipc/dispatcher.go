package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/example/gradebook/internal/ctxutil"
	"github.com/example/gradebook/internal/ports/primary"
	"github.com/example/gradebook/internal/ports/secondary"
	"github.com/example/gradebook/internal/validation"
)

// Error codes carried in Response.Error.
const (
	CodeBadRequest          = "bad_request"
	CodeUnknownOp           = "unknown_op"
	CodeValidation          = "validation"
	CodeNotFound            = "not_found"
	CodeUnauthenticated     = "unauthenticated"
	CodeSyncInProgress      = "sync_in_progress"
	CodeRemoteNotConfigured = "remote_not_configured"
	CodeInternal            = "internal"
)

var (
	errInvalidCredentials = errors.New("invalid email or password")
	errUnauthenticated    = errors.New("session is missing or expired")
)

// Request is one host request. Token, when set, must name a live session;
// its user becomes the acting user for the command.
type Request struct {
	ID      string          `json:"id,omitempty"`
	Op      string          `json:"op"`
	Token   string          `json:"token,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response answers a Request. Exactly one of Data and Error is meaningful,
// as told by Success.
type Response struct {
	ID      string `json:"id,omitempty"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error describes a failed request.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Decode turns op and payload into a validated Command. The returned error
// is an *Error.
func Decode(v *validation.Validator, op string, payload json.RawMessage) (Command, error) {
	newCmd, ok := registry[op]
	if !ok {
		return nil, &Error{Code: CodeUnknownOp, Message: fmt.Sprintf("unknown op %q", op)}
	}
	cmd := newCmd()

	if len(bytes.TrimSpace(payload)) > 0 && !bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cmd); err != nil {
			return nil, &Error{Code: CodeBadRequest, Message: fmt.Sprintf("invalid payload for %s: %v", op, err)}
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return nil, &Error{Code: CodeBadRequest, Message: fmt.Sprintf("invalid payload for %s: trailing data", op)}
		}
	}

	if err := v.Struct(cmd); err != nil {
		return nil, toError(err)
	}
	return cmd, nil
}

// Dispatcher decodes requests and runs them against the services.
type Dispatcher struct {
	services  Services
	validator *validation.Validator
	logger    *zap.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(services Services, validator *validation.Validator, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{services: services, validator: validator, logger: logger}
}

// Handle runs one request. Failures are reported in the Response, never
// returned.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	resp := Response{ID: req.ID}

	cmd, err := Decode(d.validator, req.Op, req.Payload)
	if err != nil {
		resp.Error = toError(err)
		return resp
	}

	if req.Token != "" {
		session, err := d.services.Auth.ValidateSession(ctx, req.Token)
		if err != nil {
			resp.Error = toError(err)
			return resp
		}
		if session == nil {
			resp.Error = toError(errUnauthenticated)
			return resp
		}
		ctx = ctxutil.WithActorID(ctx, session.UserID)
	}

	data, err := cmd.execute(ctx, &d.services)
	if err != nil {
		resp.Error = toError(err)
		level := zap.DebugLevel
		if resp.Error.Code == CodeInternal {
			level = zap.ErrorLevel
		}
		d.logger.Log(level, "ipc request failed",
			zap.String("op", req.Op),
			zap.String("actor", ctxutil.ActorFromContext(ctx)),
			zap.Error(err))
		return resp
	}

	resp.Success = true
	resp.Data = data
	return resp
}

func actorFrom(ctx context.Context) string {
	return ctxutil.ActorFromContext(ctx)
}

// toError classifies err into a response error.
func toError(err error) *Error {
	var ipcErr *Error
	if errors.As(err, &ipcErr) {
		return ipcErr
	}

	var vErr *validation.ValidationError
	switch {
	case errors.As(err, &vErr):
		e := &Error{Code: CodeValidation, Message: vErr.Error()}
		if len(vErr.Fields) > 0 {
			e.Fields = vErr.FieldMap()
		}
		return e
	case errors.Is(err, secondary.ErrNotFound):
		return &Error{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, errInvalidCredentials), errors.Is(err, errUnauthenticated):
		return &Error{Code: CodeUnauthenticated, Message: err.Error()}
	case errors.Is(err, primary.ErrSyncInProgress):
		return &Error{Code: CodeSyncInProgress, Message: err.Error()}
	case errors.Is(err, primary.ErrRemoteNotConfigured):
		return &Error{Code: CodeRemoteNotConfigured, Message: err.Error()}
	default:
		return &Error{Code: CodeInternal, Message: err.Error()}
	}
}
