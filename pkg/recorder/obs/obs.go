// Package obs implements the recorder.Client interface for OBS Studio via
// the obs-websocket protocol (version 5).
//
// The client dials the websocket endpoint, completes the Hello → Identify →
// Identified handshake (with SHA-256 challenge authentication when the server
// requires a password), and then issues JSON requests (StartRecord,
// StopRecord, GetRecordStatus) correlated by request ID. Unsolicited event
// messages are skipped; the session plane polls status explicitly.
package obs

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/coder/websocket"

	"github.com/otastet/obs-motion/pkg/recorder"
)

// Compile-time assertion that Client satisfies the recorder interface.
var _ recorder.Client = (*Client)(nil)

// Websocket opcodes defined by the obs-websocket v5 protocol.
const (
	opHello      = 0
	opIdentify   = 1
	opIdentified = 2
	opEvent      = 5
	opRequest    = 6
	opResponse   = 7
)

// RequestStatus codes the client cares about.
const (
	statusSuccess          = 100
	statusOutputRunning    = 500
	statusOutputNotRunning = 501
)

// rpcVersion is the obs-websocket RPC version this client speaks.
const rpcVersion = 1

// ── Options ───────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithPassword sets the obs-websocket server password used during the
// Identify handshake. Leave unset for servers with authentication disabled.
func WithPassword(pw string) Option {
	return func(c *Client) { c.password = pw }
}

// ── Client ────────────────────────────────────────────────────────────────────

// Client is an obs-websocket v5 control connection. Methods are safe for
// concurrent use, though the session plane only ever calls from one goroutine.
type Client struct {
	url      string
	password string

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID int64
}

// New creates a Client for the obs-websocket server at addr (host:port).
// Call [Client.Connect] before issuing requests.
func New(addr string, opts ...Option) *Client {
	c := &Client{url: "ws://" + addr}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewURL is like [New] but takes a full websocket URL. Primarily used in
// tests to point at a local mock server.
func NewURL(url string, opts ...Option) *Client {
	c := &Client{url: url}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect dials the server and completes the Identify handshake. Calling
// Connect on an already-connected client discards the old connection and
// redials, so a reconnect after transport loss always gets a fresh websocket.
// Failures wrap [recorder.ErrConnection].
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close(websocket.StatusNormalClosure, "redialing")
		c.conn = nil
	}

	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return connErr("dial", err)
	}

	var hello helloData
	if err := readEnvelope(ctx, conn, opHello, &hello); err != nil {
		conn.Close(websocket.StatusProtocolError, "bad hello")
		return connErr("hello", err)
	}

	ident := identifyData{RpcVersion: rpcVersion}
	if hello.Authentication != nil {
		if c.password == "" {
			conn.Close(websocket.StatusNormalClosure, "no credentials")
			return fmt.Errorf("obs: server requires authentication but no password is configured: %w", recorder.ErrConnection)
		}
		ident.Authentication = authToken(c.password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}
	if err := writeEnvelope(ctx, conn, opIdentify, ident); err != nil {
		conn.Close(websocket.StatusProtocolError, "identify failed")
		return connErr("identify", err)
	}

	var identified identifiedData
	if err := readEnvelope(ctx, conn, opIdentified, &identified); err != nil {
		conn.Close(websocket.StatusProtocolError, "not identified")
		return connErr("identified", err)
	}

	c.conn = conn
	return nil
}

// Close terminates the control connection. Safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close(websocket.StatusNormalClosure, "shutting down")
	c.conn = nil
	return err
}

// StartRecording starts the OBS record output. It first checks the remote's
// status; an output that is already active — whether started by this system
// or by a user in the OBS UI — wraps [recorder.ErrRemoteBusy].
func (c *Client) StartRecording(ctx context.Context) error {
	var status recordStatusData
	if err := c.call(ctx, "GetRecordStatus", &status); err != nil {
		return err
	}
	if status.OutputActive {
		return fmt.Errorf("obs: start: record output already active: %w", recorder.ErrRemoteBusy)
	}

	err := c.call(ctx, "StartRecord", nil)
	var reqErr *requestError
	if asRequestError(err, &reqErr) && reqErr.Code == statusOutputRunning {
		return fmt.Errorf("obs: start: %s: %w", reqErr.Comment, recorder.ErrRemoteBusy)
	}
	return err
}

// StopRecording stops the OBS record output. Stopping when no recording is
// active is tolerated (the protocol reports OutputNotRunning).
func (c *Client) StopRecording(ctx context.Context) error {
	err := c.call(ctx, "StopRecord", nil)
	var reqErr *requestError
	if asRequestError(err, &reqErr) && reqErr.Code == statusOutputNotRunning {
		return nil
	}
	return err
}

// IsRecording reports whether the OBS record output is active.
func (c *Client) IsRecording(ctx context.Context) (bool, error) {
	var status recordStatusData
	if err := c.call(ctx, "GetRecordStatus", &status); err != nil {
		return false, err
	}
	return status.OutputActive, nil
}

// ── Request plumbing ──────────────────────────────────────────────────────────

// call issues one request and decodes its response data into out (which may
// be nil). Event messages received while waiting are skipped.
func (c *Client) call(ctx context.Context, requestType string, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("obs: %s: not connected: %w", requestType, recorder.ErrConnection)
	}

	c.nextID++
	id := strconv.FormatInt(c.nextID, 10)

	req := requestData{RequestType: requestType, RequestID: id}
	if err := writeEnvelope(ctx, c.conn, opRequest, req); err != nil {
		return connErr(requestType, err)
	}

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return connErr(requestType, err)
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return connErr(requestType, err)
		}

		if env.Op != opResponse {
			continue
		}
		var resp responseData
		if err := json.Unmarshal(env.D, &resp); err != nil {
			return connErr(requestType, err)
		}
		if resp.RequestID != id {
			continue
		}

		if !resp.RequestStatus.Result {
			return &requestError{
				RequestType: requestType,
				Code:        resp.RequestStatus.Code,
				Comment:     resp.RequestStatus.Comment,
			}
		}
		if out != nil && len(resp.ResponseData) > 0 {
			if err := json.Unmarshal(resp.ResponseData, out); err != nil {
				return fmt.Errorf("obs: %s: decode response: %w", requestType, err)
			}
		}
		return nil
	}
}

// requestError is a non-success RequestStatus from the server.
type requestError struct {
	RequestType string
	Code        int
	Comment     string
}

func (e *requestError) Error() string {
	return fmt.Sprintf("obs: %s: request failed (code %d): %s", e.RequestType, e.Code, e.Comment)
}

// asRequestError reports whether err is a *requestError, storing it in target.
func asRequestError(err error, target **requestError) bool {
	if err == nil {
		return false
	}
	re, ok := err.(*requestError)
	if ok {
		*target = re
	}
	return ok
}

// connErr wraps a transport failure in [recorder.ErrConnection], preserving
// the underlying detail in the message.
func connErr(op string, err error) error {
	return fmt.Errorf("obs: %s: %w: %v", op, recorder.ErrConnection, err)
}

// ── Handshake ─────────────────────────────────────────────────────────────────

// authToken computes the obs-websocket authentication string:
// base64(sha256(base64(sha256(password + salt)) + challenge)).
func authToken(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	proof := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(proof[:])
}

// ── Protocol message types ────────────────────────────────────────────────────

// envelope is the outer {"op": n, "d": {...}} frame shared by all messages.
type envelope struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type helloData struct {
	ObsWebSocketVersion string `json:"obsWebSocketVersion"`
	RpcVersion          int    `json:"rpcVersion"`
	Authentication      *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication,omitempty"`
}

type identifyData struct {
	RpcVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type identifiedData struct {
	NegotiatedRpcVersion int `json:"negotiatedRpcVersion"`
}

type requestData struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

type responseData struct {
	RequestType   string `json:"requestType"`
	RequestID     string `json:"requestId"`
	RequestStatus struct {
		Result  bool   `json:"result"`
		Code    int    `json:"code"`
		Comment string `json:"comment,omitempty"`
	} `json:"requestStatus"`
	ResponseData json.RawMessage `json:"responseData,omitempty"`
}

type recordStatusData struct {
	OutputActive   bool    `json:"outputActive"`
	OutputPaused   bool    `json:"outputPaused"`
	OutputTimecode string  `json:"outputTimecode"`
	OutputDuration float64 `json:"outputDuration"`
	OutputBytes    int64   `json:"outputBytes"`
}

// writeEnvelope marshals d into an envelope with the given op and sends it
// as one text frame.
func writeEnvelope(ctx context.Context, conn *websocket.Conn, op int, d any) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(envelope{Op: op, D: payload})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, frame)
}

// readEnvelope reads one frame and decodes its payload, requiring the given op.
func readEnvelope(ctx context.Context, conn *websocket.Conn, wantOp int, d any) error {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if env.Op != wantOp {
		return fmt.Errorf("unexpected opcode %d (want %d)", env.Op, wantOp)
	}
	return json.Unmarshal(env.D, d)
}
