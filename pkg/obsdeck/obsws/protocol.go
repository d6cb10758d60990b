package obsws

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// opcodes of the obs-websocket v5 protocol
const (
	opHello           = 0
	opIdentify        = 1
	opIdentified      = 2
	opEvent           = 5
	opRequest         = 6
	opRequestResponse = 7
)

const (
	rpcVersion = 1

	// close code the server uses when Identify carried a wrong secret
	closeAuthenticationFailed = 4009
)

// request status codes worth telling apart
const (
	StatusSuccess          = 100
	StatusResourceNotFound = 600
)

var (
	// ErrAuthenticationFailed means the server rejected the credential
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrPasswordRequired means the server asked for authentication but no credential was given
	ErrPasswordRequired = errors.New("server requires a password")

	// ErrConnectionClosed is returned for requests issued after the connection went away
	ErrConnectionClosed = errors.New("connection closed")
)

// RequestError is a request the server answered with a non-success status
type RequestError struct {
	Type    string
	Code    int
	Comment string
}

func (e *RequestError) Error() string {
	if e.Comment == "" {
		return fmt.Sprintf("%s failed with code %d", e.Type, e.Code)
	}
	return fmt.Sprintf("%s failed with code %d: %s", e.Type, e.Code, e.Comment)
}

// IsNotFound reports whether err is a RequestError for a missing resource, e.g. a stale input name
func IsNotFound(err error) bool {
	var requestErr *RequestError
	return errors.As(err, &requestErr) && requestErr.Code == StatusResourceNotFound
}

type envelope struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type hello struct {
	ObsWebSocketVersion string `json:"obsWebSocketVersion"`
	RPCVersion          int    `json:"rpcVersion"`
	Authentication      *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication,omitempty"`
}

type identify struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type identified struct {
	NegotiatedRPCVersion int `json:"negotiatedRpcVersion"`
}

type request struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

type requestStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment,omitempty"`
}

type requestResponse struct {
	RequestType   string          `json:"requestType"`
	RequestID     string          `json:"requestId"`
	RequestStatus requestStatus   `json:"requestStatus"`
	ResponseData  json.RawMessage `json:"responseData,omitempty"`
}

// authenticationString computes base64(sha256(base64(sha256(password + salt)) + challenge))
func authenticationString(password, salt, challenge string) string {
	secretHash := sha256.Sum256([]byte(password + salt))
	secret := base64.StdEncoding.EncodeToString(secretHash[:])

	authHash := sha256.Sum256([]byte(secret + challenge))
	return base64.StdEncoding.EncodeToString(authHash[:])
}

func encode(op int, d any) (envelope, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return envelope{}, fmt.Errorf("marshal op %d payload: %w", op, err)
	}

	return envelope{Op: op, D: raw}, nil
}
