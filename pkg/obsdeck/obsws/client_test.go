package obsws

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MixyLabs/obsdeck/pkg/obsdeck/bridge"
)

const (
	testPassword  = "test1234"
	testSalt      = "lM1GncleQOaCu9lT1yeUZhFYnqhsLLP1G5lAGo3ixaI="
	testChallenge = "+IxH4CnCiqpX1rM9scsNynZzbOe4KhDeYcTNS3PDaeY="
)

// fakeOBS speaks just enough obs-websocket v5 to exercise the client
type fakeOBS struct {
	password string

	mu       sync.Mutex
	requests []request
	muted    map[string]bool
	volumes  map[string]float64
	conns    []*websocket.Conn
}

func newFakeOBS(t *testing.T, password string) (*fakeOBS, string, uint16) {
	t.Helper()

	obs := &fakeOBS{
		password: password,
		muted:    make(map[string]bool),
		volumes:  make(map[string]float64),
	}

	server := httptest.NewServer(http.HandlerFunc(obs.serve))
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.ParseUint(portStr, 10, 16)
	require.NoError(t, err)

	return obs, host, uint16(port)
}

var upgrader = websocket.Upgrader{}

func (o *fakeOBS) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	o.mu.Lock()
	o.conns = append(o.conns, conn)
	o.mu.Unlock()

	greeting := map[string]any{"obsWebSocketVersion": "5.4.2", "rpcVersion": 1}
	if o.password != "" {
		greeting["authentication"] = map[string]string{"challenge": testChallenge, "salt": testSalt}
	}
	if err := o.send(conn, opHello, greeting); err != nil {
		return
	}

	var in envelope
	if err := conn.ReadJSON(&in); err != nil || in.Op != opIdentify {
		return
	}

	var ident identify
	if err := json.Unmarshal(in.D, &ident); err != nil {
		return
	}
	if o.password != "" && ident.Authentication != authenticationString(o.password, testSalt, testChallenge) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeAuthenticationFailed, "Authentication failed."),
			time.Now().Add(time.Second))
		return
	}

	if err := o.send(conn, opIdentified, map[string]int{"negotiatedRpcVersion": 1}); err != nil {
		return
	}

	for {
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		if in.Op != opRequest {
			continue
		}

		var req struct {
			RequestType string          `json:"requestType"`
			RequestID   string          `json:"requestId"`
			RequestData json.RawMessage `json:"requestData"`
		}
		if err := json.Unmarshal(in.D, &req); err != nil {
			return
		}

		o.mu.Lock()
		o.requests = append(o.requests, request{RequestType: req.RequestType, RequestID: req.RequestID})
		o.mu.Unlock()

		status, data := o.handle(req.RequestType, req.RequestData)
		resp := map[string]any{
			"requestType":   req.RequestType,
			"requestId":     req.RequestID,
			"requestStatus": status,
		}
		if data != nil {
			resp["responseData"] = data
		}
		if err := o.send(conn, opRequestResponse, resp); err != nil {
			return
		}
	}
}

func (o *fakeOBS) handle(requestType string, raw json.RawMessage) (requestStatus, any) {
	ok := requestStatus{Result: true, Code: StatusSuccess}

	switch requestType {
	case "GetInputList":
		return ok, map[string]any{"inputs": []map[string]any{
			{"inputName": "Mic/Aux", "inputKind": "pulse_input_capture", "unversionedInputKind": "pulse_input_capture"},
			{"inputName": "Desktop Audio", "inputKind": "pulse_output_capture", "unversionedInputKind": "pulse_output_capture"},
		}}
	case "GetOutputList":
		return ok, map[string]any{"outputs": []map[string]any{
			{"outputName": "simple_stream", "outputKind": "rtmp_output", "outputActive": true},
		}}
	case "GetSceneList":
		return ok, map[string]any{
			"currentProgramSceneName": "Live",
			"currentPreviewSceneName": nil,
			"scenes": []map[string]any{
				{"sceneName": "BRB", "sceneIndex": 1},
				{"sceneName": "Live", "sceneIndex": 0},
			},
		}
	case "GetSceneCollectionList":
		return ok, map[string]any{
			"currentSceneCollectionName": "Untitled",
			"sceneCollections":           []string{"Untitled", "Podcast"},
		}
	case "SetInputMute", "SetInputVolume":
		var data struct {
			InputName      string  `json:"inputName"`
			InputMuted     bool    `json:"inputMuted"`
			InputVolumeMul float64 `json:"inputVolumeMul"`
		}
		_ = json.Unmarshal(raw, &data)
		if data.InputName != "Mic/Aux" && data.InputName != "Desktop Audio" {
			return requestStatus{Code: StatusResourceNotFound, Comment: "No source was found by the name of `" + data.InputName + "`."}, nil
		}

		o.mu.Lock()
		defer o.mu.Unlock()
		if requestType == "SetInputMute" {
			o.muted[data.InputName] = data.InputMuted
		} else {
			o.volumes[data.InputName] = data.InputVolumeMul
		}
		return ok, nil
	default:
		return requestStatus{Code: 204, Comment: "Your request type is not valid."}, nil
	}
}

func (o *fakeOBS) send(conn *websocket.Conn, op int, d any) error {
	msg, err := encode(op, d)
	if err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// kick drops every open connection from the server side
func (o *fakeOBS) kick() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, conn := range o.conns {
		_ = conn.Close()
	}
}

func dial(t *testing.T, host string, port uint16, password string) (*Client, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return NewDialer(zap.NewNop().Sugar()).Dial(ctx, host, port, password)
}

func TestAuthenticationString(t *testing.T) {
	// value published in the obs-websocket protocol documentation
	assert.Equal(t,
		"1Ct943GAT+6YQUUX47Ia/ncufilbe6+oD6lY+5kaCu4=",
		authenticationString("supersecretpassword", testSalt, testChallenge))
}

func TestDialAndListInventories(t *testing.T) {
	obs, host, port := newFakeOBS(t, testPassword)

	client, err := dial(t, host, port, testPassword)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	inputs, err := client.ListInputs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []bridge.Input{
		{Name: "Mic/Aux", Kind: "pulse_input_capture"},
		{Name: "Desktop Audio", Kind: "pulse_output_capture"},
	}, inputs)
	assert.True(t, inputs[0].IsMicrophone())
	assert.True(t, inputs[1].IsDesktopAudio())

	outputs, err := client.ListOutputs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []bridge.Output{{Name: "simple_stream", Kind: "rtmp_output", Active: true}}, outputs)

	scenes, err := client.ListScenes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Live", scenes.CurrentProgram)
	assert.Empty(t, scenes.CurrentPreview)
	assert.Len(t, scenes.Scenes, 2)

	collections, err := client.ListSceneCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, bridge.SceneCollectionInventory{Current: "Untitled", Collections: []string{"Untitled", "Podcast"}}, collections)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.requests, 4)
	ids := map[string]bool{}
	for _, req := range obs.requests {
		assert.NotEmpty(t, req.RequestID)
		ids[req.RequestID] = true
	}
	assert.Len(t, ids, 4, "request ids are unique")
}

func TestSetMuteAndVolume(t *testing.T) {
	obs, host, port := newFakeOBS(t, "")

	client, err := dial(t, host, port, "")
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.SetMute(ctx, "Mic/Aux", true))
	require.NoError(t, client.SetVolume(ctx, "Desktop Audio", 0.5))

	err = client.SetVolume(ctx, "Gone", 0.5)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var requestErr *RequestError
	require.ErrorAs(t, err, &requestErr)
	assert.Equal(t, "SetInputVolume", requestErr.Type)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.True(t, obs.muted["Mic/Aux"])
	assert.Equal(t, 0.5, obs.volumes["Desktop Audio"])
}

func TestDialWithWrongPassword(t *testing.T) {
	_, host, port := newFakeOBS(t, testPassword)

	_, err := dial(t, host, port, "wrong")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestDialWithoutPasswordWhenRequired(t *testing.T) {
	_, host, port := newFakeOBS(t, testPassword)

	_, err := dial(t, host, port, "")
	assert.ErrorIs(t, err, ErrPasswordRequired)
}

func TestDialNobodyListening(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	_, err = dial(t, "127.0.0.1", uint16(port), "")
	assert.Error(t, err)
}

func TestConnectFailureReturnsNilSession(t *testing.T) {
	_, host, port := newFakeOBS(t, testPassword)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	session, err := NewDialer(zap.NewNop().Sugar()).Connect(ctx, host, port, "wrong")
	require.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.True(t, session == nil, "failed Connect must return an untyped nil session")
}

func TestServerDropClosesDone(t *testing.T) {
	obs, host, port := newFakeOBS(t, "")

	client, err := dial(t, host, port, "")
	require.NoError(t, err)
	defer client.Close()

	obs.kick()

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done was not closed after the server went away")
	}

	assert.ErrorIs(t, client.Err(), ErrConnectionClosed)

	err = client.SetMute(context.Background(), "Mic/Aux", true)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	_, host, port := newFakeOBS(t, "")

	client, err := dial(t, host, port, "")
	require.NoError(t, err)

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())

	select {
	case <-client.Done():
	default:
		t.Fatal("Done must be closed after Close")
	}
}

func TestRequestHonoursContext(t *testing.T) {
	_, host, port := newFakeOBS(t, "")

	client, err := dial(t, host, port, "")
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.ListInputs(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
