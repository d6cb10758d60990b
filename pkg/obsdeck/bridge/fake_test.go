package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errNoSuchSource = errors.New("no source was found by the name")

// fakeSession is an in-memory mixer recording every call made against it
type fakeSession struct {
	mu sync.Mutex

	inputs      []Input
	outputs     []Output
	scenes      SceneInventory
	collections SceneCollectionInventory
	listErr     map[InventoryKind]error

	muted       map[string]bool
	muteChanges int
	volumes     map[string]float64
	calls       []string

	done      chan struct{}
	closeOnce sync.Once
	closed    int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		inputs: []Input{
			{Name: "Mic/Aux", Kind: "pulse_input_capture"},
			{Name: "Desktop Audio", Kind: "pulse_output_capture"},
			{Name: "Webcam Mic", Kind: "pulse_input_capture"},
		},
		outputs: []Output{{Name: "simple_file_output", Kind: "ffmpeg_muxer"}},
		scenes: SceneInventory{
			CurrentProgram: "Live",
			Scenes:         []Scene{{Name: "Live", Index: 0}, {Name: "BRB", Index: 1}},
		},
		collections: SceneCollectionInventory{Current: "Default", Collections: []string{"Default"}},
		listErr:     make(map[InventoryKind]error),
		muted:       make(map[string]bool),
		volumes:     make(map[string]float64),
		done:        make(chan struct{}),
	}
}

func (s *fakeSession) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *fakeSession) ListInputs(ctx context.Context) ([]Input, error) {
	s.record("ListInputs")
	return s.inputs, s.listErr[KindInputs]
}

func (s *fakeSession) ListOutputs(ctx context.Context) ([]Output, error) {
	s.record("ListOutputs")
	return s.outputs, s.listErr[KindOutputs]
}

func (s *fakeSession) ListScenes(ctx context.Context) (SceneInventory, error) {
	s.record("ListScenes")
	return s.scenes, s.listErr[KindScenes]
}

func (s *fakeSession) ListSceneCollections(ctx context.Context) (SceneCollectionInventory, error) {
	s.record("ListSceneCollections")
	return s.collections, s.listErr[KindSceneCollections]
}

func (s *fakeSession) known(sourceID string) bool {
	for _, input := range s.inputs {
		if input.Name == sourceID {
			return true
		}
	}
	return false
}

func (s *fakeSession) SetMute(ctx context.Context, sourceID string, muted bool) error {
	s.record(fmt.Sprintf("SetMute(%s,%v)", sourceID, muted))

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.known(sourceID) {
		return errNoSuchSource
	}
	if s.muted[sourceID] != muted {
		s.muted[sourceID] = muted
		s.muteChanges++
	}
	return nil
}

func (s *fakeSession) SetVolume(ctx context.Context, sourceID string, factor float64) error {
	s.record(fmt.Sprintf("SetVolume(%s,%.2f)", sourceID, factor))

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.known(sourceID) {
		return errNoSuchSource
	}
	s.volumes[sourceID] = factor
	return nil
}

func (s *fakeSession) Done() <-chan struct{} {
	return s.done
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()

	s.drop()
	return nil
}

// drop simulates the mixer going away
func (s *fakeSession) drop() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *fakeSession) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeSession) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeDialer struct {
	mu sync.Mutex

	// errs are returned by successive Connect calls before sessions are handed out
	errs     []error
	prepare  func(*fakeSession)
	sessions []*fakeSession
	logins   []LogIn
}

func (d *fakeDialer) Connect(ctx context.Context, address string, port uint16, credential string) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.logins = append(d.logins, LogIn{Address: address, Port: port, Credential: credential})

	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		return nil, err
	}

	session := newFakeSession()
	if d.prepare != nil {
		d.prepare(session)
	}
	d.sessions = append(d.sessions, session)

	return session, nil
}

func (d *fakeDialer) Session(i int) *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.sessions) {
		return nil
	}
	return d.sessions[i]
}

func (d *fakeDialer) SessionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

var testLogIn = LogIn{Address: "127.0.0.1", Port: 4455, Credential: "test1234"}

// startBridge runs a bridge in the background for the duration of the test
func startBridge(t *testing.T, dialer Dialer, opts Options) *Bridge {
	t.Helper()

	b := New(zap.NewNop().Sugar(), dialer, opts)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = b.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	return b
}

const waitTimeout = 2 * time.Second

func nextEvent(t *testing.T, b *Bridge) Event {
	t.Helper()

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if event, ok := b.PollEvent(); ok {
			return event
		}
		time.Sleep(time.Millisecond)
	}

	require.FailNow(t, "timed out waiting for an event")
	return nil
}

func nextSnapshot(t *testing.T, b *Bridge) Snapshot {
	t.Helper()

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if snapshot, ok := b.PollSnapshot(); ok {
			return snapshot
		}
		time.Sleep(time.Millisecond)
	}

	require.FailNow(t, "timed out waiting for a snapshot")
	return nil
}

func expectStatus(t *testing.T, b *Bridge, from, to Status) {
	t.Helper()
	require.Equal(t, StatusChanged{From: from, To: to}, nextEvent(t, b))
}

// logInAndDrain performs a successful login and consumes its events and snapshots
func logInAndDrain(t *testing.T, b *Bridge) {
	t.Helper()

	require.True(t, b.SubmitCommand(testLogIn))
	expectStatus(t, b, StatusDisconnected, StatusConnecting)
	expectStatus(t, b, StatusConnecting, StatusConnected)
	for range DefaultInventories {
		nextSnapshot(t, b)
	}
}
