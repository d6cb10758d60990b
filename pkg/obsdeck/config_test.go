package obsdeck

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MixyLabs/obsdeck/pkg/obsdeck/bridge"
)

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) Notify(title string, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
}

func (n *recordingNotifier) Titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.titles...)
}

func newTestConfig(t *testing.T, contents string) (*ConfigManager, *recordingNotifier) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if contents != "" {
		require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	}

	notifier := &recordingNotifier{}
	cc, err := NewConfig(zap.NewNop().Sugar(), notifier, path)
	require.NoError(t, err)
	cc.envPath = filepath.Join(dir, ".env")

	return cc, notifier
}

func TestConfigDefaultsWithoutFile(t *testing.T) {
	cc, notifier := newTestConfig(t, "")

	require.NoError(t, cc.Load())

	current := cc.Current()
	assert.Equal(t, "127.0.0.1", current.Connection.Address)
	assert.Equal(t, uint16(4455), current.Connection.Port)
	assert.False(t, current.AutoLogin)
	assert.Equal(t, []string{"inputs", "outputs", "scenes", "scene_collections"}, current.Inventories)
	assert.Equal(t, 30, current.FrameRate)
	assert.Equal(t, bridge.DefaultConnectTimeout, current.ConnectTimeout)
	assert.Equal(t, 5.0, current.VolumeStep)
	assert.Empty(t, notifier.Titles())

	opts, err := current.BridgeOptions()
	require.NoError(t, err)
	assert.Equal(t, bridge.DefaultInventories, opts.Inventories)
	assert.Equal(t, bridge.ReloginReplace, opts.Relogin)
	assert.Equal(t, bridge.DefaultQueueCapacity, opts.QueueCapacity)
}

func TestConfigFromFile(t *testing.T) {
	cc, _ := newTestConfig(t, `
connection:
  address: 192.168.1.20
  port: 4460
  password: hunter2
auto_login: true
relogin_policy: reject
inventories: [inputs, scenes]
queue_capacity: 4
frame_rate: 60
connect_timeout: 3s
request_timeout: 1500ms
controls:
  mic: Mic/Aux
  desktop: Desktop Audio
volume_step: 2.5
metrics_addr: 127.0.0.1:9464
`)

	require.NoError(t, cc.Load())

	current := cc.Current()
	assert.Equal(t, bridge.LogIn{Address: "192.168.1.20", Port: 4460, Credential: "hunter2"}, current.LogIn())
	assert.True(t, current.AutoLogin)
	assert.Equal(t, "Mic/Aux", current.Controls.Mic)
	assert.Equal(t, "Desktop Audio", current.Controls.Desktop)
	assert.Equal(t, 2.5, current.VolumeStep)
	assert.Equal(t, "127.0.0.1:9464", current.MetricsAddr)
	assert.Equal(t, time.Second/60, current.FrameInterval())

	opts, err := current.BridgeOptions()
	require.NoError(t, err)
	assert.Equal(t, bridge.Options{
		QueueCapacity:  4,
		Inventories:    []bridge.InventoryKind{bridge.KindInputs, bridge.KindScenes},
		Relogin:        bridge.ReloginReject,
		ConnectTimeout: 3 * time.Second,
		RequestTimeout: 1500 * time.Millisecond,
	}, opts)
}

func TestConfigPasswordFromEnvFile(t *testing.T) {
	cc, _ := newTestConfig(t, "auto_login: true\n")
	require.NoError(t, os.WriteFile(cc.envPath, []byte("OBSDECK_PASSWORD=from-dotenv\n"), 0600))

	// godotenv never overrides variables that are already set
	t.Setenv(envKeyPassword, "")
	require.NoError(t, os.Unsetenv(envKeyPassword))

	require.NoError(t, cc.Load())
	assert.Equal(t, "from-dotenv", cc.Current().Connection.Password)
}

func TestConfigEnvOverridesFile(t *testing.T) {
	cc, _ := newTestConfig(t, "auto_login: false\nframe_rate: 20\n")

	t.Setenv("OBSDECK_AUTO_LOGIN", "true")
	t.Setenv("OBSDECK_CONNECTION_ADDRESS", "10.0.0.5")

	require.NoError(t, cc.Load())

	current := cc.Current()
	assert.True(t, current.AutoLogin)
	assert.Equal(t, "10.0.0.5", current.Connection.Address)
	assert.Equal(t, 20, current.FrameRate)
}

func TestConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"relogin policy": "relogin_policy: sometimes\n",
		"inventory":      "inventories: [inputs, filters]\n",
		"frame rate":     "frame_rate: 0\n",
		"queue":          "queue_capacity: -1\n",
		"volume step":    "volume_step: 0\n",
		"port":           "connection:\n  port: 0\n",
	}

	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			cc, notifier := newTestConfig(t, contents)

			assert.Error(t, cc.Load())
			assert.Equal(t, []string{"Invalid configuration!"}, notifier.Titles())
		})
	}
}

func TestConfigRejectsBrokenYAML(t *testing.T) {
	cc, notifier := newTestConfig(t, "connection: [unterminated\n")

	assert.Error(t, cc.Load())
	assert.Equal(t, []string{"Invalid configuration!"}, notifier.Titles())
}

func TestConfigReloadReachesSubscribers(t *testing.T) {
	cc, _ := newTestConfig(t, "volume_step: 10\n")
	require.NoError(t, cc.Load())

	first := cc.SubscribeToChanges()
	second := cc.SubscribeToChanges()

	cc.onConfigReloaded()
	cc.onConfigReloaded()

	for _, ch := range []<-chan Config{first, second} {
		select {
		case c := <-ch:
			assert.Equal(t, 10.0, c.VolumeStep)
		default:
			t.Fatal("subscriber did not receive the reloaded config")
		}

		// two reloads without a read collapse into one
		select {
		case <-ch:
			t.Fatal("stale config left in the channel")
		default:
		}
	}
}
