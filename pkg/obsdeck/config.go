package obsdeck

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MixyLabs/obsdeck/pkg/obsdeck/bridge"
	"github.com/MixyLabs/obsdeck/pkg/obsdeck/util"
)

// ConfigManager loads config.yaml, keeps it current and tells subscribers about reloads
type ConfigManager struct {
	logger             *zap.SugaredLogger
	notifier           Notifier
	stopWatcherChannel chan bool

	reloadLock      sync.Mutex
	reloadConsumers []chan Config

	userConfig *viper.Viper
	configPath string
	envPath    string

	currentLock sync.RWMutex
	current     Config
}

// Config is the decoded user configuration
type Config struct {
	Connection struct {
		Address  string `mapstructure:"address"`
		Port     uint16 `mapstructure:"port"`
		Password string `mapstructure:"password"`
	} `mapstructure:"connection"`

	// AutoLogin submits the configured connection on startup instead of showing the login form
	AutoLogin bool `mapstructure:"auto_login"`

	ReloginPolicy string   `mapstructure:"relogin_policy"`
	Inventories   []string `mapstructure:"inventories"`
	QueueCapacity int      `mapstructure:"queue_capacity"`

	FrameRate      int           `mapstructure:"frame_rate"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Controls holds the source names each strip selects once they appear
	Controls struct {
		Mic     string `mapstructure:"mic"`
		Desktop string `mapstructure:"desktop"`
	} `mapstructure:"controls"`

	VolumeStep float64 `mapstructure:"volume_step"`

	DisableTray          bool   `mapstructure:"disable_tray"`
	DisableNotifications bool   `mapstructure:"disable_notifications"`
	MetricsAddr          string `mapstructure:"metrics_addr"`
}

const (
	defaultConfigFilepath = "config.yaml"
	defaultEnvFilepath    = ".env"

	configType = "yaml"
	envPrefix  = "OBSDECK"

	configKeyAddress        = "connection.address"
	configKeyPort           = "connection.port"
	configKeyPassword       = "connection.password"
	configKeyAutoLogin      = "auto_login"
	configKeyReloginPolicy  = "relogin_policy"
	configKeyInventories    = "inventories"
	configKeyQueueCapacity  = "queue_capacity"
	configKeyFrameRate      = "frame_rate"
	configKeyConnectTimeout = "connect_timeout"
	configKeyRequestTimeout = "request_timeout"
	configKeyControlMic     = "controls.mic"
	configKeyControlDesktop = "controls.desktop"
	configKeyVolumeStep     = "volume_step"
	configKeyDisableTray    = "disable_tray"
	configKeyDisableNotify  = "disable_notifications"
	configKeyMetricsAddr    = "metrics_addr"

	// the credential usually comes from the environment or .env rather than config.yaml
	envKeyPassword = "OBSDECK_PASSWORD"

	defaultAddress    = "127.0.0.1"
	defaultPort       = 4455
	defaultFrameRate  = 30
	defaultVolumeStep = 5.0
)

// NewConfig creates a config manager for configPath, or config.yaml in the working directory
func NewConfig(logger *zap.SugaredLogger, notifier Notifier, configPath string) (*ConfigManager, error) {
	logger = logger.Named("config")

	if configPath == "" {
		configPath = defaultConfigFilepath
	}

	cc := &ConfigManager{
		logger:             logger,
		notifier:           notifier,
		stopWatcherChannel: make(chan bool),
		configPath:         configPath,
		envPath:            defaultEnvFilepath,
	}

	userConfig := viper.New()
	userConfig.SetConfigFile(configPath)
	userConfig.SetConfigType(configType)

	userConfig.SetDefault(configKeyAddress, defaultAddress)
	userConfig.SetDefault(configKeyPort, defaultPort)
	userConfig.SetDefault(configKeyPassword, "")
	userConfig.SetDefault(configKeyAutoLogin, false)
	userConfig.SetDefault(configKeyReloginPolicy, bridge.ReloginReplace.String())
	userConfig.SetDefault(configKeyInventories, inventoryNames(bridge.DefaultInventories))
	userConfig.SetDefault(configKeyQueueCapacity, bridge.DefaultQueueCapacity)
	userConfig.SetDefault(configKeyFrameRate, defaultFrameRate)
	userConfig.SetDefault(configKeyConnectTimeout, bridge.DefaultConnectTimeout)
	userConfig.SetDefault(configKeyRequestTimeout, bridge.DefaultRequestTimeout)
	userConfig.SetDefault(configKeyControlMic, "")
	userConfig.SetDefault(configKeyControlDesktop, "")
	userConfig.SetDefault(configKeyVolumeStep, defaultVolumeStep)
	userConfig.SetDefault(configKeyDisableTray, false)
	userConfig.SetDefault(configKeyDisableNotify, false)
	userConfig.SetDefault(configKeyMetricsAddr, "")

	// OBSDECK_AUTO_LOGIN, OBSDECK_CONNECTION_ADDRESS and so on override the file
	userConfig.SetEnvPrefix(envPrefix)
	userConfig.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	userConfig.AutomaticEnv()

	if err := userConfig.BindEnv(configKeyPassword, envKeyPassword); err != nil {
		return nil, fmt.Errorf("bind password env: %w", err)
	}

	cc.userConfig = userConfig

	logger.Debug("Created config instance")

	return cc, nil
}

// Load reads .env and the config file, validates the result and makes it current.
// A missing config file is not an error: defaults apply and the login form asks for the rest.
func (cc *ConfigManager) Load() error {
	cc.logger.Debugw("Loading config", "path", cc.configPath)

	if err := godotenv.Load(cc.envPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			cc.logger.Warnw("Failed to read env file", "path", cc.envPath, "error", err)
		}
	} else {
		cc.logger.Debugw("Loaded env file", "path", cc.envPath)
	}

	if !util.FileExists(cc.configPath) {
		cc.logger.Warnw("Config file not found, using defaults", "path", cc.configPath)
	} else if err := cc.userConfig.ReadInConfig(); err != nil {
		cc.logger.Warnw("Viper failed to read user config", "error", err)

		// if the error is yaml-format-related, show a sensible error. otherwise, show 'em to the logs
		if strings.Contains(err.Error(), "yaml") {
			cc.notifier.Notify("Invalid configuration!",
				fmt.Sprintf("Please make sure %s is in a valid YAML format.", cc.configPath))
		} else {
			cc.notifier.Notify("Error loading configuration!", "Please check obsdeck's logs for more details.")
		}

		return fmt.Errorf("read user config: %w", err)
	}

	next, err := cc.decode()
	if err != nil {
		cc.logger.Warnw("Failed to populate config fields", "error", err)
		cc.notifier.Notify("Invalid configuration!", err.Error())
		return fmt.Errorf("populate config fields: %w", err)
	}

	cc.currentLock.Lock()
	cc.current = next
	cc.currentLock.Unlock()

	cc.logger.Info("Loaded config successfully")
	cc.logger.Infow("Config values",
		"address", next.Connection.Address,
		"port", next.Connection.Port,
		"hasPassword", next.Connection.Password != "",
		"autoLogin", next.AutoLogin,
		"reloginPolicy", next.ReloginPolicy,
		"inventories", next.Inventories,
		"frameRate", next.FrameRate)

	return nil
}

// Current returns a copy of the last successfully loaded config
func (cc *ConfigManager) Current() Config {
	cc.currentLock.RLock()
	defer cc.currentLock.RUnlock()

	return cc.current
}

// SubscribeToChanges allows external components to receive the new config whenever it's reloaded.
// A slow consumer only ever sees the latest one.
func (cc *ConfigManager) SubscribeToChanges() <-chan Config {
	c := make(chan Config, 1)

	cc.reloadLock.Lock()
	cc.reloadConsumers = append(cc.reloadConsumers, c)
	cc.reloadLock.Unlock()

	return c
}

// WatchConfigFileChanges starts watching for configuration file changes
// and attempts reloading the config when they happen
func (cc *ConfigManager) WatchConfigFileChanges() {
	if !util.FileExists(cc.configPath) {
		cc.logger.Debugw("No config file to watch", "path", cc.configPath)
		<-cc.stopWatcherChannel
		return
	}

	cc.logger.Debugw("Starting to watch user config file for changes", "path", cc.configPath)

	const (
		minTimeBetweenReloadAttempts = time.Millisecond * 500
		delayBetweenEventAndReload   = time.Millisecond * 50
	)

	lastAttemptedReload := time.Now()

	// establish watch using viper as opposed to doing it ourselves, though our internal cooldown is still required
	cc.userConfig.OnConfigChange(func(event fsnotify.Event) {
		if event.Op&fsnotify.Write != fsnotify.Write {
			return
		}

		now := time.Now()

		// many editors write the file twice
		if !lastAttemptedReload.Add(minTimeBetweenReloadAttempts).Before(now) {
			return
		}

		cc.logger.Debugw("Config file modified, attempting reload", "event", event)

		// let the editor flush the new contents to disk
		<-time.After(delayBetweenEventAndReload)

		if err := cc.Load(); err != nil {
			cc.logger.Warnw("Failed to reload config file", "error", err)
		} else {
			cc.logger.Info("Reloaded config successfully")
			cc.notifier.Notify("Configuration reloaded!", "Your changes have been applied.")

			cc.onConfigReloaded()
		}

		lastAttemptedReload = now
	})
	cc.userConfig.WatchConfig()

	// wait till they stop us
	<-cc.stopWatcherChannel
	cc.logger.Debug("Stopping user config file watcher")
	cc.userConfig.OnConfigChange(func(fsnotify.Event) {})
}

// StopWatchingConfigFile signals our filesystem watcher to stop
func (cc *ConfigManager) StopWatchingConfigFile() {
	select {
	case cc.stopWatcherChannel <- true:
	case <-time.After(time.Second):
		cc.logger.Debug("Config watcher not running")
	}
}

func (cc *ConfigManager) decode() (Config, error) {
	var next Config

	err := cc.userConfig.Unmarshal(&next, func(dConf *mapstructure.DecoderConfig) {
		// environment overrides arrive as strings
		dConf.WeaklyTypedInput = true
	})
	if err != nil {
		return Config{}, err
	}

	if err := next.validate(); err != nil {
		return Config{}, err
	}

	cc.logger.Debug("Populated config fields from viper")

	return next, nil
}

func (c Config) validate() error {
	if c.Connection.Port == 0 {
		return fmt.Errorf("%s must be between 1 and 65535", configKeyPort)
	}

	if _, err := bridge.ParseReloginPolicy(c.ReloginPolicy); err != nil {
		return err
	}

	if _, err := c.inventoryKinds(); err != nil {
		return err
	}

	if c.QueueCapacity <= 0 {
		return fmt.Errorf("%s must be positive, got %d", configKeyQueueCapacity, c.QueueCapacity)
	}

	if c.FrameRate <= 0 || c.FrameRate > 240 {
		return fmt.Errorf("%s must be between 1 and 240, got %d", configKeyFrameRate, c.FrameRate)
	}

	if c.VolumeStep <= 0 || c.VolumeStep > 100 {
		return fmt.Errorf("%s must be between 0 and 100, got %v", configKeyVolumeStep, c.VolumeStep)
	}

	return nil
}

func (c Config) inventoryKinds() ([]bridge.InventoryKind, error) {
	kinds := make([]bridge.InventoryKind, 0, len(c.Inventories))
	for _, name := range c.Inventories {
		kind, err := bridge.ParseInventoryKind(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", configKeyInventories, err)
		}
		kinds = append(kinds, kind)
	}

	return kinds, nil
}

// BridgeOptions translates the config into driver options
func (c Config) BridgeOptions() (bridge.Options, error) {
	policy, err := bridge.ParseReloginPolicy(c.ReloginPolicy)
	if err != nil {
		return bridge.Options{}, err
	}

	kinds, err := c.inventoryKinds()
	if err != nil {
		return bridge.Options{}, err
	}

	return bridge.Options{
		QueueCapacity:  c.QueueCapacity,
		Inventories:    kinds,
		Relogin:        policy,
		ConnectTimeout: c.ConnectTimeout,
		RequestTimeout: c.RequestTimeout,
	}, nil
}

// LogIn builds the command for the configured connection
func (c Config) LogIn() bridge.LogIn {
	return bridge.LogIn{
		Address:    c.Connection.Address,
		Port:       c.Connection.Port,
		Credential: c.Connection.Password,
	}
}

// FrameInterval is the time between two panel frames
func (c Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}

func (cc *ConfigManager) onConfigReloaded() {
	cc.logger.Debug("Notifying consumers about configuration reload")

	current := cc.Current()

	cc.reloadLock.Lock()
	defer cc.reloadLock.Unlock()

	for _, consumer := range cc.reloadConsumers {
		// replace an unread config with the newer one
		select {
		case <-consumer:
		default:
		}
		consumer <- current
	}
}

func inventoryNames(kinds []bridge.InventoryKind) []string {
	names := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		names = append(names, kind.String())
	}

	return names
}
