package config

import (
	"encoding/json"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-ini/ini"
	"github.com/openmana/accountserver/engine/omlog"
)

const (
	_DEFAULT_CONFIG_FILE         = "accountserver.ini"
	_DEFAULT_LOCALHOST_IP        = "127.0.0.1"
	_DEFAULT_HTTP_IP             = "127.0.0.1"
	_DEFAULT_LOG_LEVEL           = "debug"
	_DEFAULT_STORAGE_DB          = "openmana"
	_DEFAULT_REDIS_DB_INDEX      = "0"
	_DEFAULT_STATS_DUMP_INTERVAL = time.Minute
)

var (
	configFilePath = _DEFAULT_CONFIG_FILE
	serverConfig   *ServerConfig
	configLock     sync.Mutex
)

// AccountServerConfig defines fields of the account server config
type AccountServerConfig struct {
	BindIp            string
	BindPort          int
	HTTPIp            string
	HTTPPort          int
	LogFile           string
	LogStderr         bool
	LogLevel          string
	GoMaxProcs        int
	StatsDumpInterval time.Duration
}

// StorageConfig defines fields of the character storage config
type StorageConfig struct {
	Type      string // Type of storage (filesystem, mongodb, redis)
	Directory string // Directory of filesystem storage (filesystem)
	Url       string // Connection URL (mongodb, redis)
	DB        string // Database name (mongodb) / db index (redis)
}

// ServerConfig defines the total config file structure
type ServerConfig struct {
	AccountServer AccountServerConfig
	Storage       StorageConfig
}

// SetConfigFile sets the config file path (accountserver.ini by default)
func SetConfigFile(f string) {
	configFilePath = f
}

// GetConfigDir returns the directory of the config file
func GetConfigDir() string {
	dir, _ := path.Split(configFilePath)
	return dir
}

// GetConfigFilePath returns the config file path
func GetConfigFilePath() string {
	return configFilePath
}

// Get returns the total config
func Get() *ServerConfig {
	configLock.Lock()
	defer configLock.Unlock()
	if serverConfig == nil {
		serverConfig = readServerConfig()
	}
	return serverConfig
}

// Reload forces the server to reload the whole config
func Reload() *ServerConfig {
	configLock.Lock()
	serverConfig = nil
	configLock.Unlock()

	return Get()
}

// GetAccountServer returns the account server config
func GetAccountServer() *AccountServerConfig {
	return &Get().AccountServer
}

// GetStorage returns the storage config
func GetStorage() *StorageConfig {
	return &Get().Storage
}

// DumpPretty formats config to string in pretty format
func DumpPretty(cfg interface{}) string {
	s, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return err.Error()
	}
	return string(s)
}

func readServerConfig() *ServerConfig {
	config := ServerConfig{}
	omlog.Infof("Using config file: %s", configFilePath)
	iniFile, err := ini.Load(configFilePath)
	checkConfigError(err, "")

	readAccountServerDefaults(&config.AccountServer)
	readStorageDefaults(&config.Storage)

	for _, sec := range iniFile.Sections() {
		secName := strings.ToLower(sec.Name())
		if secName == "default" {
			continue
		}

		if secName == "accountserver" {
			readAccountServerConfig(sec, &config.AccountServer)
		} else if secName == "storage" {
			readStorageConfig(sec, &config.Storage)
		} else {
			omlog.Errorf("unknown section: %s", secName)
		}
	}

	validateConfig(&config)
	return &config
}

func readAccountServerDefaults(ac *AccountServerConfig) {
	ac.BindIp = _DEFAULT_LOCALHOST_IP
	ac.BindPort = 9601
	ac.HTTPIp = _DEFAULT_HTTP_IP
	ac.HTTPPort = 0 // pprof & admin dump not enabled by default
	ac.LogFile = "accountserver.log"
	ac.LogStderr = true
	ac.LogLevel = _DEFAULT_LOG_LEVEL
	ac.GoMaxProcs = 0
	ac.StatsDumpInterval = _DEFAULT_STATS_DUMP_INTERVAL
}

func readAccountServerConfig(sec *ini.Section, ac *AccountServerConfig) {
	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "bind_ip" {
			ac.BindIp = key.MustString(ac.BindIp)
		} else if name == "bind_port" {
			ac.BindPort = key.MustInt(ac.BindPort)
		} else if name == "http_ip" {
			ac.HTTPIp = key.MustString(ac.HTTPIp)
		} else if name == "http_port" {
			ac.HTTPPort = key.MustInt(ac.HTTPPort)
		} else if name == "log_file" {
			ac.LogFile = key.MustString(ac.LogFile)
		} else if name == "log_stderr" {
			ac.LogStderr = key.MustBool(ac.LogStderr)
		} else if name == "log_level" {
			ac.LogLevel = key.MustString(ac.LogLevel)
		} else if name == "gomaxprocs" {
			ac.GoMaxProcs = key.MustInt(ac.GoMaxProcs)
		} else if name == "stats_dump_interval" {
			ac.StatsDumpInterval = time.Second * time.Duration(key.MustInt(int(_DEFAULT_STATS_DUMP_INTERVAL/time.Second)))
		} else {
			omlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}
}

func readStorageDefaults(sc *StorageConfig) {
	sc.Type = "filesystem"
	sc.Directory = "_characters"
	// the db default depends on the storage type, see validateConfig
	sc.DB = ""
}

func readStorageConfig(sec *ini.Section, sc *StorageConfig) {
	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "type" {
			sc.Type = key.MustString(sc.Type)
		} else if name == "directory" {
			sc.Directory = key.MustString(sc.Directory)
		} else if name == "url" {
			sc.Url = key.MustString(sc.Url)
		} else if name == "db" {
			sc.DB = key.MustString(sc.DB)
		} else {
			omlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}
}

func validateConfig(config *ServerConfig) {
	ac := &config.AccountServer
	if ac.BindIp == "" || ac.BindPort == 0 {
		omlog.Fatalf("accountserver bind address is not configured")
	}

	sc := &config.Storage
	if sc.Type == "filesystem" {
		if sc.Directory == "" {
			omlog.Fatalf("filesystem storage directory is not configured")
		}
	} else if sc.Type == "mongodb" || sc.Type == "redis" {
		if sc.Url == "" {
			omlog.Fatalf("%s storage url is not configured", sc.Type)
		}
		if sc.DB == "" {
			if sc.Type == "mongodb" {
				sc.DB = _DEFAULT_STORAGE_DB
			} else {
				sc.DB = _DEFAULT_REDIS_DB_INDEX
			}
		}
		if sc.Type == "redis" {
			if _, err := strconv.Atoi(sc.DB); err != nil {
				omlog.Fatalf("redis storage db must be a numeric database index, not %q", sc.DB)
			}
		}
	} else {
		omlog.Fatalf("unknown storage type: %s", sc.Type)
	}
}

func checkConfigError(err error, msg string) {
	if err != nil {
		if msg == "" {
			msg = err.Error()
		}
		omlog.Panicf("read config error: %s", msg)
	}
}
