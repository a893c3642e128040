package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/openmana/accountserver/engine/omlog"
)

func init() {
	SetConfigFile("../../accountserver.ini.sample")
}

func TestLoad(t *testing.T) {
	config := Get()
	omlog.Debugf("account server config: \n%s", DumpPretty(config))
	if config == nil {
		t.FailNow()
	}
	if config.AccountServer.BindIp == "" {
		t.Errorf("accountserver bind ip not found")
	}
	if config.AccountServer.BindPort == 0 {
		t.Errorf("accountserver bind port not found")
	}
}

func TestReload(t *testing.T) {
	Get()
	config := Reload()
	omlog.Debugf("account server config: \n%s", DumpPretty(config))
}

func TestGetAccountServer(t *testing.T) {
	cfg := GetAccountServer()
	assert.T(t, cfg != nil, "accountserver config is nil")
	assert.T(t, cfg.StatsDumpInterval > 0, "stats dump interval not read")
}

func TestGetStorage(t *testing.T) {
	cfg := GetStorage()
	if cfg == nil {
		t.Errorf("storage config not found")
	}
	assert.Equal(t, "filesystem", cfg.Type)
	fmt.Fprintf(os.Stderr, "%s\n", DumpPretty(cfg))
}

func TestRedisStorageDBDefault(t *testing.T) {
	iniFile := path.Join(t.TempDir(), "accountserver.ini")
	ini := "[storage]\ntype = redis\nurl = 127.0.0.1:6379\n"
	if err := ioutil.WriteFile(iniFile, []byte(ini), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	SetConfigFile(iniFile)
	defer func() {
		SetConfigFile("../../accountserver.ini.sample")
		Reload()
	}()

	// without an explicit db key, redis defaults to database index 0
	cfg := Reload()
	assert.Equal(t, "redis", cfg.Storage.Type)
	assert.Equal(t, "0", cfg.Storage.DB)
}

func TestSetConfigFile(t *testing.T) {
	SetConfigFile("../../accountserver.ini.sample")
	Reload()
}
