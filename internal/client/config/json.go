package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/tokenkeeper/internal/flagx"
	"github.com/dmitrijs2005/tokenkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer and
// nil-able fields distinguish "absent" from "zero" so a partial file only
// overrides what it names.
type JsonConfig struct {
	ServerURL            string          `json:"server_url"`
	GRPCAddr             string          `json:"grpc_addr"`
	StoreBackend         string          `json:"store_backend"`
	DBPath               string          `json:"db_path"`
	RedisAddr            string          `json:"redis_addr"`
	EncryptionPassphrase string          `json:"encryption_passphrase"`
	RefreshThreshold     *timex.Duration `json:"refresh_threshold"`
	RequestTimeout       *timex.Duration `json:"request_timeout"`
	GracefulPaths        []string        `json:"graceful_paths"`
	LogLevel             string          `json:"log_level"`
	LogFormat            string          `json:"log_format"`
	MetricsAddr          string          `json:"metrics_addr"`
}

// parseJson overlays Config with values loaded from a JSON file selected via
// -c or -config (or $TOKENKEEPER_CONFIG). Without either it does nothing. Read or unmarshal
// errors panic; the caller is main.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.GRPCAddr, jc.GRPCAddr)
	setString(&cfg.StoreBackend, jc.StoreBackend)
	setString(&cfg.DBPath, jc.DBPath)
	setString(&cfg.RedisAddr, jc.RedisAddr)
	setString(&cfg.EncryptionPassphrase, jc.EncryptionPassphrase)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)
	setString(&cfg.MetricsAddr, jc.MetricsAddr)

	if jc.RefreshThreshold != nil {
		cfg.RefreshThreshold = jc.RefreshThreshold.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.GracefulPaths != nil {
		cfg.GracefulPaths = jc.GracefulPaths
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
