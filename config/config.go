package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/viper"
)

type Config struct {
	DatabasePath         string `json:"databasePath" mapstructure:"databasePath"`
	ListenAddr           string `json:"listenAddr" mapstructure:"listenAddr"`
	LogLevel             string `json:"logLevel" mapstructure:"logLevel"`
	Environment          string `json:"environment" mapstructure:"environment"`
	UnitImportFolderPath string `json:"unitImportFolderPath" mapstructure:"unitImportFolderPath"`
}

// ErrInvalidFolder は取込フォルダの指定が不正な場合のエラーです。
var ErrInvalidFolder = errors.New("invalid import folder")

var (
	cfg Config
	mu  sync.RWMutex

	configFilePath = "./pharmunit_config.json"
)

var envBindings = map[string]string{
	"databasePath":         "PHARMUNIT_DATABASE_PATH",
	"listenAddr":           "PHARMUNIT_LISTEN_ADDR",
	"logLevel":             "PHARMUNIT_LOG_LEVEL",
	"environment":          "PHARMUNIT_ENV",
	"unitImportFolderPath": "PHARMUNIT_UNIT_IMPORT_FOLDER",
}

// Defaults は設定ファイルも環境変数もない場合の設定です。
func Defaults() Config {
	return Config{
		DatabasePath: "./pharmunit.db",
		ListenAddr:   ":8080",
		LogLevel:     "info",
		Environment:  "development",
	}
}

// SetConfigFilePath は設定ファイルの場所を変更します。
func SetConfigFilePath(path string) {
	mu.Lock()
	defer mu.Unlock()
	configFilePath = path
}

// LoadConfig は設定ファイルと環境変数から設定を読み込みます。
// ファイルがなければ既定値を使います。
func LoadConfig() (Config, error) {
	mu.Lock()
	defer mu.Unlock()

	v := viper.New()
	v.SetConfigFile(configFilePath)
	v.SetConfigType("json")

	d := Defaults()
	v.SetDefault("databasePath", d.DatabasePath)
	v.SetDefault("listenAddr", d.ListenAddr)
	v.SetDefault("logLevel", d.LogLevel)
	v.SetDefault("environment", d.Environment)
	v.SetDefault("unitImportFolderPath", d.UnitImportFolderPath)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read %s: %w", configFilePath, err)
		}
	}

	var tempCfg Config
	if err := v.Unmarshal(&tempCfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg = tempCfg
	return cfg, nil
}

// SaveConfig は設定をファイルに書き出し、現在の設定を置き換えます。
func SaveConfig(newCfg Config) error {
	if err := ValidateFolderPath(newCfg.UnitImportFolderPath); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	if newCfg.DatabasePath == "" {
		newCfg.DatabasePath = cfg.DatabasePath
	}
	if newCfg.ListenAddr == "" {
		newCfg.ListenAddr = cfg.ListenAddr
	}
	if newCfg.LogLevel == "" {
		newCfg.LogLevel = cfg.LogLevel
	}
	if newCfg.Environment == "" {
		newCfg.Environment = cfg.Environment
	}

	// 書き出しも読み込みと同じ viper を通す (キーは小文字になるが読み込み時は大小を区別しない)
	v := viper.New()
	v.SetConfigType("json")
	v.Set("databasePath", newCfg.DatabasePath)
	v.Set("listenAddr", newCfg.ListenAddr)
	v.Set("logLevel", newCfg.LogLevel)
	v.Set("environment", newCfg.Environment)
	v.Set("unitImportFolderPath", newCfg.UnitImportFolderPath)
	if err := v.WriteConfigAs(configFilePath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	cfg = newCfg
	return nil
}

func GetConfig() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// ValidateFolderPath は空でないパスが既存のフォルダを指しているかを確認します。
func ValidateFolderPath(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: folder not found: %s", ErrInvalidFolder, path)
		}
		return fmt.Errorf("%w: failed to check folder %s: %v", ErrInvalidFolder, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: not a folder: %s", ErrInvalidFolder, path)
	}
	return nil
}
