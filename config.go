package lunettes

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/2005czq/lunettes/domain"
	"github.com/spf13/viper"
)

type ChromePathConfig struct {
	OS   string `mapstructure:"os"`   // OS for the given path
	Path string `mapstructure:"path"` // Custom chrome path
}

// FontsConfig overrides where the bionic fonts are downloaded from.
type FontsConfig struct {
	SansURL      string        `mapstructure:"sans_url"`
	SerifURL     string        `mapstructure:"serif_url"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"` // 0 waits for the download indefinitely
}

type InjectConfig struct {
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

type Config struct {
	viper         *viper.Viper
	ConfigDir     string             `mapstructure:"config_dir"` // Current config dir
	DesktopOS     string             `mapstructure:"desktop_os"` // Operating system identifier
	ListenAddress string             `mapstructure:"listen_address"`
	ListenPort    string             `mapstructure:"listen_port"`
	Database      string             `mapstructure:"database"` // Relative paths are resolved against ConfigDir
	Fonts         FontsConfig        `mapstructure:"fonts"`
	Inject        InjectConfig       `mapstructure:"inject"`
	ChromeDirs    []ChromePathConfig `mapstructure:"chrome_dirs"`
}

// LoadConfig reads config.yaml from appConfigDir, creating the directory and the
// file with defaults when they do not exist. The file is rewritten from the struct
// so that new keys appear in it.
func LoadConfig(appConfigDir string) (*Config, error) {
	_, err := os.ReadDir(appConfigDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("checking if directory exists %s: %w", appConfigDir, err)
		}
		if err := os.MkdirAll(appConfigDir, 0700); err != nil {
			return nil, fmt.Errorf("creating config dir %s: %w", appConfigDir, err)
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(appConfigDir)
	v.SetDefault("listen_address", "127.0.0.1")
	v.SetDefault("listen_port", "8080")
	v.SetDefault("database", "lunettes.db")
	v.SetDefault("fonts.sans_url", "")
	v.SetDefault("fonts.serif_url", "")
	v.SetDefault("fonts.fetch_timeout", time.Duration(0))
	v.SetDefault("inject.max_body_bytes", DefaultMaxBodyBytes)
	v.SetDefault("chrome_dirs", []ChromePathConfig{})

	err = v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file : %w", err)
		}
		if err := v.SafeWriteConfig(); err != nil {
			return nil, fmt.Errorf("writing config file : %w", err)
		}
	}

	cfg := &Config{viper: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config to struct : %w", err)
	}
	cfg.ConfigDir = appConfigDir
	cfg.DesktopOS = runtime.GOOS

	// Rewrite entire file from struct
	if err := v.WriteConfig(); err != nil {
		return nil, fmt.Errorf("writing config after unmarshalling : %w", err)
	}
	return cfg, nil
}

// DatabasePath returns the database location, resolving relative names against ConfigDir.
func (cfg *Config) DatabasePath() string {
	if filepath.IsAbs(cfg.Database) {
		return cfg.Database
	}
	return filepath.Join(cfg.ConfigDir, cfg.Database)
}

// FontSources returns the configured font URL overrides, keyed by category.
func (cfg *Config) FontSources() map[domain.FontCategory]domain.FontSource {
	sources := make(map[domain.FontCategory]domain.FontSource)
	if cfg.Fonts.SansURL != "" {
		sources[domain.FontSans] = domain.FontSource{URL: cfg.Fonts.SansURL}
	}
	if cfg.Fonts.SerifURL != "" {
		sources[domain.FontSerif] = domain.FontSource{URL: cfg.Fonts.SerifURL}
	}
	return sources
}

func (cfg *Config) save() error {
	cfg.viper.Set("chrome_dirs", cfg.ChromeDirs)
	if err := cfg.viper.WriteConfig(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	return nil
}

func (cfg *Config) AddChromePath(path, os string) error {
	switch os {
	case "darwin", "linux", "windows":
		cfg.ChromeDirs = append(cfg.ChromeDirs, ChromePathConfig{OS: os, Path: path})
		return cfg.save()
	default:
		return errors.New("invalid os string")
	}
}

func (cfg *Config) DeleteChromePath(path, os string) error {
	chromePath := ChromePathConfig{OS: os, Path: path}
	cfg.ChromeDirs = slices.DeleteFunc(cfg.ChromeDirs, func(c ChromePathConfig) bool {
		return c.OS == chromePath.OS && c.Path == chromePath.Path
	})
	return cfg.save()
}

// getSPKIHash computes the SHA-256 hash of the certificate's Subject Public Key Info
// and returns it as a base64-encoded string.
func getSPKIHash(cert *x509.Certificate) string {
	spkiHash := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return base64.StdEncoding.EncodeToString(spkiHash[:])
}

func saveCertAndKey(cert *x509.Certificate, priv interface{}, configDir string) error {
	certPath := path.Join(configDir, certFile)
	keyPath := path.Join(configDir, keyFile)
	certOut, err := os.Create(certPath)
	if err != nil {
		return fmt.Errorf("failed to open cert file for writing: %w", err)
	}
	defer certOut.Close()
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}); err != nil {
		return fmt.Errorf("failed to write data to cert file: %w", err)
	}

	keyOut, err := os.OpenFile(keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open key file for writing: %w", err)
	}
	defer keyOut.Close()
	privBytes, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("unable to marshal private key: %w", err)
	}
	if err := pem.Encode(keyOut, &pem.Block{Type: "PRIVATE KEY", Bytes: privBytes}); err != nil {
		return fmt.Errorf("failed to write data to key file: %w", err)
	}

	return nil
}

func loadCertAndKey(configDir string) (*x509.Certificate, interface{}, error) {
	certPath := path.Join(configDir, certFile)
	keyPath := path.Join(configDir, keyFile)
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read cert file: %w", err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, nil, fmt.Errorf("failed to decode cert PEM block")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read key file: %w", err)
	}
	block, _ = pem.Decode(keyPEM)
	if block == nil || block.Type != "PRIVATE KEY" {
		return nil, nil, fmt.Errorf("failed to decode key PEM block")
	}
	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return cert, priv, nil
}
