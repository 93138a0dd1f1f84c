package lunettes

import (
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/2005czq/lunettes/bionic"
	"github.com/2005czq/lunettes/domain"
	"github.com/google/martian/mitm"
)

// WithOptions applies a series of configuration functions to the proxy instance.
// Each option function can modify the proxy configuration and return an error if it fails.
func (proxy *Proxy) WithOptions(options ...func(*Proxy) error) error {
	for _, option := range options {
		err := option(proxy)
		if err != nil {
			return fmt.Errorf("applying option on lunettes : %w", err)
		}
	}
	return nil
}

// WithConfigDir configures the proxy to use the specified configuration directory.
// It creates the directory if it doesn't exist and loads config.yaml from it,
// writing the defaults on first run.
func WithConfigDir(appConfigDir string) func(*Proxy) error {
	return func(proxy *Proxy) error {
		cfg, err := LoadConfig(appConfigDir)
		if err != nil {
			return err
		}
		proxy.ConfigDir = appConfigDir
		proxy.Config = cfg
		if cfg.Inject.MaxBodyBytes > 0 {
			proxy.MaxBodyBytes = cfg.Inject.MaxBodyBytes
		}
		return nil
	}
}

// WithLogger sets the structured logger used for proxy events. A nil logger discards them.
func WithLogger(logger *slog.Logger) func(*Proxy) error {
	return func(proxy *Proxy) error {
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}
		proxy.Logger = logger
		return nil
	}
}

// WithLogHandler takes a handler function that will be executed on each persisted log
func WithLogHandler(handler func(log domain.Log) error) func(*Proxy) error {
	return func(proxy *Proxy) error {
		if proxy.OnLog != nil {
			return errors.New("proxy already has a log handler defined")
		}
		proxy.OnLog = handler
		return nil
	}
}

// WithSettings sets the source of the settings applied to every page.
func WithSettings(source domain.SettingsSource) func(*Proxy) error {
	return func(proxy *Proxy) error {
		if source == nil {
			return errors.New("settings source is nil")
		}
		proxy.Settings = source
		return nil
	}
}

// WithBuilder sets the stylesheet builder, usually bionic.StylesheetBuilder over a font cache.
func WithBuilder(builder bionic.Builder) func(*Proxy) error {
	return func(proxy *Proxy) error {
		if builder == nil {
			return errors.New("stylesheet builder is nil")
		}
		proxy.Builder = builder
		return nil
	}
}

// WithMaxBodyBytes overrides the largest response body buffered for injection.
func WithMaxBodyBytes(limit int64) func(*Proxy) error {
	return func(proxy *Proxy) error {
		if limit <= 0 {
			return fmt.Errorf("max body bytes must be positive, got %d", limit)
		}
		proxy.MaxBodyBytes = limit
		return nil
	}
}

// WithDefaultModifiers installs the proxy as the martian request and response modifier
// and builds the default pipeline.
func WithDefaultModifiers() func(*Proxy) error {
	return func(proxy *Proxy) error {
		if proxy.martianProxy == nil {
			return errors.New("proxy has no martianProxy")
		}
		if proxy.Settings == nil || proxy.Builder == nil {
			return errors.New("default modifiers need settings and a stylesheet builder")
		}
		proxy.martianProxy.SetRequestModifier(proxy)
		proxy.martianProxy.SetResponseModifier(proxy)

		proxy.AddRequestModifier(PreventLoopModifier)
		proxy.AddRequestModifier(SkipConnectRequestModifier)
		proxy.AddRequestModifier(SetupRequestModifier)
		proxy.AddRequestModifier(SkipCertHostModifier)
		proxy.AddRequestModifier(AcceptEncodingModifier)

		proxy.AddResponseModifier(ResponseFilterModifier)
		proxy.AddResponseModifier(BionicResponseModifier)
		return nil
	}
}

// WithTLS will configure the proxy CA based on the proxy.ConfigDir, creating a new
// authority on first run. The SPKI hash of the CA is stored through the repository
// so that other processes can launch a browser that trusts it.
func WithTLS() func(*Proxy) error {
	return func(proxy *Proxy) error {
		if proxy.ConfigDir == "" {
			return errors.New("config dir is not set, apply WithConfigDir first")
		}
		var x509c *x509.Certificate
		var priv interface{}
		var err error
		certPath := path.Join(proxy.ConfigDir, certFile)
		if _, err = os.Stat(certPath); os.IsNotExist(err) {
			proxy.Logger.Info("certificate does not exist, creating a new one", "path", certPath)
			x509c, priv, err = mitm.NewAuthority("Lunettes", "Lunettes Authority", 365*3*24*time.Hour)
			if err != nil {
				return fmt.Errorf("creating new mitm authority : %w", err)
			}

			if err := saveCertAndKey(x509c, priv, proxy.ConfigDir); err != nil {
				return fmt.Errorf("saving cert and key to disk: %w", err)
			}
		} else {
			proxy.Logger.Info("loading existing certificate", "path", certPath)
			x509c, priv, err = loadCertAndKey(proxy.ConfigDir)
			if err != nil {
				return fmt.Errorf("loading cert and key from disk: %w", err)
			}
		}

		proxy.SPKIHash = getSPKIHash(x509c)
		proxy.Cert = x509c
		if proxy.Repo != nil {
			if err := proxy.Repo.UpdateSPKI(proxy.SPKIHash); err != nil {
				return fmt.Errorf("setting spki hash %s : %w", proxy.SPKIHash, err)
			}
		}
		tlsc, err := mitm.NewConfig(x509c, priv)
		if err != nil {
			return fmt.Errorf("creating new mitm config : %w", err)
		}
		proxy.martianProxy.SetMITM(tlsc)
		tlsConfig := tlsc.TLS()

		// Add system certificates + lunettes cert
		systemPool, err := x509.SystemCertPool()
		if err != nil {
			return fmt.Errorf("fetching system cert pool : %w", err)
		}
		tlsConfig.RootCAs = systemPool
		tlsConfig.RootCAs.AddCert(x509c)
		proxy.TLSConfig = tlsConfig
		return nil
	}
}

// WithRepo sets the repository used for logs and the SPKI hash, closing any previous one.
func WithRepo(repo Repository) func(*Proxy) error {
	return func(proxy *Proxy) error {
		if proxy.Repo != nil {
			if err := proxy.Repo.Close(); err != nil {
				return err
			}
			proxy.Repo = nil
		}
		proxy.Repo = repo
		return nil
	}
}
