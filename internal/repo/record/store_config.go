package record

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	minServiceKeyLength = 20
)

var (
	ErrUnknownDriver     = errors.New("STORE_DRIVER must be sqlite or postgres")
	ErrStoreURLNotSet    = errors.New("STORE_URL is not set")
	ErrServiceKeyNotSet  = errors.New("STORE_SERVICE_KEY is not set")
	ErrServiceKeyTooWeak = fmt.Errorf("STORE_SERVICE_KEY is too short (minimum %d characters)", minServiceKeyLength)
	ErrServiceKeyIsAnon  = errors.New("STORE_SERVICE_KEY appears to be an anonymous key, not a privileged one")
)

// StoreConfig holds the connection settings of the record database.
type StoreConfig struct {
	// Driver selects the database: "sqlite" (default) or "postgres"
	Driver string `env:"DRIVER" default:"sqlite"`
	// URL is the sqlite database path or the postgres connection URL
	URL string `env:"URL" default:"var/storage/promptbank.db"`
	// ServiceKey is the privileged credential of the postgres role
	ServiceKey string `env:"SERVICE_KEY" default:""`
}

// Validate implements config.Validator.
func (cfg StoreConfig) Validate() error {
	var errs []error

	if cfg.Driver != DriverSQLite && cfg.Driver != DriverPostgres {
		errs = append(errs, ErrUnknownDriver)
	}

	if cfg.URL == "" {
		errs = append(errs, ErrStoreURLNotSet)
	}

	if cfg.Driver == DriverPostgres {
		switch {
		case cfg.ServiceKey == "":
			errs = append(errs, ErrServiceKeyNotSet)
		case len(cfg.ServiceKey) < minServiceKeyLength:
			errs = append(errs, ErrServiceKeyTooWeak)
		}

		if strings.Contains(strings.ToLower(cfg.ServiceKey), "anon") {
			errs = append(errs, ErrServiceKeyIsAnon)
		}
	}

	return errors.Join(errs...)
}

// dataSourceName builds the driver specific DSN.
// For postgres the service key is used as the role password.
func (cfg StoreConfig) dataSourceName() (string, error) {
	switch cfg.Driver {
	case DriverSQLite:
		if strings.HasPrefix(cfg.URL, "file:") || cfg.URL == ":memory:" {
			return cfg.URL, nil
		}

		return "file:" + cfg.URL + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	case DriverPostgres:
		if !strings.Contains(cfg.URL, "://") {
			escaped := strings.NewReplacer(`\`, `\\`, "'", `\'`).Replace(cfg.ServiceKey)

			return cfg.URL + " password='" + escaped + "'", nil
		}

		dsn, err := url.Parse(cfg.URL)
		if err != nil {
			return "", fmt.Errorf("parse store url: %w", err)
		}

		dsn.User = url.UserPassword(dsn.User.Username(), cfg.ServiceKey)

		return dsn.String(), nil
	default:
		return "", ErrUnknownDriver
	}
}
