package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"biosys/geo"
)

// a type with service configuration parameters
type serviceConfig struct {
	// Name under which the service reports itself.
	Name string `json:"name" yaml:"name"`
	// Port on which the service listens.
	Port int `json:"port" yaml:"port"`
	// Maximum number of allowed incoming connections.
	MaxConnections int `json:"maxConnections" yaml:"max_connections"`
	// Directory in which the service keeps its data files.
	DataDirectory string `json:"dataDirectory" yaml:"data_directory"`
}

// a type with geometry configuration parameters
type geoConfig struct {
	// Datum assumed for rows that carry no datum column.
	DefaultDatum string `json:"defaultDatum" yaml:"default_datum"`
}

// a type with species name service parameters
type speciesConfig struct {
	// Base URL of the WFS-style taxonomy service (blank disables lookups).
	URL string `json:"url" yaml:"url"`
	// Request timeout in seconds.
	Timeout int `json:"timeout" yaml:"timeout"`
}

// a type with authentication parameters
type authConfig struct {
	// Base64 fernet keys accepted for access tokens, newest first.
	Keys []string `json:"keys" yaml:"keys"`
}

// global config variables
var Service serviceConfig
var Geo geoConfig
var Species speciesConfig
var Auth authConfig

// This struct performs the unmarshalling from the YAML config file and then
// copies its fields to the globals above.
type configFile struct {
	Service serviceConfig `yaml:"service"`
	Geo     geoConfig     `yaml:"geo"`
	Species speciesConfig `yaml:"species"`
	Auth    authConfig    `yaml:"auth"`
}

// This helper reads configuration data, returning an error indicating
// success or failure. All environment variables of the form ${ENV_VAR} are
// expanded.
func readConfig(bytes []byte) error {
	// Before we do anything else, expand any provided environment variables.
	bytes = []byte(os.ExpandEnv(string(bytes)))

	var conf configFile
	conf.Service.Name = "biosys"
	conf.Service.Port = 8080
	conf.Service.MaxConnections = 100
	conf.Service.DataDirectory = "."
	conf.Geo.DefaultDatum = "WGS84"
	conf.Species.Timeout = 30
	err := yaml.Unmarshal(bytes, &conf)
	if err != nil {
		log.Printf("Couldn't parse configuration data: %s\n", err)
		return err
	}

	// copy the config data into place
	Service = conf.Service
	Geo = conf.Geo
	Species = conf.Species
	Auth = conf.Auth

	return err
}

// This helper validates the given service parameters, returning an error
// indicating success or failure.
func validateServiceParameters(params serviceConfig) error {
	if params.Port < 0 || params.Port > 65535 {
		return fmt.Errorf("Invalid port: %d (must be 0-65535)", params.Port)
	}
	if params.MaxConnections <= 0 {
		return fmt.Errorf("Invalid maxConnections: %d (must be positive)",
			params.MaxConnections)
	}
	return nil
}

// This helper validates the loaded configuration, returning an error that
// indicates success or failure.
func validateConfig() error {
	err := validateServiceParameters(Service)
	if err != nil {
		return err
	}

	// Is the default datum one we support?
	if !geo.IsSupportedDatum(Geo.DefaultDatum) {
		return fmt.Errorf("Unsupported default datum: %s (must be one of %v)",
			Geo.DefaultDatum, geo.DatumNames())
	}

	if Species.Timeout <= 0 {
		return fmt.Errorf("Invalid species timeout: %d (must be positive)",
			Species.Timeout)
	}
	return nil
}

// the SRID corresponding to the configured default datum
func DefaultSRID() int {
	srid, err := geo.DatumSRID(Geo.DefaultDatum)
	if err != nil {
		return geo.ModelSRID
	}
	return srid
}

// Initializes the service configuration using the given YAML byte data.
func Init(yamlData []byte) error {

	// Read the configuration from our YAML file.
	err := readConfig(yamlData)
	if err != nil {
		return err
	}

	// Validate the configuration.
	err = validateConfig()
	return err
}
