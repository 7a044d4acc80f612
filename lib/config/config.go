// Package config provides helper functionality to read the node configuration from JSON config files or OS ENV
// variables. The default configuration can be overriden first by:
//
// - a valid JSON config file (see cmd/conf.json for a sample) and then by
//
// - OS ENV variables: prefixed with AIR_ (ie. AIR_SEED, AIR_LOGFORMAT, ...). All OS ENV variables should be valid
// strings, except for AIR_CHAINS, AIR_TRIGGERS and AIR_OIS which should be strings with a valid JSON format.
package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
)

// Default configuration variables
var (
	LogFormatDefault = "plain"
	StageDefault     = "dev"
	PortDefault      = "3030"
	DBTypeDefault    = ""
	DBConnDefault    = ""
	MbTypeDefault    = ""
	MbConnDefault    = ""
	SeedDefault      = "642ce4e20f09c9f4d285c2b336063eaafbe4cb06dece8134f3a64bdd8f8c0c24df73e1a2e7056359b6db61e179ff45e5ada51d14f07b30becb6d92b961d35df4"
	ChainsDefault    = []ChainConfig{
		{
			Type: "evm",
			ID:   3,
			Contracts: Contracts{
				Airnode:     "0xe60b966B798f9a0C41724f111225A5586ff30656",
				Convenience: "0xC9c5565e05C20031E2F3f0839b3301A94a0791A5",
			},
			Providers:                        []ChainProvider{{Name: "infura-ropsten", URL: "https://ropsten.infura.io/v3/<key>"}},
			BlockHistoryLimit:                600,
			IgnoreBlockedRequestsAfterBlocks: 20,
		},
	}
)

// Errors returned validating configurations.
var (
	ErrNoChains      = errors.New("no chains configured")
	ErrNoProviders   = errors.New("chain has no providers configured")
	ErrChainType     = errors.New("unsupported chain type")
	ErrTriggerOIS    = errors.New("trigger references an unknown OIS or endpoint")
	ErrMissingSeed   = errors.New("master key seed is not configured")
	ErrUnknownFormat = errors.New("unknown log format")
)

// Contracts holds the on-chain contract addresses the node talks to.
type Contracts struct {
	Airnode     string `json:"Airnode"`
	Convenience string `json:"Convenience"`
}

// ChainProvider is a JSON-RPC endpoint backing a chain. Many providers may back one chain; requests observed on each
// are cross-referenced by the aggregator.
type ChainProvider struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ChainConfig defines the required fields for one EVM chain the node serves.
type ChainConfig struct {
	Type                             string          `json:"type"`
	ID                               uint64          `json:"id"`
	Contracts                        Contracts       `json:"contracts"`
	Providers                        []ChainProvider `json:"providers"`
	Admin                            string          `json:"providerAdmin"`
	Authorizers                      []string        `json:"authorizers"`
	BlockHistoryLimit                uint64          `json:"blockHistoryLimit"`
	IgnoreBlockedRequestsAfterBlocks uint64          `json:"ignoreBlockedRequestsAfterBlocks"`
}

// Trigger is an (endpointId, oisTitle, endpointName) triple the node agrees to serve.
type Trigger struct {
	EndpointID   string `json:"endpointId"`
	OISTitle     string `json:"oisTitle"`
	EndpointName string `json:"endpointName"`
}

// Triggers groups the request triggers.
type Triggers struct {
	Requests []Trigger `json:"requests"`
}

// Server is an API server base URL.
type Server struct {
	URL string `json:"url"`
}

// APISpecifications is the subset of the API specification the caller needs.
type APISpecifications struct {
	Servers []Server `json:"servers"`
}

// Operation identifies the HTTP operation of an endpoint.
type Operation struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// FixedOperationParameter is always sent to the API with the given value.
type FixedOperationParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ReservedParameter controls response handling: _type, _path and _times. A fixed value overrides whatever the
// requester supplied; a default applies when the requester supplied nothing.
type ReservedParameter struct {
	Name    string `json:"name"`
	Fixed   string `json:"fixed,omitempty"`
	Default string `json:"default,omitempty"`
}

// EndpointParameter maps a request parameter to the API operation.
type EndpointParameter struct {
	Name     string `json:"name"`
	Default  string `json:"default,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// Endpoint declares one API operation the node can serve.
type Endpoint struct {
	Name                     string                    `json:"name"`
	Operation                Operation                 `json:"operation"`
	FixedOperationParameters []FixedOperationParameter `json:"fixedOperationParameters"`
	ReservedParameters       []ReservedParameter       `json:"reservedParameters"`
	Parameters               []EndpointParameter       `json:"parameters"`
}

// OIS is an Oracle Integration Specification: an API and the endpoints served on it.
type OIS struct {
	OISFormat         string            `json:"oisFormat"`
	Version           string            `json:"version"`
	Title             string            `json:"title"`
	APISpecifications APISpecifications `json:"apiSpecifications"`
	Endpoints         []Endpoint        `json:"endpoints"`
}

// Config contains the required fields for the coordinator service.
type Config struct {
	LogFormat     string        `json:"logFormat"`
	CloudProvider string        `json:"cloudProvider"`
	Region        string        `json:"region"`
	Stage         string        `json:"stage"`
	NodeVersion   string        `json:"nodeVersion"`
	Port          string        `json:"port"`
	DBType        string        `json:"dbtype"`
	DBConn        string        `json:"dbconn"`
	MbType        string        `json:"mbtype"`
	MbConn        string        `json:"mbconn"`
	Chains        []ChainConfig `json:"chains"`
	Triggers      Triggers      `json:"triggers"`
	OIS           []OIS         `json:"ois"`
	Seed          string        `json:"hdseed"`
}

// ExtractConfiguration reads from the given JSON filename and returns the Config or an error otherwise.
func ExtractConfiguration(filename string) (Config, error) {
	conf := Config{
		LogFormat: LogFormatDefault,
		Stage:     StageDefault,
		Port:      PortDefault,
		DBType:    DBTypeDefault,
		DBConn:    DBConnDefault,
		MbType:    MbTypeDefault,
		MbConn:    MbConnDefault,
		Chains:    ChainsDefault,
		Seed:      SeedDefault,
	}
	// read from config file first
	if filename != "" {
		file, err := os.Open(filename)
		if err != nil {
			log.Println("Configuration file not found.")
			return conf, err
		}
		if err = json.NewDecoder(file).Decode(&conf); err != nil {
			return conf, err
		}
	}
	// then override config values with OS ENV variables
	var tmp string
	if tmp = os.Getenv("AIR_LOGFORMAT"); tmp != "" {
		conf.LogFormat = tmp
	}
	if tmp = os.Getenv("AIR_STAGE"); tmp != "" {
		conf.Stage = tmp
	}
	if tmp = os.Getenv("AIR_PORT"); tmp != "" {
		conf.Port = tmp
	}
	if tmp = os.Getenv("AIR_DBTYPE"); tmp != "" {
		conf.DBType = tmp
	}
	if tmp = os.Getenv("AIR_DBCONN"); tmp != "" {
		conf.DBConn = tmp
	}
	if tmp = os.Getenv("AIR_MBTYPE"); tmp != "" {
		conf.MbType = tmp
	}
	if tmp = os.Getenv("AIR_MBCONN"); tmp != "" {
		conf.MbConn = tmp
	}
	if tmp = os.Getenv("AIR_CHAINS"); tmp != "" {
		if err := json.Unmarshal([]byte(tmp), &conf.Chains); err != nil {
			log.Println("Error reading chains from OS ENV AIR_CHAINS.")
			return conf, err
		}
	}
	if tmp = os.Getenv("AIR_TRIGGERS"); tmp != "" {
		if err := json.Unmarshal([]byte(tmp), &conf.Triggers); err != nil {
			log.Println("Error reading triggers from OS ENV AIR_TRIGGERS.")
			return conf, err
		}
	}
	if tmp = os.Getenv("AIR_OIS"); tmp != "" {
		if err := json.Unmarshal([]byte(tmp), &conf.OIS); err != nil {
			log.Println("Error reading OIS from OS ENV AIR_OIS.")
			return conf, err
		}
	}
	if tmp = os.Getenv("AIR_SEED"); tmp != "" {
		conf.Seed = tmp
	}
	return conf, Validate(conf)
}

// Validate checks the configuration is usable before a run starts. A failure here is run-fatal.
func Validate(c Config) error {
	if c.LogFormat != "plain" && c.LogFormat != "json" {
		return ErrUnknownFormat
	}
	if c.Seed == "" {
		return ErrMissingSeed
	}
	if len(c.Chains) == 0 {
		return ErrNoChains
	}
	for _, chain := range c.Chains {
		if chain.Type != "evm" {
			return ErrChainType
		}
		if len(chain.Providers) == 0 {
			return ErrNoProviders
		}
	}
	for _, trig := range c.Triggers.Requests {
		if _, _, err := c.FindEndpoint(trig.OISTitle, trig.EndpointName); err != nil {
			return ErrTriggerOIS
		}
	}
	return nil
}

// FindTrigger returns the trigger configured for endpointId, or false when the node does not serve it.
func (c Config) FindTrigger(endpointID string) (Trigger, bool) {
	for _, t := range c.Triggers.Requests {
		if t.EndpointID == endpointID {
			return t, true
		}
	}
	return Trigger{}, false
}

// FindOIS returns the OIS with the given title, or false.
func (c Config) FindOIS(title string) (OIS, bool) {
	for _, o := range c.OIS {
		if o.Title == title {
			return o, true
		}
	}
	return OIS{}, false
}

// FindEndpoint resolves an (oisTitle, endpointName) pair to its OIS and endpoint definitions.
func (c Config) FindEndpoint(oisTitle, endpointName string) (OIS, Endpoint, error) {
	ois, ok := c.FindOIS(oisTitle)
	if !ok {
		return OIS{}, Endpoint{}, ErrTriggerOIS
	}
	for _, e := range ois.Endpoints {
		if e.Name == endpointName {
			return ois, e, nil
		}
	}
	return ois, Endpoint{}, ErrTriggerOIS
}

// Reserved returns the reserved parameter declaration with the given name, or false.
func (e Endpoint) Reserved(name string) (ReservedParameter, bool) {
	for _, r := range e.ReservedParameters {
		if r.Name == name {
			return r, true
		}
	}
	return ReservedParameter{}, false
}
