// Package config maps environment variables onto the ledger server's
// settings, one struct per concern.
package config

// AppConfig is everything the server binary reads at startup.
type AppConfig struct {
	Server ServerConfig
	Log    LogConfig
}

// LoadApp parses every section in one pass so main can bail on the first
// bad variable instead of partway through startup.
func LoadApp() (AppConfig, error) {
	server, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{Server: server, Log: logCfg}, nil
}
