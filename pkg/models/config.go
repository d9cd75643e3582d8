package models

import "time"

// Config is the explicit configuration passed by parameter into every
// pipeline component. Nothing reads the environment after process start.
type Config struct {
	Company    string `yaml:"company"`
	Project    string `yaml:"project"`
	Platform   string `yaml:"platform"`
	Department string `yaml:"department"`
	Account    string `yaml:"account"`

	Warehouse WarehouseConfig `yaml:"warehouse"`
	API       APIConfig       `yaml:"api"`
}

// WarehouseConfig holds warehouse connection settings.
type WarehouseConfig struct {
	Account   string        `yaml:"account"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	Database  string        `yaml:"database"`
	Warehouse string        `yaml:"warehouse"`
	Role      string        `yaml:"role"`
	Timeout   time.Duration `yaml:"timeout"`
}

// APIConfig holds vendor ads API settings. AccessToken may be stored
// encrypted at rest (ENC[...]); the config loader decrypts it.
type APIConfig struct {
	BaseURL     string        `yaml:"base_url"`
	AccessToken string        `yaml:"access_token,omitempty"`
	PageSize    int           `yaml:"page_size"`
	Timeout     time.Duration `yaml:"timeout"`
}
