package mssql

import (
	"fmt"
	"net/url"
)

// Config contains SQL Server connection options.
type Config struct {
	Host     string `yaml:"host" env:"MSSQL_HOST"`
	Port     int    `yaml:"port" env:"MSSQL_PORT" env-default:"1433"`
	Database string `yaml:"database" env:"MSSQL_DATABASE"`

	// AuthMethod is "sql" or "service_principal".
	AuthMethod string `yaml:"auth_method" env:"MSSQL_AUTH_METHOD" env-default:"sql"`

	// SQL Authentication fields
	Username string `yaml:"user" env:"MSSQL_USER"`
	Password string `yaml:"-" env:"MSSQL_PASSWORD"`

	// Service Principal (Azure AD) fields
	TenantID     string `yaml:"tenant_id" env:"MSSQL_TENANT_ID"`
	ClientID     string `yaml:"client_id" env:"MSSQL_CLIENT_ID"`
	ClientSecret string `yaml:"-" env:"MSSQL_CLIENT_SECRET"`

	Encrypt                bool `yaml:"encrypt" env:"MSSQL_ENCRYPT" env-default:"true"`
	TrustServerCertificate bool `yaml:"trust_server_certificate" env:"MSSQL_TRUST_SERVER_CERTIFICATE"`
	ConnectionTimeout      int  `yaml:"connection_timeout" env:"MSSQL_CONNECTION_TIMEOUT" env-default:"30"`
}

// FromMap creates a Config from a generic config map and auto-detects the auth method.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:              1433,
		Encrypt:           true,
		ConnectionTimeout: 30,
	}

	if host, ok := config["host"].(string); ok {
		cfg.Host = host
	} else {
		return nil, fmt.Errorf("host is required")
	}
	if port, ok := config["port"].(float64); ok { // JSON numbers are float64
		cfg.Port = int(port)
	} else if port, ok := config["port"].(int); ok {
		cfg.Port = port
	}
	if database, ok := config["database"].(string); ok {
		cfg.Database = database
	} else {
		return nil, fmt.Errorf("database is required")
	}

	if encrypt, ok := config["encrypt"].(bool); ok {
		cfg.Encrypt = encrypt
	} else if encryptStr, ok := config["encrypt"].(string); ok {
		cfg.Encrypt = encryptStr == "true" || encryptStr == "strict"
	}
	if trust, ok := config["trust_server_certificate"].(bool); ok {
		cfg.TrustServerCertificate = trust
	}
	if timeout, ok := config["connection_timeout"].(float64); ok {
		cfg.ConnectionTimeout = int(timeout)
	} else if timeout, ok := config["connection_timeout"].(int); ok {
		cfg.ConnectionTimeout = timeout
	}

	if authMethod, ok := config["auth_method"].(string); ok && authMethod != "" {
		cfg.AuthMethod = authMethod
	} else if _, hasClientID := config["client_id"].(string); hasClientID {
		cfg.AuthMethod = "service_principal"
	} else {
		cfg.AuthMethod = "sql"
	}

	switch cfg.AuthMethod {
	case "sql":
		cfg.Username, _ = config["user"].(string)
		cfg.Password, _ = config["password"].(string)
	case "service_principal":
		cfg.TenantID, _ = config["tenant_id"].(string)
		cfg.ClientID, _ = config["client_id"].(string)
		cfg.ClientSecret, _ = config["client_secret"].(string)
	}
	return cfg, cfg.Validate()
}

// Validate checks the config has every field its auth method needs.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.AuthMethod {
	case "sql":
		if c.Username == "" {
			return fmt.Errorf("user is required for SQL authentication")
		}
	case "service_principal":
		if c.TenantID == "" || c.ClientID == "" || c.ClientSecret == "" {
			return fmt.Errorf("tenant_id, client_id and client_secret are required for service principal")
		}
	default:
		return fmt.Errorf("invalid auth method: %s (must be sql or service_principal)", c.AuthMethod)
	}
	return nil
}

// driverName returns the database/sql driver serving the auth method.
func (c *Config) driverName() string {
	if c.AuthMethod == "service_principal" {
		return "azuresql"
	}
	return "sqlserver"
}

// connectionString renders the sqlserver:// URL of the config.
func (c *Config) connectionString() string {
	query := url.Values{}
	query.Add("database", c.Database)
	if c.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if c.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if c.ConnectionTimeout > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", c.ConnectionTimeout))
	}

	if c.AuthMethod == "service_principal" {
		query.Add("fedauth", "ActiveDirectoryServicePrincipal")
		query.Add("user id", c.ClientID+"@"+c.TenantID)
		query.Add("password", c.ClientSecret)
		return fmt.Sprintf("sqlserver://%s:%d?%s", c.Host, c.Port, query.Encode())
	}
	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(c.Username),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		query.Encode(),
	)
}
