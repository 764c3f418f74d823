package domain

// ExternalDriver names the engine behind an ExternalConnection.
type ExternalDriver string

const (
	ExternalMySQL    ExternalDriver = "mysql"
	ExternalPostgres ExternalDriver = "postgres"
	ExternalMongoDB  ExternalDriver = "mongodb"
	ExternalSQLite   ExternalDriver = "sqlite"
)

// ExternalConnection describes a database rows can be imported from.
// The password is resolved separately through a SecretStore under PasswordKey.
type ExternalConnection struct {
	Name        string            `yaml:"name" json:"name"`
	Driver      ExternalDriver    `yaml:"driver" json:"driver"`
	Host        string            `yaml:"host" json:"host"` // hostname, URI (mongodb) or file path (sqlite)
	Port        int               `yaml:"port" json:"port"`
	Database    string            `yaml:"database" json:"database"`
	Username    string            `yaml:"username" json:"username"`
	SSLMode     string            `yaml:"ssl_mode" json:"sslMode"`
	PasswordKey string            `yaml:"password_key" json:"passwordKey"`
	Options     map[string]string `yaml:"options" json:"options,omitempty"`
}
