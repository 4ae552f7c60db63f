package config

// DB holds the database configuration settings.
type DB struct {
	Extras   string
	Host     string
	Port     int
	User     string
	Password string
	// Name is the database name, or the file path for sqlite.
	Name string
	// GormEngine selects the driver: mysql, postgres or sqlite.
	GormEngine string
}
