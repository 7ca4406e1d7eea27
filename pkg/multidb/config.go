package multidb

type Driver string

func (d Driver) String() string {
	return string(d)
}

const (
	Postgres Driver = "postgres"
)

type GoSqlDb struct {
	Debug bool
	DSN   string // Data Source Name

	MaxOpenConns int
	MaxIdleConns int
}

type DatabaseResource struct {
	Disable bool
	Driver  Driver

	Postgres GoSqlDb
}

// DatabaseResources maps db label into its connection resource.
type DatabaseResources map[string]DatabaseResource
