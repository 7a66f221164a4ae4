// Package registry holds the typed configuration model for the gateway —
// databases, queries and endpoints — and the validated, immutable Registry
// built from them.
package registry

// ParamType is the fixed set of value types a QueryParameter or
// EndpointParameter may declare.
type ParamType string

const (
	TypeString    ParamType = "STRING"
	TypeInteger   ParamType = "INTEGER"
	TypeLong      ParamType = "LONG"
	TypeDecimal   ParamType = "DECIMAL"
	TypeBoolean   ParamType = "BOOLEAN"
	TypeTimestamp ParamType = "TIMESTAMP"
)

// Valid reports whether t is one of the fixed parameter types.
func (t ParamType) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeLong, TypeDecimal, TypeBoolean, TypeTimestamp:
		return true
	}
	return false
}

// ParamSource is where an EndpointParameter's raw value is read from.
type ParamSource string

const (
	SourcePath      ParamSource = "path"
	SourceQuery     ParamSource = "query"
	SourceBodyField ParamSource = "body-field"
)

// Valid reports whether s is one of the fixed parameter sources.
func (s ParamSource) Valid() bool {
	switch s {
	case SourcePath, SourceQuery, SourceBodyField:
		return true
	}
	return false
}

// PoolConfig carries the connection-pool tuning knobs attached to a
// DatabaseConfig. All fields are optional; zero values are filled in by
// dbpool with the same defaults for every driver.
type PoolConfig struct {
	MaxSize             int32 `yaml:"maxSize" json:"maxSize"`
	MinIdle             int32 `yaml:"minIdle" json:"minIdle"`
	ConnectionTimeoutMs int64 `yaml:"connectionTimeoutMs" json:"connectionTimeoutMs"`
	IdleTimeoutMs       int64 `yaml:"idleTimeoutMs" json:"idleTimeoutMs"`
	MaxLifetimeMs       int64 `yaml:"maxLifetimeMs" json:"maxLifetimeMs"`
	LeakDetectionMs     int64 `yaml:"leakDetectionMs" json:"leakDetectionMs"`
	TestQuery           string `yaml:"testQuery" json:"testQuery"`
}

// DatabaseConfig declares one logical database that the PoolManager can
// open a pool against.
type DatabaseConfig struct {
	Name        string      `yaml:"-" json:"name"`
	Description string      `yaml:"description" json:"description"`
	URL         string      `yaml:"url" json:"url" validate:"required"`
	Username    string      `yaml:"username" json:"username"`
	Password    string      `yaml:"password" json:"password"`
	Driver      string      `yaml:"driver" json:"driver" validate:"required,oneof=postgres sqlite"`
	Pool        *PoolConfig `yaml:"pool,omitempty" json:"pool,omitempty"`
}

// QueryParameter declares one positional parameter consumed by a
// QueryConfig's SQL.
type QueryParameter struct {
	Name     string    `yaml:"name" json:"name" validate:"required"`
	Type     ParamType `yaml:"type" json:"type" validate:"required"`
	Required bool      `yaml:"required" json:"required"`
}

// QueryConfig declares one parameterized SQL statement bound to a database.
type QueryConfig struct {
	Name        string           `yaml:"-" json:"name"`
	Description string           `yaml:"description" json:"description"`
	Database    string           `yaml:"database" json:"database" validate:"required"`
	SQL         string           `yaml:"sql" json:"sql" validate:"required"`
	Parameters  []QueryParameter `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Pagination declares an endpoint's paging behaviour.
type Pagination struct {
	Enabled     bool `yaml:"enabled" json:"enabled"`
	DefaultSize int  `yaml:"defaultSize" json:"defaultSize"`
	MaxSize     int  `yaml:"maxSize" json:"maxSize"`
}

// EndpointParameter declares one value the Dispatcher must pull from the
// HTTP request before binding it into the query's parameter list.
type EndpointParameter struct {
	Name     string      `yaml:"name" json:"name" validate:"required"`
	Source   ParamSource `yaml:"source" json:"source" validate:"required"`
	Type     ParamType   `yaml:"type" json:"type" validate:"required"`
	Required bool        `yaml:"required" json:"required"`
}

// ResponseShape carries optional hints about the shape of a successful
// response body; purely descriptive, the Dispatcher derives the actual
// shape from cardinality and pagination regardless of these hints.
type ResponseShape struct {
	Fields []string `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// EndpointConfig declares one HTTP route bound to a query.
type EndpointConfig struct {
	Name        string              `yaml:"-" json:"name"`
	Path        string              `yaml:"path" json:"path" validate:"required"`
	Method      string              `yaml:"method" json:"method" validate:"required,oneof=GET"`
	Description string              `yaml:"description" json:"description"`
	Query       string              `yaml:"query" json:"query" validate:"required"`
	CountQuery  string              `yaml:"countQuery,omitempty" json:"countQuery,omitempty"`
	Pagination  *Pagination         `yaml:"pagination,omitempty" json:"pagination,omitempty"`
	Parameters  []EndpointParameter `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Response    *ResponseShape      `yaml:"response,omitempty" json:"response,omitempty"`
}
