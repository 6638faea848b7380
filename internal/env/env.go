// Package env resolves the runtime environment.
package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/emovec/internal/envvar"
)

// Environment is the deployment environment the process runs in.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
	Test        Environment = "test"
)

// FromEnv reads EMOVEC_ENV. Unknown or empty values mean Development.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.EmovecEnv))
}

// Parse maps a textual environment name, accepting common short forms.
func Parse(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod":
		return Production
	case "test", "testing":
		return Test
	default:
		return Development
	}
}

// IsProduction reports whether e is Production.
func (e Environment) IsProduction() bool {
	return e == Production
}
