// Package config resolves process configuration and secrets: deploy
// stage, database DSN, queue endpoints, and the CDP JWKS endpoint.
package config

// Stage is the deploy environment. Loggers and config carry a
// process-wide lifecycle initialised at boot (spec §9 "Global state").
type Stage string

const (
	StageLocal Stage = "local"
	StageDev   Stage = "dev"
	StageProd  Stage = "prod"
)

// Valid reports whether s is one of the defined stages.
func (s Stage) Valid() bool {
	switch s {
	case StageLocal, StageDev, StageProd:
		return true
	default:
		return false
	}
}
