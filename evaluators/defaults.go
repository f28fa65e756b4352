package evaluators

import (
	"github.com/liamcoop/trialmatch/celrules"
	"github.com/liamcoop/trialmatch/criteria"
	"github.com/liamcoop/trialmatch/registry"
)

// Native returns the bindings implemented in Go
func Native() map[criteria.Rule]registry.Factory {
	return map[criteria.Rule]registry.Factory{
		criteria.HasHadTreatmentNameX:          HasHadTreatmentName,
		criteria.HasLeukocytesAbsOfAtLeastX:    leukocytesAtLeast.factory,
		criteria.HasHemoglobinGPerDLOfAtLeastX: hemoglobinAtLeast.factory,
		criteria.HasCreatinineULNOfAtMostX:     creatinineULN.factory,
		criteria.HasQTCFOfAtMostX:              HasQTCFOfAtMost,
	}
}

// NewRegistry binds every leaf rule: CEL bindings from engine, overridden
// by the native evaluators
func NewRegistry(engine *celrules.Engine) (*registry.Registry, error) {
	return registry.New(registry.Merge(engine.Bindings(), Native()))
}

// NewDefaultRegistry uses the built-in CEL bindings
func NewDefaultRegistry() (*registry.Registry, error) {
	engine, err := celrules.NewDefaultEngine()
	if err != nil {
		return nil, err
	}
	return NewRegistry(engine)
}
