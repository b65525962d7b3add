// Package stdlib implements the uriel builtin functions: the resource
// commands, value constructors, relations, logic, blocs and a set of
// namespaced helpers (text, math, list, map, base64, hash, uuid, sys, time,
// json).
package stdlib

import (
	"github.com/lemonberrylabs/uriel/pkg/expr"
)

// NewRegistry creates a registry with every builtin registered.
func NewRegistry() *expr.Registry {
	r := expr.NewRegistry()
	Install(r)
	return r
}

// Install registers every builtin into r. Names already bound in r are
// left alone.
func Install(r *expr.Registry) {
	registerResources(r)
	registerConstructors(r)
	registerRelations(r)
	registerLogic(r)
	registerCommands(r)
	registerBlocs(r)
	registerText(r)
	registerMath(r)
	registerList(r)
	registerMap(r)
	registerBase64(r)
	registerJSON(r)
	registerHash(r)
	registerUUID(r)
	registerSys(r)
	registerTime(r)
}
