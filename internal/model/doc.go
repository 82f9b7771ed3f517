// Package model holds the value types shared by the projection engine: the
// structure of a (sub)model, its posterior bundle and the ModelData snapshot
// returned to callers.
//
// Naming follows the projection literature: values belonging to the reference
// model carry no suffix (or "Ref"), values belonging to a restricted submodel
// carry a "Perp" suffix.
package model
