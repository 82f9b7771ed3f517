// Package submodel builds restricted models from a reference model: the
// structure of a submodel over a subset of the reference covariates, and the
// inference data of a submodel from projected parameter draws.
package submodel
