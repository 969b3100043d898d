// Package verity is the runtime-context layer of the Verity data validation
// platform: configuration resolution with layered variable substitution, a
// store registry, a datasource registry and a stable context identity.
//
// See pkg/datacontext for the orchestrating Context type.
package verity
