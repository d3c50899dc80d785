// Package app wires the application together: configuration loading, logger
// setup, module registration, graph construction, and the run lifecycle.
package app
