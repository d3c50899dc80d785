// Package registry holds the compiled-in Go handlers for runner and asset
// types, and validates at startup that the Go side and the HCL manifests
// agree with each other.
package registry
