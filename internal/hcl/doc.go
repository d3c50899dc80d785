// Package hcl implements the config.Loader and config.Converter interfaces
// for HCL-formatted pipeline files and module manifests.
package hcl
