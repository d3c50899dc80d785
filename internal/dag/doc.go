// Package dag builds and validates the execution graph for a pipeline:
// one node per step or resource, edges from explicit depends_on entries and
// from implicit references inside HCL expressions.
package dag
