// Package storage provides change request storage backends for the approval
// workflow.
package storage
