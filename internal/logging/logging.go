package logging

import "go.uber.org/zap"

// New builds the production logger used across the worker.
func New() (*zap.Logger, error) {
	return zap.NewProduction()
}
