package logging

import (
	"go.uber.org/zap"
)

// NewLogger creates a new structured logger
func NewLogger(serviceName string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// WithDeviceKey returns a logger with device_key field
func WithDeviceKey(logger *zap.Logger, deviceKey string) *zap.Logger {
	return logger.With(zap.String("device_key", deviceKey))
}
