package mqtt

import "github.com/sweeney/climate-agent/internal/logger"

func nopLogger() *logger.Logger {
	return logger.NewNop()
}
