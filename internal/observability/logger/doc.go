// Package logger provee un logger Zap singleton con scoping por contexto.
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
// En services (con contexto):
//
//	log := logger.From(ctx).With(logger.Component("upstream"), logger.Provider("spotify"))
//	log.Warn("rate limited", logger.RetryAfter(d))
//
// Los tokens de terceros nunca se loguean; usar Masked() si hace falta
// correlacionar un valor sensible.
package logger
