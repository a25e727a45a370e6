// Package logger wraps zap with a global sugared console logger and
// context helpers (ToContext, FromContext, WithName, WithKV).
//
// Services receive a context and pull the logger out of it, so every
// progress line carries the name of the stage that produced it.
package logger
