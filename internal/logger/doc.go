// Package logger wraps zap to offer a global sugared logger with a console
// encoder, context helpers (ToContext/FromContext/WithName/WithKV) and level
// parsing. Services accept a context and extract the logger from it, so every
// line written by the agent carries the component name that produced it.
package logger
