package apperr

type Kind string

type AppError struct {
	Kind      Kind
	PublicMsg string            // message safe to show to API clients
	Fields    map[string]string // request validation field errors (optional)
	Err       error             // internal error, for logs only
}
