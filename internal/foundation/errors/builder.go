package errors

// ErrorBuilder provides a fluent API for creating ClassifiedError instances.
type ErrorBuilder struct {
	category ErrorCategory
	severity ErrorSeverity
	scope    ErrorScope
	message  string
	cause    error
	context  ErrorContext
}

// NewError creates a new ErrorBuilder with the specified category and message.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{
		category: category,
		severity: SeverityError,
		scope:    ScopePlatform,
		message:  message,
		context:  make(ErrorContext),
	}
}

// WrapError creates a new ErrorBuilder that wraps an existing error.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	b := NewError(category, message)
	b.cause = err
	return b
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.severity = severity
	return b
}

// WithScope sets the error scope.
func (b *ErrorBuilder) WithScope(scope ErrorScope) *ErrorBuilder {
	b.scope = scope
	return b
}

// WithCause sets the wrapped error.
func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.cause = err
	return b
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.context = b.context.Set(key, value)
	return b
}

// Fatal sets the severity to fatal and the scope to the whole run.
func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	return b.WithSeverity(SeverityFatal).WithScope(ScopeRun)
}

// ForPlatform scopes the error to a single platform pipeline.
func (b *ErrorBuilder) ForPlatform() *ErrorBuilder {
	return b.WithSeverity(SeverityError).WithScope(ScopePlatform)
}

// Warning sets the severity to warning and the scope to a single step.
func (b *ErrorBuilder) Warning() *ErrorBuilder {
	return b.WithSeverity(SeverityWarning).WithScope(ScopeStep)
}

// Build creates the final ClassifiedError.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		scope:    b.scope,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// Convenience constructors for common error patterns

// ConfigError creates a configuration error.
func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal()
}

// ValidationError creates a validation error.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).Fatal()
}

// ToolchainError creates a toolchain resolution error. Always run-scoped.
func ToolchainError(message string) *ErrorBuilder {
	return NewError(CategoryToolchain, message).Fatal()
}

// PreprocessingError creates a data preprocessing error.
func PreprocessingError(message string) *ErrorBuilder {
	return NewError(CategoryPreprocessing, message).ForPlatform()
}

// BuildError creates a toolchain build error.
func BuildError(message string) *ErrorBuilder {
	return NewError(CategoryBuild, message).ForPlatform()
}

// SanitizeError creates a manifest sanitize error (warning unless escalated).
func SanitizeError(message string) *ErrorBuilder {
	return NewError(CategorySanitize, message).Warning()
}

// DeviceError creates a device/emulator tooling error. Never fails the build.
func DeviceError(message string) *ErrorBuilder {
	return NewError(CategoryDevice, message).Warning()
}

// FileSystemError creates a filesystem error.
func FileSystemError(message string) *ErrorBuilder {
	return NewError(CategoryFileSystem, message).ForPlatform()
}

// CanceledError creates a cancellation error.
func CanceledError(message string) *ErrorBuilder {
	return NewError(CategoryCanceled, message).Fatal()
}

// InternalError creates an internal error.
func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message).Fatal()
}
