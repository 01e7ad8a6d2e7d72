package deployment

import "errors"

var (
	// ErrEmptyArchive indicates the uploaded zip contains zero file entries.
	ErrEmptyArchive = errors.New("deployment: no files found in the zip archive")

	// ErrMissingEntryDocument indicates the archive has no index.html, so
	// there is nothing to rewrite or serve.
	ErrMissingEntryDocument = errors.New("deployment: archive has no index.html entry")

	// ErrInvalidTransition indicates a pipeline stage was invoked out of
	// order or after a failure.
	ErrInvalidTransition = errors.New("deployment: invalid pipeline stage transition")

	// ErrUnknownFramework indicates the project framework has no registered
	// rewrite strategy. This is normally caught at the request boundary.
	ErrUnknownFramework = errors.New("deployment: framework is invalid or not supported")

	// ErrInProgress indicates another deployment holds the project's lease.
	ErrInProgress = errors.New("deployment: another deployment is in progress for this project")

	// ErrQuotaExhausted indicates the user's monthly deployment quota is
	// spent and the reset time has not passed.
	ErrQuotaExhausted = errors.New("deployment: deployment limit reached, wait for the reset")
)

// PipelineError wraps a stage failure together with the accumulated
// human-readable log, which is the only diagnostic surface exposed to the
// caller.
type PipelineError struct {
	Stage string
	Logs  string
	Err   error
}

func (e *PipelineError) Error() string {
	return "deployment " + e.Stage + " stage failed: " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
