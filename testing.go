package ouicomply

import (
	"context"
	"sync/atomic"
)

// stubRemote is a mock Uploader/Invoker for testing. Payload is returned
// from Complete verbatim; Fail forces every call to return FailErr.
type stubRemote struct {
	Payload []byte
	FailErr error

	uploads   atomic.Int64
	completes atomic.Int64
}

func (s *stubRemote) Upload(ctx context.Context, data []byte, mediaType string) (string, error) {
	s.uploads.Add(1)
	if s.FailErr != nil {
		return "", s.FailErr
	}
	return "file-stub-1", nil
}

func (s *stubRemote) Complete(ctx context.Context, call ChatCall) ([]byte, error) {
	s.completes.Add(1)
	if s.FailErr != nil {
		return nil, s.FailErr
	}
	return s.Payload, nil
}

func (s *stubRemote) Model() string { return "stub-model" }

// NewAnalyzerForTesting creates an Analyzer whose remote returns payload
// for every call, without requiring a real API client. Used by the
// mcpserver and httpserver tests as well as this package's own.
func NewAnalyzerForTesting(payload []byte, optFns ...func(*Options)) *Analyzer {
	remote := &stubRemote{Payload: payload}
	a, err := NewAnalyzer(remote, NewDocumentCache(remote, nil), optFns...)
	if err != nil {
		panic(err) // embedded templates are always loadable
	}
	return a
}
