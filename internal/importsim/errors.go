package importsim

import "fmt"

type ErrSessionNotFound struct {
	error
}

func NewErrSessionNotFound(jobID string) *ErrSessionNotFound {
	return &ErrSessionNotFound{fmt.Errorf("import session %s not found", jobID)}
}

type ErrSessionNotPending struct {
	error
}

func NewErrSessionNotPending(jobID, status string) *ErrSessionNotPending {
	return &ErrSessionNotPending{fmt.Errorf("import session %s is already %s", jobID, status)}
}
