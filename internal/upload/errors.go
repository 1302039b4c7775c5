package upload

import "fmt"

// Phase names one step of an upload.
type Phase string

const (
	PhaseInitiate Phase = "initiate"
	PhaseTransfer Phase = "transfer"
	PhaseComplete Phase = "complete"
)

// Error reports which phase of Upload failed. FileID is set once the slot
// was granted; a PhaseComplete error means the bytes are on the server but
// the slot was never marked ready.
type Error struct {
	Phase     Phase
	ChannelID string
	FileID    string
	Err       error
}

func (e *Error) Error() string {
	if e.FileID == "" {
		return fmt.Sprintf("upload to channel %s: %s: %v", e.ChannelID, e.Phase, e.Err)
	}
	return fmt.Sprintf("upload %s to channel %s: %s: %v", e.FileID, e.ChannelID, e.Phase, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TransferOp is the binary transfer step that failed.
type TransferOp string

const (
	OpConnect TransferOp = "connect"
	OpLogin   TransferOp = "login"
	OpBinary  TransferOp = "binary"
	OpStore   TransferOp = "store"
)

// TransferError is a failure while moving bytes to the ingest server.
type TransferError struct {
	Op   TransferOp
	Addr string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
