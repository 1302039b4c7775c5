// Package upload drives the three-phase video upload: reserve a slot over
// HTTP, push the bytes to the ingest server over FTP, then mark the slot
// ready over HTTP.
package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ochronus/goustream/internal/services/api"
	"github.com/sirupsen/logrus"
)

const (
	uploadType = "videoupload-ftp"

	DefaultProtect = "private"
	StatusReady    = "ready"
)

// Options is the metadata sent when reserving the upload slot.
type Options struct {
	Title       string
	Description string
	// Protect is the visibility of the new video; empty means DefaultProtect.
	Protect string
	// Extra carries any other field the API accepts. It cannot override the
	// upload type.
	Extra url.Values
}

// Result identifies a finished upload.
type Result struct {
	ChannelID string `json:"channelId"`
	FileID    string `json:"fileId"`
}

// Orchestrator sequences the upload phases. It keeps no per-upload state
// and may be shared by concurrent uploads.
type Orchestrator struct {
	requester api.Requester
	dialer    Dialer
	logger    logrus.FieldLogger
}

// NewOrchestrator creates an Orchestrator. A nil logger discards output.
func NewOrchestrator(requester api.Requester, dialer Dialer, logger logrus.FieldLogger) *Orchestrator {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Orchestrator{
		requester: requester,
		dialer:    dialer,
		logger:    logger,
	}
}

type initiateResponse struct {
	Host     string      `json:"host"`
	User     string      `json:"user"`
	Password string      `json:"password"`
	Port     json.Number `json:"port"`
	Path     string      `json:"path"`
	FileID   api.ID      `json:"fileId"`
}

// Initiate reserves an upload slot on channelID and returns the ingest
// credentials for it.
func (o *Orchestrator) Initiate(ctx context.Context, channelID string, opts Options) (*Credentials, error) {
	form := url.Values{}
	for k, vs := range opts.Extra {
		form[k] = append([]string(nil), vs...)
	}
	if opts.Title != "" {
		form.Set("title", opts.Title)
	}
	if opts.Description != "" {
		form.Set("description", opts.Description)
	}
	protect := opts.Protect
	if protect == "" {
		protect = DefaultProtect
	}
	form.Set("protect", protect)
	form.Set("type", uploadType)

	resp, err := o.requester.AuthRequest(ctx, http.MethodPost, uploadsPath(channelID), form)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	var ir initiateResponse
	if err := json.Unmarshal(raw, &ir); err != nil {
		return nil, fmt.Errorf("decoding upload slot: %w", err)
	}

	creds := &Credentials{
		Host:     ir.Host,
		User:     ir.User,
		Password: ir.Password,
		Path:     ir.Path,
		FileID:   ir.FileID.String(),
	}
	if ir.Port != "" {
		port, err := strconv.Atoi(ir.Port.String())
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("upload slot has invalid port %q", ir.Port)
		}
		creds.Port = port
	} else {
		creds.Port = 21
	}

	switch {
	case creds.Host == "":
		return nil, fmt.Errorf("upload slot response is missing host")
	case creds.Path == "":
		return nil, fmt.Errorf("upload slot response is missing path")
	case creds.FileID == "":
		return nil, fmt.Errorf("upload slot response is missing fileId")
	}

	return creds, nil
}

// Complete marks the upload slot with status, "ready" when status is empty.
func (o *Orchestrator) Complete(ctx context.Context, channelID, fileID, status string) (*Result, error) {
	if status == "" {
		status = StatusReady
	}

	path := fmt.Sprintf("%s/%s.json", uploadsBase(channelID), url.PathEscape(fileID))
	if _, err := o.requester.AuthRequest(ctx, http.MethodPut, path, url.Values{"status": {status}}); err != nil {
		return nil, err
	}

	return &Result{ChannelID: channelID, FileID: fileID}, nil
}

// Upload runs initiate, transfer and complete in order. A failing phase
// stops the sequence; nothing is retried. Unlike the single-phase methods,
// which return collaborator errors unchanged, Upload wraps the failure in
// *Error to name the phase and file. The original error, such as an
// *api.RequestError, stays reachable through errors.As.
func (o *Orchestrator) Upload(ctx context.Context, channelID string, src Source, opts Options) (*Result, error) {
	session := &Session{ChannelID: channelID}
	log := o.logger.WithField("channel_id", channelID)

	failed := func(phase Phase, err error) (*Result, error) {
		_ = session.fail()
		log.WithFields(logrus.Fields{
			"file_id": session.FileID,
			"phase":   phase,
		}).Errorf("upload failed: %v", err)
		return nil, &Error{Phase: phase, ChannelID: channelID, FileID: session.FileID, Err: err}
	}

	creds, err := o.Initiate(ctx, channelID, opts)
	if err != nil {
		return failed(PhaseInitiate, err)
	}
	session.FileID = creds.FileID
	if err := session.advance(StatusInitiated); err != nil {
		return failed(PhaseInitiate, err)
	}
	log = log.WithField("file_id", session.FileID)
	log.Infof("upload slot granted for %s", src.Name)

	if err := session.advance(StatusTransferring); err != nil {
		return failed(PhaseTransfer, err)
	}
	dest, err := o.Transfer(ctx, creds, src)
	if err != nil {
		return failed(PhaseTransfer, err)
	}
	session.DestinationPath = dest
	if err := session.advance(StatusTransferred); err != nil {
		return failed(PhaseTransfer, err)
	}
	log.Infof("transferred %s", dest)

	result, err := o.Complete(ctx, channelID, session.FileID, StatusReady)
	if err != nil {
		return failed(PhaseComplete, err)
	}
	if err := session.advance(StatusCompleted); err != nil {
		return failed(PhaseComplete, err)
	}
	log.Info("upload completed")

	return result, nil
}

func uploadsBase(channelID string) string {
	return fmt.Sprintf("channels/%s/uploads", url.PathEscape(channelID))
}

func uploadsPath(channelID string) string {
	return uploadsBase(channelID) + ".json"
}
