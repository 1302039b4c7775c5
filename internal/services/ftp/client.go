// Package ftp connects the upload orchestrator to the platform's FTP ingest
// servers.
package ftp

import (
	"context"
	"io"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/ochronus/goustream/internal/upload"
	"github.com/sirupsen/logrus"
)

const defaultTimeout = 30 * time.Second

// Dialer opens FTP connections for uploads.
type Dialer struct {
	Timeout     time.Duration
	DisableEPSV bool
	Logger      logrus.FieldLogger
}

var _ upload.Dialer = (*Dialer)(nil)

// NewDialer creates a Dialer with the given control-connection timeout.
func NewDialer(timeout time.Duration, disableEPSV bool, logger logrus.FieldLogger) *Dialer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Dialer{
		Timeout:     timeout,
		DisableEPSV: disableEPSV,
		Logger:      logger,
	}
}

// options returns the dial options and, at trace level, the pipe feeding
// the protocol dump into the logger. The pipe must be closed with the
// connection.
func (d *Dialer) options(ctx context.Context) ([]ftp.DialOption, *io.PipeWriter) {
	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(d.Timeout),
		ftp.DialWithDisabledEPSV(d.DisableEPSV),
	}
	var debug *io.PipeWriter
	if l, ok := d.Logger.(*logrus.Logger); ok && l.IsLevelEnabled(logrus.TraceLevel) {
		debug = l.WriterLevel(logrus.TraceLevel)
		opts = append(opts, ftp.DialWithDebugOutput(debug))
	}
	return opts, debug
}

// Dial connects to addr. The returned connection is not logged in yet.
func (d *Dialer) Dial(ctx context.Context, addr string) (upload.Conn, error) {
	opts, debug := d.options(ctx)
	c, err := ftp.Dial(addr, opts...)
	if err != nil {
		if debug != nil {
			debug.Close()
		}
		return nil, err
	}
	if d.Logger != nil {
		d.Logger.WithField("addr", addr).Debug("ftp connected")
	}
	return &conn{c: c, debug: debug}, nil
}

type conn struct {
	c     *ftp.ServerConn
	debug *io.PipeWriter
}

func (c *conn) Login(user, password string) error {
	return c.c.Login(user, password)
}

func (c *conn) Binary() error {
	return c.c.Type(ftp.TransferTypeBinary)
}

func (c *conn) Store(path string, r io.Reader) error {
	return c.c.Stor(path, r)
}

// Close sends QUIT; the socket is released whatever the server answers.
func (c *conn) Close() error {
	err := c.c.Quit()
	if c.debug != nil {
		c.debug.Close()
	}
	return err
}
