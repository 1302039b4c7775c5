package upload

import (
	"context"
	"io"
	"net"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Conn is one open connection to the ingest server.
type Conn interface {
	Login(user, password string) error
	// Binary switches the connection to binary (image) transfer mode.
	Binary() error
	Store(path string, r io.Reader) error
	Close() error
}

// Dialer opens ingest connections.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// Credentials are handed out by the initiate phase and only stay valid for
// the upload slot they belong to.
type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	Path     string
	FileID   string
}

// Addr is the host:port of the ingest server.
func (c *Credentials) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Source is the file being uploaded: its original name and its bytes.
type Source struct {
	Name   string
	Reader io.Reader
}

// DestinationPath appends the extension of name to the server-assigned
// base path: ("up/123", "clip.mov") gives "up/123.mov". A name without an
// extension leaves base unchanged.
func DestinationPath(base, name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return base
	}
	return base + "." + name[i+1:]
}

// Transfer streams src to the ingest server described by creds and returns
// the remote path it was written to. The connection is closed exactly once
// on every return path. Canceling ctx closes it early and makes the next
// read of src fail, so a stream in progress stops within one chunk.
func (o *Orchestrator) Transfer(ctx context.Context, creds *Credentials, src Source) (string, error) {
	dest := DestinationPath(creds.Path, src.Name)
	addr := creds.Addr()
	log := o.logger.WithFields(logrus.Fields{
		"file_id":     creds.FileID,
		"addr":        addr,
		"destination": dest,
	})

	err := o.withConn(ctx, addr, log, func(conn Conn) error {
		if err := conn.Login(creds.User, creds.Password); err != nil {
			return &TransferError{Op: OpLogin, Addr: addr, Err: err}
		}
		if err := conn.Binary(); err != nil {
			return &TransferError{Op: OpBinary, Addr: addr, Err: err}
		}
		log.Debug("streaming file")
		if err := conn.Store(dest, &contextReader{ctx: ctx, r: src.Reader}); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			return &TransferError{Op: OpStore, Addr: addr, Err: err}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return dest, nil
}

func (o *Orchestrator) withConn(ctx context.Context, addr string, log logrus.FieldLogger, fn func(Conn) error) error {
	conn, err := o.dialer.Dial(ctx, addr)
	if err != nil {
		return &TransferError{Op: OpConnect, Addr: addr, Err: err}
	}

	release := sync.OnceValue(conn.Close)
	stop := context.AfterFunc(ctx, func() { release() })
	defer func() {
		stop()
		if err := release(); err != nil {
			log.Warnf("closing ingest connection: %v", err)
		}
	}()

	return fn(conn)
}

// contextReader fails every Read once ctx is done. Closing the control
// connection alone leaves an FTP data connection streaming.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
