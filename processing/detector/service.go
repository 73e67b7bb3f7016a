package processing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/url"
	"sync"
	"time"

	"facecam/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotConnected    = errors.New("detector: not connected")
	ErrDetectorStopped = errors.New("detector: stopped")
	ErrConnectionLost  = errors.New("detector: connection lost")
)

// RemoteDetector talks to the inference server over one websocket.
// Requests are matched to responses by id, so callers may overlap.
type RemoteDetector struct {
	serverURL   string
	retryDelay  time.Duration
	jpegQuality func() int
	dialer      *websocket.Dialer
	log         *logrus.Entry

	mu      sync.Mutex
	conn    *websocket.Conn
	ready   chan struct{}
	pending map[string]chan response

	writeMu sync.Mutex

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

type Option func(*RemoteDetector)

func WithRetryDelay(d time.Duration) Option {
	return func(r *RemoteDetector) { r.retryDelay = d }
}

// WithJPEGQuality sets the encoder quality source; it is read per frame so
// config reloads apply.
func WithJPEGQuality(q func() int) Option {
	return func(r *RemoteDetector) { r.jpegQuality = q }
}

func WithLogger(log *logrus.Entry) Option {
	return func(r *RemoteDetector) { r.log = log }
}

// NewRemoteDetector accepts either a full ws:// URL or a bare host:port,
// which maps to ws://host:port/ws.
func NewRemoteDetector(server string, opts ...Option) *RemoteDetector {
	serverURL := server
	if u, err := url.Parse(server); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		serverURL = (&url.URL{Scheme: "ws", Host: server, Path: "/ws"}).String()
	}

	d := &RemoteDetector{
		serverURL:   serverURL,
		retryDelay:  2 * time.Second,
		jpegQuality: func() int { return jpeg.DefaultQuality },
		dialer:      websocket.DefaultDialer,
		log:         logrus.NewEntry(logrus.StandardLogger()),
		ready:       make(chan struct{}),
		pending:     make(map[string]chan response),
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *RemoteDetector) URL() string {
	return d.serverURL
}

func (d *RemoteDetector) Start() {
	go d.runLoop()
}

// Stop closes the connection and fails every waiting request.
func (d *RemoteDetector) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopChan)

		d.mu.Lock()
		conn := d.conn
		d.mu.Unlock()

		if conn != nil {
			_ = conn.Close()
		}
	})
}

// Connected reports whether a connection is currently established.
func (d *RemoteDetector) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

func (d *RemoteDetector) runLoop() {
	defer close(d.done)

	for {
		select {
		case <-d.stopChan:
			return
		default:
		}

		d.log.WithField("url", d.serverURL).Debug("connecting to detector server")
		conn, _, err := d.dialer.Dial(d.serverURL, nil)

		if err != nil {
			d.log.WithError(err).Warnf("connection failed, retrying in %s", d.retryDelay)
			select {
			case <-d.stopChan:
				return
			case <-time.After(d.retryDelay):
			}
			continue
		}

		d.log.Info("connected to detection server")

		d.mu.Lock()
		d.conn = conn
		close(d.ready)
		d.mu.Unlock()

		err = d.readLoop(conn)

		d.mu.Lock()
		d.conn = nil
		d.ready = make(chan struct{})
		d.failPending(ErrConnectionLost)
		d.mu.Unlock()

		_ = conn.Close()

		select {
		case <-d.stopChan:
			return
		default:
			d.log.WithError(err).Warn("connection lost")
		}
	}
}

func (d *RemoteDetector) readLoop(conn *websocket.Conn) error {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var resp response
		if err := json.Unmarshal(message, &resp); err != nil {
			d.log.WithError(err).Warn("JSON decode error")
			continue
		}

		d.mu.Lock()
		ch, ok := d.pending[resp.ID]
		delete(d.pending, resp.ID)
		d.mu.Unlock()

		if !ok {
			d.log.WithField("id", resp.ID).Debug("response for unknown request")
			continue
		}
		ch <- resp
	}
}

// failPending must be called with d.mu held.
func (d *RemoteDetector) failPending(err error) {
	for id, ch := range d.pending {
		ch <- response{ID: id, err: err}
		delete(d.pending, id)
	}
}

func (d *RemoteDetector) waitConn(ctx context.Context) (*websocket.Conn, error) {
	for {
		d.mu.Lock()
		conn, ready := d.conn, d.ready
		d.mu.Unlock()

		if conn != nil {
			return conn, nil
		}

		select {
		case <-ready:
		case <-d.stopChan:
			return nil, ErrDetectorStopped
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrNotConnected, ctx.Err())
		}
	}
}

func (d *RemoteDetector) roundTrip(ctx context.Context, req request) (response, error) {
	conn, err := d.waitConn(ctx)
	if err != nil {
		return response{}, err
	}

	req.ID = uuid.NewString()
	payload, err := json.Marshal(req)
	if err != nil {
		return response{}, err
	}

	ch := make(chan response, 1)

	d.mu.Lock()
	if d.conn != conn {
		d.mu.Unlock()
		return response{}, ErrConnectionLost
	}
	d.pending[req.ID] = ch
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.pending, req.ID)
		d.mu.Unlock()
	}()

	d.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, payload)
	d.writeMu.Unlock()

	if err != nil {
		return response{}, fmt.Errorf("detector: send %s: %w", req.Op, err)
	}

	select {
	case resp := <-ch:
		if resp.err != nil {
			return response{}, resp.err
		}
		if !resp.OK {
			msg := resp.Error
			if msg == "" {
				msg = "request rejected"
			}
			return response{}, fmt.Errorf("detector: %s: %s", req.Op, msg)
		}
		return resp, nil
	case <-d.stopChan:
		return response{}, ErrDetectorStopped
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

// LoadModel asks the server to load the named model bundle from baseURI.
func (d *RemoteDetector) LoadModel(ctx context.Context, model, baseURI string) error {
	_, err := d.roundTrip(ctx, request{Op: opLoadModel, Model: model, URI: baseURI})
	return err
}

// DetectAll runs face detection, landmarks and age/gender estimation on img.
func (d *RemoteDetector) DetectAll(ctx context.Context, img image.Image) ([]models.DetectionRecord, error) {
	if img == nil {
		return nil, errors.New("detector: nil image")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: d.quality()}); err != nil {
		return nil, fmt.Errorf("detector: JPEG encode: %w", err)
	}

	resp, err := d.roundTrip(ctx, request{Op: opDetect, Stages: detectStages, Image: buf.Bytes()})
	if err != nil {
		return nil, err
	}

	return records(resp.Faces), nil
}

func (d *RemoteDetector) quality() int {
	q := d.jpegQuality()
	if q < 1 || q > 100 {
		return jpeg.DefaultQuality
	}
	return q
}
